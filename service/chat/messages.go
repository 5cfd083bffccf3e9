package chat

import (
	"context"
	"strings"

	"PulseIM/service/natsx"
	"PulseIM/tools/errs"
)

// onMessageSend is the full send pipeline: validate, authorize, persist,
// sequence, fan out, then hand the participant snapshot to the notification
// fallback. The conversation guard is held from the first write to the room
// broadcast so every room member observes sends in commit order; raced sends
// to different conversations never contend.
func (s *Server) onMessageSend(ctx context.Context, c *Client, p *MessageSendPayload) error {
	if c.UserID == "" {
		return errs.ErrAuthentication.WithDetail("connection not authenticated")
	}

	msgType := p.Type
	if msgType == "" {
		msgType = MsgTypeText
	}
	if !ValidMsgType(msgType) {
		return errs.ErrValidation.WithDetail("unknown message type " + msgType)
	}
	if p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}
	if msgType == MsgTypeText && strings.TrimSpace(p.Content) == "" {
		return errs.ErrValidation.WithDetail("empty text message")
	}

	conv, err := s.store.GetConversation(ctx, p.ConversationID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !conv.HasParticipant(c.UserID) {
		return errs.ErrAuthorization.WithDetail("sender not in conversation " + conv.ID)
	}

	unlock := s.seq.Lock(conv.ID)
	defer unlock()

	msg, err := s.store.CreateMessage(ctx, &NewMessage{
		ConversationID: conv.ID,
		SenderID:       c.UserID,
		Content:        p.Content,
		Type:           msgType,
		FileURL:        p.FileURL,
	})
	if err != nil {
		// no write, no broadcast
		return classifyStoreErr(err)
	}
	if err := s.store.SetLastMessage(ctx, conv.ID, msg.ID); err != nil {
		// message is durable but the pointer is stale; surfacing the failure
		// without broadcasting matches the no-partial-broadcast rule
		return classifyStoreErr(err)
	}

	// room delivery: the sender's own connection gets the message through its
	// room membership, never via a second direct emission
	s.broadcastRoom(conv.ID, BuildMessageReceive(msg))

	conv.LastMessage = msg
	conv.UpdatedAt = msg.CreatedAt
	updated := BuildConversationUpdated(conv)
	for _, part := range conv.Participants {
		s.pushToUser(part.ID, updated)
	}

	s.outbox.Publish(natsx.SubjectMessage, msg)
	s.messageFallback(ctx, conv, c, msg)
	return nil
}
