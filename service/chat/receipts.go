package chat

import (
	"context"

	"PulseIM/tools/errs"
)

// onMessageRead appends the reader to the message's readBy set and tells the
// room. The store append is atomic and reports whether the reader was new, so
// a double read is a silent no-op: one readBy entry, at most one broadcast.
// Receipts share the conversation guard with sends, keeping one total order
// of message and read events per conversation.
func (s *Server) onMessageRead(ctx context.Context, c *Client, p *MessageReadPayload) error {
	if p.MessageID == "" || p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("messageId and conversationId required")
	}

	unlock := s.seq.Lock(p.ConversationID)
	defer unlock()

	added, err := s.store.AppendReader(ctx, p.MessageID, c.UserID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !added {
		return nil
	}
	s.broadcastRoom(p.ConversationID, BuildMessageRead(p.MessageID, c.UserID, p.ConversationID))
	return nil
}
