package chat

import (
	"context"

	"PulseIM/logger"
	"PulseIM/service/storage"
	"PulseIM/tools/errs"
)

func (s *Server) onConversationJoin(ctx context.Context, c *Client, p *ConversationRefPayload) error {
	if err := s.rooms.Join(ctx, c, p.ConversationID); err != nil {
		return err
	}
	logger.Debugf("[chat] conn=%s joined conversation=%s", c.ConnID, p.ConversationID)
	return nil
}

func (s *Server) onConversationLeave(_ context.Context, c *Client, p *ConversationRefPayload) error {
	if p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}
	s.rooms.Leave(c.ConnID, p.ConversationID)
	return nil
}

// onConversationCreated reacts to the creator's signal that the REST surface
// just created a conversation: push conversation:new to every participant's
// personal channel and run the notification fallback. The handler is
// idempotent at the delivery layer — a client retry with the same
// conversation id inside the dedup window is dropped, so nobody gets a
// duplicate notification.
func (s *Server) onConversationCreated(ctx context.Context, c *Client, p *ConversationRefPayload) error {
	if p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}

	conv, err := s.store.GetConversation(ctx, p.ConversationID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !conv.HasParticipant(c.UserID) {
		return errs.ErrAuthorization.WithDetail("creator not in conversation " + conv.ID)
	}

	// claim only once the signal is known-legitimate: a rejected or failed
	// signal must not consume the window, the creator's retry has to land
	if !s.claimConversationNew(p.ConversationID) {
		logger.Debugf("[chat] duplicate conversation:created id=%s dropped", p.ConversationID)
		return nil
	}

	payload := BuildConversationNew(conv)
	for _, part := range conv.Participants {
		s.pushToUser(part.ID, payload)
	}
	s.conversationFallback(ctx, conv, c)
	return nil
}

func (s *Server) claimViaRedis(conversationID string) (bool, error) {
	if !storage.Enabled() {
		return false, errs.ErrInternal.WithDetail("redis disabled")
	}
	return storage.ClaimConversationNew(conversationID, s.cfg.DedupWindow)
}
