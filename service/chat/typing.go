package chat

import (
	"context"

	"PulseIM/tools/errs"
)

// Typing signals are pure UX: no persistence, no ordering relative to
// messages, no delivery promise to a reconnecting participant. The origin
// connection is excluded from the broadcast.

func (s *Server) onTypingStart(_ context.Context, c *Client, p *ConversationRefPayload) error {
	if p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}
	s.fanout.Broadcast(
		s.rooms.MembersExcept(p.ConversationID, c.ConnID),
		BuildTypingUser(c.UserID, c.Username, p.ConversationID),
	)
	return nil
}

func (s *Server) onTypingStop(_ context.Context, c *Client, p *ConversationRefPayload) error {
	if p.ConversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}
	s.fanout.Broadcast(
		s.rooms.MembersExcept(p.ConversationID, c.ConnID),
		BuildTypingStop(c.UserID, p.ConversationID),
	)
	return nil
}
