package chat

import (
	"context"
	"unicode/utf8"

	"PulseIM/logger"
	"PulseIM/service/natsx"
)

const maxNotifPreview = 80

// messageFallback creates one durable notification per participant who is
// offline at this instant. The check is a point-in-time snapshot: someone
// disconnecting a moment later is not retroactively notified. Online
// participants get nothing durable — the live message:receive was their
// notification.
func (s *Server) messageFallback(ctx context.Context, conv *Conversation, sender *Client, msg *Message) {
	preview := msg.Content
	if len(preview) > maxNotifPreview {
		// back off to a rune boundary so the cut never emits invalid UTF-8
		cut := maxNotifPreview
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "…"
	}
	if preview == "" {
		preview = "sent a " + msg.Type
	}

	for _, part := range conv.Participants {
		if part.ID == sender.UserID {
			continue
		}
		if s.registry.IsOnline(part.ID) {
			continue
		}
		n, err := s.store.CreateNotification(ctx, &NewNotification{
			Recipient: part.ID,
			SenderID:  sender.UserID,
			Type:      NotifTypeMessage,
			Title:     "New message from " + sender.Username,
			Body:      preview,
			Link:      "/chat?conversation=" + conv.ID,
		})
		if err != nil {
			// one recipient's failure must not starve the rest
			logger.Errorf("[notify] create notification recipient=%s err=%v", part.ID, err)
			continue
		}
		s.outbox.Publish(natsx.SubjectNotification, n)
	}
}

// conversationFallback mirrors messageFallback for the conversation-creation
// event: offline participants get a durable system notification, online
// non-creators get the ephemeral notification:new on their personal channel.
func (s *Server) conversationFallback(ctx context.Context, conv *Conversation, creator *Client) {
	for _, part := range conv.Participants {
		if part.ID == creator.UserID {
			continue
		}
		if s.registry.IsOnline(part.ID) {
			live := &Notification{
				Recipient: part.ID,
				Sender:    User{ID: creator.UserID, Username: creator.Username},
				Type:      NotifTypeSystem,
				Title:     "New Conversation",
				Body:      creator.Username + " wants to chat with you",
				Link:      "/chat?conversation=" + conv.ID,
			}
			s.pushToUser(part.ID, BuildNotificationNew(live))
			continue
		}
		n, err := s.store.CreateNotification(ctx, &NewNotification{
			Recipient: part.ID,
			SenderID:  creator.UserID,
			Type:      NotifTypeSystem,
			Title:     "New Conversation",
			Body:      creator.Username + " wants to chat with you",
			Link:      "/chat?conversation=" + conv.ID,
		})
		if err != nil {
			logger.Errorf("[notify] create notification recipient=%s err=%v", part.ID, err)
			continue
		}
		s.outbox.Publish(natsx.SubjectNotification, n)
	}
}
