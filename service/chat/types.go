package chat

import (
	"context"
	"time"
)

// Message content types.
const (
	MsgTypeText  = "text"
	MsgTypeImage = "image"
	MsgTypeFile  = "file"
	MsgTypeVideo = "video"
)

// Notification types.
const (
	NotifTypeMessage = "message"
	NotifTypeSystem  = "system"
)

func ValidMsgType(t string) bool {
	switch t {
	case MsgTypeText, MsgTypeImage, MsgTypeFile, MsgTypeVideo:
		return true
	}
	return false
}

type User struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Avatar   string    `json:"avatar,omitempty"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	IsGroup      bool      `json:"isGroup"`
	Participants []User    `json:"participants"`
	LastMessage  *Message  `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasParticipant reports membership by user id.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	Type           string    `json:"messageType"`
	FileURL        string    `json:"fileUrl,omitempty"`
	ReadBy         []string  `json:"readBy"`
	IsRead         bool      `json:"isRead"`
	CreatedAt      time.Time `json:"createdAt"`
}

type NewMessage struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           string
	FileURL        string
}

type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Sender    User      `json:"sender"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewNotification struct {
	Recipient string
	SenderID  string
	Type      string
	Title     string
	Body      string
	Link      string
}

// Store is the durable-store collaborator the coordinator calls into. The
// implementation owns persistence semantics; the coordinator only reacts to
// success or failure. Errors should be errs sentinels where the class matters
// (ErrNotFound, ErrValidation); anything else is treated as persistence
// failure.
type Store interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	CreateMessage(ctx context.Context, m *NewMessage) (*Message, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error
	// AppendReader adds userID to the message's readBy set. Returns false when
	// the user already read the message (idempotent no-op).
	AppendReader(ctx context.Context, messageID, userID string) (bool, error)
	CreateNotification(ctx context.Context, n *NewNotification) (*Notification, error)
	SetUserOnline(ctx context.Context, userID string, online bool) error
}

// Identity is the credential-verification collaborator. Token issuance lives
// with the HTTP login surface; the coordinator only verifies.
type Identity interface {
	Verify(token string) (userID, username string, err error)
}
