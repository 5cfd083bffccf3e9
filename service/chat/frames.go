package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"PulseIM/tools/errs"
)

// Wire ops. Client->core and core->client share one envelope:
// {"op": "...", "data": {...}}.
const (
	OpAuth    = "auth"
	OpAuthAck = "auth:ack"

	OpConversationJoin    = "conversation:join"
	OpConversationLeave   = "conversation:leave"
	OpConversationCreated = "conversation:created"
	OpConversationNew     = "conversation:new"
	OpConversationUpdated = "conversation:updated"

	OpMessageSend    = "message:send"
	OpMessageReceive = "message:receive"
	OpMessageRead    = "message:read"

	OpTypingStart = "typing:start"
	OpTypingStop  = "typing:stop"
	OpTypingUser  = "typing:user"

	OpUserOnline  = "user:online"
	OpUserOffline = "user:offline"

	OpNotificationNew = "notification:new"
	OpError           = "error"
)

type Frame struct {
	Op   string         `json:"op"`
	Data map[string]any `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Op == "" {
		return nil, fmt.Errorf("frame missing op")
	}
	return f, nil
}

// ---- incoming payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type ConversationRefPayload struct {
	ConversationID string `json:"conversationId"`
}

type MessageSendPayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"messageType"`
	FileURL        string `json:"fileUrl"`
}

type MessageReadPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

// ---- outgoing frames ----

func encodeFrame(op string, v any) []byte {
	var data map[string]any
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		if err := json.Unmarshal(b, &data); err != nil {
			return nil
		}
	}
	out, _ := json.Marshal(Frame{Op: op, Data: data})
	return out
}

func BuildAuthAck(connID, userID string) []byte {
	return encodeFrame(OpAuthAck, map[string]any{
		"connId":     connID,
		"userId":     userID,
		"serverTime": time.Now().UnixMilli(),
	})
}

func BuildError(err error) []byte {
	return encodeFrame(OpError, map[string]any{
		"kind":    errs.Kind(err),
		"message": errs.Msg(err),
	})
}

func BuildUserOnline(userID, username string) []byte {
	return encodeFrame(OpUserOnline, map[string]any{"userId": userID, "username": username})
}

func BuildUserOffline(userID, username string) []byte {
	return encodeFrame(OpUserOffline, map[string]any{"userId": userID, "username": username})
}

func BuildMessageReceive(m *Message) []byte {
	return encodeFrame(OpMessageReceive, m)
}

func BuildMessageRead(messageID, userID, conversationID string) []byte {
	return encodeFrame(OpMessageRead, map[string]any{
		"messageId":      messageID,
		"userId":         userID,
		"conversationId": conversationID,
	})
}

func BuildConversationNew(c *Conversation) []byte {
	return encodeFrame(OpConversationNew, c)
}

func BuildConversationUpdated(c *Conversation) []byte {
	return encodeFrame(OpConversationUpdated, c)
}

func BuildTypingUser(userID, username, conversationID string) []byte {
	return encodeFrame(OpTypingUser, map[string]any{
		"userId":         userID,
		"username":       username,
		"conversationId": conversationID,
	})
}

func BuildTypingStop(userID, conversationID string) []byte {
	return encodeFrame(OpTypingStop, map[string]any{
		"userId":         userID,
		"conversationId": conversationID,
	})
}

func BuildNotificationNew(n *Notification) []byte {
	return encodeFrame(OpNotificationNew, n)
}
