package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"PulseIM/tools/errs"
)

// memStore is the in-memory Store used by the coordinator tests. It records
// the order in which messages commit so delivery order can be compared
// against commit order.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]*Conversation
	messages      map[string]*Message
	notifications []*Notification
	online        map[string]bool
	commitLog     []string // message ids in commit order
	nextID        int

	failCreateMessage   bool
	failGetConversation bool
}

func newMemStore() *memStore {
	return &memStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string]*Message),
		online:        make(map[string]bool),
	}
}

func (s *memStore) addConversation(id string, participantIDs ...string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &Conversation{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	for _, p := range participantIDs {
		conv.Participants = append(conv.Participants, User{ID: p, Username: "user-" + p})
	}
	s.conversations[id] = conv
	return conv
}

func (s *memStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGetConversation {
		return nil, errors.New("disk on fire")
	}
	conv, ok := s.conversations[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *memStore) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return false, errs.ErrNotFound
	}
	return conv.HasParticipant(userID), nil
}

func (s *memStore) CreateMessage(_ context.Context, in *NewMessage) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateMessage {
		return nil, errors.New("disk on fire")
	}
	s.nextID++
	m := &Message{
		ID:             fmt.Sprintf("m%d", s.nextID),
		ConversationID: in.ConversationID,
		Sender:         User{ID: in.SenderID},
		Content:        in.Content,
		Type:           in.Type,
		FileURL:        in.FileURL,
		ReadBy:         []string{},
		CreatedAt:      time.Now(),
	}
	s.messages[m.ID] = m
	s.commitLog = append(s.commitLog, m.ID)
	return m, nil
}

func (s *memStore) SetLastMessage(_ context.Context, conversationID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return errs.ErrNotFound
	}
	conv.LastMessage = s.messages[messageID]
	conv.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) AppendReader(_ context.Context, messageID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[messageID]
	if !ok {
		return false, errs.ErrNotFound
	}
	for _, r := range m.ReadBy {
		if r == userID {
			return false, nil
		}
	}
	m.ReadBy = append(m.ReadBy, userID)
	m.IsRead = true
	return true, nil
}

func (s *memStore) CreateNotification(_ context.Context, in *NewNotification) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n := &Notification{
		ID:        fmt.Sprintf("n%d", s.nextID),
		Recipient: in.Recipient,
		Sender:    User{ID: in.SenderID},
		Type:      in.Type,
		Title:     in.Title,
		Body:      in.Body,
		Link:      in.Link,
		CreatedAt: time.Now(),
	}
	s.notifications = append(s.notifications, n)
	return n, nil
}

func (s *memStore) SetUserOnline(_ context.Context, userID string, online bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = online
	return nil
}

func (s *memStore) notificationsFor(userID string) []*Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.notifications {
		if n.Recipient == userID {
			out = append(out, n)
		}
	}
	return out
}

// tokenIdentity maps fixed tokens to identities.
type tokenIdentity map[string][2]string // token -> {userID, username}

func (ti tokenIdentity) Verify(token string) (string, string, error) {
	id, ok := ti[token]
	if !ok {
		return "", "", errors.New("unknown token")
	}
	return id[0], id[1], nil
}

func newTestServer(store Store) *Server {
	return NewServer(Config{
		NodeID:        "test-1",
		FanoutWorkers: 2,
		SendQueue:     256,
	}, store, tokenIdentity{}, nil)
}

func newTestClient(userID, username string) *Client {
	return NewClient(uuid.NewString(), userID, username, nil, 256)
}

// connect registers the client and runs the presence reaction, mirroring the
// websocket handshake without a socket.
func connect(s *Server, c *Client) {
	first, _ := s.registry.Register(c)
	s.presence.HandleConnect(context.Background(), c, first)
}

func disconnect(s *Server, c *Client) {
	userID, last, ok := s.registry.Unregister(c.ConnID)
	if ok {
		s.rooms.DropConn(c.ConnID)
		s.presence.HandleDisconnect(context.Background(), userID, c.Username, last)
	}
	c.Close()
}

// drainFrames empties the client's queue and parses everything queued so far.
func drainFrames(c *Client) []*Frame {
	var out []*Frame
	for {
		select {
		case raw := <-c.Send:
			f, err := ParseFrame(raw)
			if err == nil {
				out = append(out, f)
			}
		default:
			return out
		}
	}
}

// collectFrames keeps draining until the window elapses, for fanout-pool
// deliveries that land asynchronously.
func collectFrames(c *Client, window time.Duration) []*Frame {
	deadline := time.After(window)
	var out []*Frame
	for {
		select {
		case raw := <-c.Send:
			if f, err := ParseFrame(raw); err == nil {
				out = append(out, f)
			}
		case <-deadline:
			return out
		}
	}
}

func opsOf(frames []*Frame, op string) []*Frame {
	var out []*Frame
	for _, f := range frames {
		if f.Op == op {
			out = append(out, f)
		}
	}
	return out
}
