package chat

import (
	"context"
	"sync"

	"PulseIM/tools/errs"
)

// RoomManager tracks which connections are subscribed to which conversation.
// Membership is per-connection: two devices of one user make two entries.
// Participant authorization is checked once at join time against the store.
type RoomManager struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client  // conversation_id -> conn_id -> client
	byConn map[string]map[string]struct{} // conn_id -> conversation ids
	store  Store
}

func NewRoomManager(store Store) *RoomManager {
	return &RoomManager{
		rooms:  make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
		store:  store,
	}
}

// Join subscribes the connection to the conversation's room. Fails with
// ErrAuthorization unless the connection's user is a participant.
func (m *RoomManager) Join(ctx context.Context, c *Client, conversationID string) error {
	if conversationID == "" {
		return errs.ErrValidation.WithDetail("conversation id required")
	}
	ok, err := m.store.IsParticipant(ctx, conversationID, c.UserID)
	if err != nil {
		return classifyStoreErr(err)
	}
	if !ok {
		return errs.ErrAuthorization.WithDetail("not a participant of " + conversationID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.rooms[conversationID]
	if room == nil {
		room = make(map[string]*Client)
		m.rooms[conversationID] = room
	}
	room[c.ConnID] = c

	set := m.byConn[c.ConnID]
	if set == nil {
		set = make(map[string]struct{})
		m.byConn[c.ConnID] = set
	}
	set[conversationID] = struct{}{}
	return nil
}

// Leave removes the membership, unconditionally and idempotently.
func (m *RoomManager) Leave(connID, conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(connID, conversationID)
}

// DropConn sweeps the connection from every room it joined; called on
// unregister so no dangling membership survives a disconnect.
func (m *RoomManager) DropConn(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for convID := range m.byConn[connID] {
		m.leaveLocked(connID, convID)
	}
}

func (m *RoomManager) leaveLocked(connID, conversationID string) {
	if room := m.rooms[conversationID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(m.rooms, conversationID)
		}
	}
	if set := m.byConn[connID]; set != nil {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(m.byConn, connID)
		}
	}
}

// Members snapshots the room.
func (m *RoomManager) Members(conversationID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[conversationID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// MembersExcept snapshots the room without the given connection (typing
// relay semantics).
func (m *RoomManager) MembersExcept(conversationID, connID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[conversationID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(room))
	for id, c := range room {
		if id != connID {
			out = append(out, c)
		}
	}
	return out
}

// InRoom reports membership of one connection.
func (m *RoomManager) InRoom(conversationID, connID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[conversationID]
	_, ok := room[connID]
	return ok
}
