package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPresence_BroadcastOnFirstConnectionOnly(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	s := newTestServer(store)
	defer s.Close()

	b1 := newTestClient("B", "bob")
	connect(s, b1)
	drainFrames(b1)

	// First device of A: everyone else hears user:online once.
	a1 := newTestClient("A", "alice")
	connect(s, a1)
	online := opsOf(collectFrames(b1, 200*time.Millisecond), OpUserOnline)
	req.Len(online, 1)
	req.Equal("A", online[0].Data["userId"])
	req.True(store.online["A"])

	// Second device: silent.
	a2 := newTestClient("A", "alice")
	connect(s, a2)
	req.Empty(opsOf(collectFrames(b1, 200*time.Millisecond), OpUserOnline))
}

func TestPresence_OfflineOnLastDisconnectOnly(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	s := newTestServer(store)
	defer s.Close()

	b1 := newTestClient("B", "bob")
	a1 := newTestClient("A", "alice")
	a2 := newTestClient("A", "alice")
	connect(s, b1)
	connect(s, a1)
	connect(s, a2)
	collectFrames(b1, 200*time.Millisecond)

	// One of two devices leaving is silent.
	disconnect(s, a1)
	req.Empty(opsOf(collectFrames(b1, 200*time.Millisecond), OpUserOffline))
	req.True(store.online["A"])

	// The last device leaving flips the durable flag and broadcasts.
	disconnect(s, a2)
	offline := opsOf(collectFrames(b1, 200*time.Millisecond), OpUserOffline)
	req.Len(offline, 1)
	req.Equal("A", offline[0].Data["userId"])
	req.False(store.online["A"])
}

func TestPresence_DisconnectSweepsRoomMembership(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	s := newTestServer(store)
	defer s.Close()

	a1 := newTestClient("A", "alice")
	connect(s, a1)
	joinRoom(t, s, a1, "c1")

	disconnect(s, a1)
	req.False(s.rooms.InRoom("c1", a1.ConnID))
	req.False(s.registry.IsOnline("A"))
}
