package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_FirstAndLastTransitions(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a1 := newTestClient("A", "alice")
	a2 := newTestClient("A", "alice")

	// Given an empty registry
	req.False(r.IsOnline("A"))
	req.Empty(r.ActiveConnections("A"))

	// When the first device registers
	first, ok := r.Register(a1)
	req.True(ok)
	req.True(first)
	req.True(r.IsOnline("A"))

	// And a second device registers
	first, ok = r.Register(a2)
	req.True(ok)
	req.False(first)
	req.Len(r.ActiveConnections("A"), 2)

	// When one device unregisters the user stays online
	_, last, ok := r.Unregister(a1.ConnID)
	req.True(ok)
	req.False(last)
	req.True(r.IsOnline("A"))

	// And the final device unregistering is the 1->0 transition
	userID, last, ok := r.Unregister(a2.ConnID)
	req.True(ok)
	req.True(last)
	req.Equal("A", userID)
	req.False(r.IsOnline("A"))
	req.Empty(r.ActiveConnections("A"))
}

func TestRegistry_RegisterAfterUnregisterIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a1 := newTestClient("A", "alice")

	_, ok := r.Register(a1)
	req.True(ok)
	_, _, ok = r.Unregister(a1.ConnID)
	req.True(ok)

	// A late register with the tombstoned conn id mutates nothing.
	first, ok := r.Register(a1)
	req.False(ok)
	req.False(first)
	req.False(r.IsOnline("A"))
	req.Nil(r.GetByConn(a1.ConnID))
}

func TestRegistry_DuplicateConnIDRejected(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a1 := newTestClient("A", "alice")

	_, ok := r.Register(a1)
	req.True(ok)
	_, ok = r.Register(a1)
	req.False(ok)
	req.Len(r.ActiveConnections("A"), 1)
}

func TestRegistry_UnknownUnregisterIsNoOp(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	_, last, ok := r.Unregister("never-seen")
	req.False(ok)
	req.False(last)
}

func TestRegistry_ListAllExcept(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a1 := newTestClient("A", "alice")
	b1 := newTestClient("B", "bob")
	b2 := newTestClient("B", "bob")

	r.Register(a1)
	r.Register(b1)
	r.Register(b2)

	others := r.ListAllExcept("B")
	req.Len(others, 1)
	req.Equal("A", others[0].UserID)

	req.Len(r.ListByUser("B"), 2)
}
