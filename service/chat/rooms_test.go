package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"PulseIM/tools/errs"
)

func TestRoomManager_JoinRequiresParticipation(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	rooms := NewRoomManager(store)

	a1 := newTestClient("A", "alice")
	z1 := newTestClient("Z", "zoe")

	// A participant joins fine.
	req.NoError(rooms.Join(context.Background(), a1, "c1"))
	req.True(rooms.InRoom("c1", a1.ConnID))

	// A non-participant is refused and leaves no membership behind.
	err := rooms.Join(context.Background(), z1, "c1")
	req.Error(err)
	req.Equal(errs.AuthorizationErrCode, errs.Code(err))
	req.False(rooms.InRoom("c1", z1.ConnID))
	req.Len(rooms.Members("c1"), 1)
}

func TestRoomManager_JoinUnknownConversation(t *testing.T) {
	req := require.New(t)
	rooms := NewRoomManager(newMemStore())
	a1 := newTestClient("A", "alice")

	err := rooms.Join(context.Background(), a1, "ghost")
	req.Error(err)
	req.Equal(errs.NotFoundErrCode, errs.Code(err))
}

func TestRoomManager_LeaveIsIdempotent(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	rooms := NewRoomManager(store)
	a1 := newTestClient("A", "alice")

	req.NoError(rooms.Join(context.Background(), a1, "c1"))
	rooms.Leave(a1.ConnID, "c1")
	rooms.Leave(a1.ConnID, "c1")
	rooms.Leave(a1.ConnID, "never-joined")
	req.Empty(rooms.Members("c1"))
}

func TestRoomManager_DropConnSweepsAllRooms(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	store.addConversation("c2", "A", "C")
	rooms := NewRoomManager(store)
	a1 := newTestClient("A", "alice")

	req.NoError(rooms.Join(context.Background(), a1, "c1"))
	req.NoError(rooms.Join(context.Background(), a1, "c2"))

	rooms.DropConn(a1.ConnID)
	req.False(rooms.InRoom("c1", a1.ConnID))
	req.False(rooms.InRoom("c2", a1.ConnID))
}

func TestRoomManager_MembersExcept(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	rooms := NewRoomManager(store)
	a1 := newTestClient("A", "alice")
	a2 := newTestClient("A", "alice")
	b1 := newTestClient("B", "bob")

	ctx := context.Background()
	req.NoError(rooms.Join(ctx, a1, "c1"))
	req.NoError(rooms.Join(ctx, a2, "c1"))
	req.NoError(rooms.Join(ctx, b1, "c1"))

	// Membership is per-connection: the origin device is excluded, the
	// user's other device is not.
	rest := rooms.MembersExcept("c1", a1.ConnID)
	req.Len(rest, 2)
	for _, c := range rest {
		req.NotEqual(a1.ConnID, c.ConnID)
	}
}
