package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PulseIM/tools/errs"
)

func TestMessageRead_BroadcastsOnceAndRecordsReader(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	s := newTestServer(store)
	defer s.Close()

	a1 := newTestClient("A", "alice")
	b1 := newTestClient("B", "bob")
	connect(s, a1)
	connect(s, b1)
	joinRoom(t, s, a1, "c1")
	joinRoom(t, s, b1, "c1")

	ctx := context.Background()
	req.NoError(s.onMessageSend(ctx, a1, &MessageSendPayload{ConversationID: "c1", Content: "hi"}))
	msgID := store.commitLog[0]
	drainFrames(a1)
	drainFrames(b1)

	// B reads the message.
	req.NoError(s.onMessageRead(ctx, b1, &MessageReadPayload{MessageID: msgID, ConversationID: "c1"}))

	reads := opsOf(collectFrames(a1, 100*time.Millisecond), OpMessageRead)
	req.Len(reads, 1)
	req.Equal(msgID, reads[0].Data["messageId"])
	req.Equal("B", reads[0].Data["userId"])
	req.Equal("c1", reads[0].Data["conversationId"])

	req.Equal([]string{"B"}, store.messages[msgID].ReadBy)
	req.True(store.messages[msgID].IsRead)
}

func TestMessageRead_DoubleReadIsSilent(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	s := newTestServer(store)
	defer s.Close()

	a1 := newTestClient("A", "alice")
	b1 := newTestClient("B", "bob")
	connect(s, a1)
	connect(s, b1)
	joinRoom(t, s, a1, "c1")
	joinRoom(t, s, b1, "c1")

	ctx := context.Background()
	req.NoError(s.onMessageSend(ctx, a1, &MessageSendPayload{ConversationID: "c1", Content: "hi"}))
	msgID := store.commitLog[0]
	drainFrames(a1)
	drainFrames(b1)

	req.NoError(s.onMessageRead(ctx, b1, &MessageReadPayload{MessageID: msgID, ConversationID: "c1"}))
	req.NoError(s.onMessageRead(ctx, b1, &MessageReadPayload{MessageID: msgID, ConversationID: "c1"}))

	// One readBy entry and at most one broadcast.
	req.Equal([]string{"B"}, store.messages[msgID].ReadBy)
	req.Len(opsOf(collectFrames(a1, 100*time.Millisecond), OpMessageRead), 1)
}

func TestMessageRead_Validation(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	s := newTestServer(store)
	defer s.Close()

	b1 := newTestClient("B", "bob")
	connect(s, b1)
	ctx := context.Background()

	err := s.onMessageRead(ctx, b1, &MessageReadPayload{ConversationID: "c1"})
	req.Equal(errs.ValidationErrCode, errs.Code(err))

	err = s.onMessageRead(ctx, b1, &MessageReadPayload{MessageID: "ghost", ConversationID: "c1"})
	req.Equal(errs.NotFoundErrCode, errs.Code(err))
}
