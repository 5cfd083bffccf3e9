package chat

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T, store Store) (*Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := NewServer(Config{
		NodeID:      "test-1",
		SendQueue:   64,
		AuthTimeout: 2 * time.Second,
	}, store, tokenIdentity{
		"tok-A": {"A", "alice"},
		"tok-B": {"B", "bob"},
	}, nil)

	r := gin.New()
	r.GET("/ws", s.HandleWS)
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialAndAuth(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	t.Cleanup(func() { _ = ws.Close() })

	req.NoError(ws.WriteJSON(Frame{Op: OpAuth, Data: map[string]any{"token": token}}))
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) *Frame {
	t.Helper()
	req := require.New(t)
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := ws.ReadMessage()
	req.NoError(err)
	f, err := ParseFrame(raw)
	req.NoError(err)
	return f
}

func TestHandleWS_HandshakeAck(t *testing.T) {
	req := require.New(t)
	s, url := newWSTestServer(t, newMemStore())

	ws := dialAndAuth(t, url, "tok-A")
	ack := readFrame(t, ws)
	req.Equal(OpAuthAck, ack.Op)
	req.Equal("A", ack.Data["userId"])
	req.NotEmpty(ack.Data["connId"])
	req.True(s.registry.IsOnline("A"))
}

func TestHandleWS_BadTokenRefusedAtTheDoor(t *testing.T) {
	req := require.New(t)
	s, url := newWSTestServer(t, newMemStore())

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer ws.Close()

	req.NoError(ws.WriteJSON(Frame{Op: OpAuth, Data: map[string]any{"token": "forged"}}))
	f := readFrame(t, ws)
	req.Equal(OpError, f.Op)
	req.Equal("authentication", f.Data["kind"])

	// The refused connection never entered the registry.
	req.False(s.registry.IsOnline("A"))
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	req.Error(err) // server closed the socket
}

func TestHandleWS_AuthFrameWithoutTokenRefused(t *testing.T) {
	req := require.New(t)
	_, url := newWSTestServer(t, newMemStore())

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer ws.Close()

	req.NoError(ws.WriteJSON(Frame{Op: OpAuth}))
	f := readFrame(t, ws)
	req.Equal(OpError, f.Op)
	req.Equal("authentication", f.Data["kind"])
}

func TestHandleWS_FirstFrameMustBeAuth(t *testing.T) {
	req := require.New(t)
	_, url := newWSTestServer(t, newMemStore())

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	req.NoError(err)
	defer ws.Close()

	req.NoError(ws.WriteJSON(Frame{Op: OpMessageSend, Data: map[string]any{"content": "sneaky"}}))
	f := readFrame(t, ws)
	req.Equal(OpError, f.Op)
	req.Equal("authentication", f.Data["kind"])
}

func TestHandleWS_SendAndReceiveEndToEnd(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	s, url := newWSTestServer(t, store)

	wsA := dialAndAuth(t, url, "tok-A")
	readFrame(t, wsA) // ack
	wsB := dialAndAuth(t, url, "tok-B")
	readFrame(t, wsB) // ack

	req.NoError(wsA.WriteJSON(Frame{Op: OpConversationJoin, Data: map[string]any{"conversationId": "c1"}}))
	req.NoError(wsB.WriteJSON(Frame{Op: OpConversationJoin, Data: map[string]any{"conversationId": "c1"}}))

	// The joins run on each connection's own read loop; wait until both
	// memberships landed before sending.
	req.Eventually(func() bool { return len(s.rooms.Members("c1")) == 2 },
		2*time.Second, 10*time.Millisecond)

	req.NoError(wsA.WriteJSON(Frame{Op: OpMessageSend, Data: map[string]any{
		"conversationId": "c1", "content": "hello bob",
	}}))

	// B may see A's user:online before the message; scan for it.
	for {
		f := readFrame(t, wsB)
		if f.Op != OpMessageReceive {
			continue
		}
		req.Equal("hello bob", f.Data["content"])
		req.Equal("c1", f.Data["conversationId"])
		break
	}
	req.True(s.registry.IsOnline("A"))
	req.True(s.registry.IsOnline("B"))
}

func TestHandleWS_HandlerErrorIsScopedErrorEvent(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	store.addConversation("c1", "A", "B")
	_, url := newWSTestServer(t, store)

	ws := dialAndAuth(t, url, "tok-A")
	readFrame(t, ws) // ack

	req.NoError(ws.WriteJSON(Frame{Op: OpMessageSend, Data: map[string]any{
		"conversationId": "ghost", "content": "into the void",
	}}))

	for {
		f := readFrame(t, ws)
		if f.Op != OpError {
			continue
		}
		req.Equal("not_found", f.Data["kind"])
		break
	}

	// The connection survives the failure.
	req.NoError(ws.WriteJSON(Frame{Op: OpConversationJoin, Data: map[string]any{"conversationId": "c1"}}))
	req.NoError(ws.WriteJSON(Frame{Op: OpMessageSend, Data: map[string]any{
		"conversationId": "c1", "content": "still here",
	}}))
	for {
		f := readFrame(t, ws)
		if f.Op == OpMessageReceive {
			req.Equal("still here", f.Data["content"])
			break
		}
	}
}
