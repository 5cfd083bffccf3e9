package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents one live authenticated connection. A single user may hold
// several clients at once (multi-device); each is tracked separately.
type Client struct {
	ConnID    string          // unique connection id (snowflake)
	UserID    string          // owning user, set at handshake
	Username  string          // display name snapshot from the credential
	WS        *websocket.Conn // written only by the write pump
	Send      chan []byte     // outbound queue, consumed by a single writer goroutine
	CreatedAt time.Time

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID, username string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:    connID,
		UserID:    userID,
		Username:  username,
		WS:        ws,
		Send:      make(chan []byte, sendQueueSize),
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Enqueue queues a payload for the write pump. A closed client drops the
// payload (disconnect cancels pending emissions); a full queue drops it too,
// the slow-client tradeoff the fanout makes everywhere.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Close marks the client dead. Idempotent; the write pump observes Done and
// tears the socket down.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) Done() <-chan struct{} { return c.done }
