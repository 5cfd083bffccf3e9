package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PulseIM/logger"
	"PulseIM/tools/decode"
	"PulseIM/tools/errs"
	"PulseIM/tools/ids"
	"PulseIM/tools/safe"
)

var upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(r *http.Request) bool { return true }}

// HandleWS upgrades the connection and runs its lifetime: AUTH-first
// handshake, register, read loop, teardown. One goroutine reads, one writes;
// a failed handshake leaves no registry entry behind.
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed: %v", err)
		return
	}

	client, first, err := s.handshake(ws)
	if err != nil {
		// refuse at the door: scoped error frame, then close
		_ = ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		_ = ws.WriteMessage(websocket.TextMessage, BuildError(err))
		_ = ws.Close()
		return
	}

	ctx := c.Request.Context()
	safe.Go(func() { s.writePump(client) })
	client.Enqueue(BuildAuthAck(client.ConnID, client.UserID))
	s.presence.HandleConnect(ctx, client, first)

	s.readLoop(ctx, client)

	// ---- teardown: registry first, then rooms, then presence ----
	userID, last, ok := s.registry.Unregister(client.ConnID)
	if ok {
		s.rooms.DropConn(client.ConnID)
		// detached context: the socket is gone but the durable transition
		// still has to land
		dctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		s.presence.HandleDisconnect(dctx, userID, client.Username, last)
		cancel()
	}
	client.Close()
	logger.Infof("[ws] disconnected user=%s conn=%s", client.UserID, client.ConnID)
}

// handshake reads exactly one auth frame within the deadline and registers
// the connection. AuthenticationError here means no registry entry was ever
// created.
func (s *Server) handshake(ws *websocket.Conn) (*Client, bool, error) {
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.AuthTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return nil, false, errs.ErrAuthentication.WithDetail("no auth frame")
	}
	f, err := ParseFrame(raw)
	if err != nil || f.Op != OpAuth {
		return nil, false, errs.ErrAuthentication.WithDetail("first frame must be auth")
	}
	p, err := decode.DecodeMap[AuthPayload](f.Data)
	if err != nil || p.Token == "" {
		return nil, false, errs.ErrAuthentication.WithDetail("missing token")
	}
	userID, username, err := s.identity.Verify(p.Token)
	if err != nil {
		return nil, false, errs.ErrAuthentication.WithDetail(err.Error())
	}

	client := NewClient(ids.GenerateString(), userID, username, ws, s.cfg.SendQueue)
	first, ok := s.registry.Register(client)
	if !ok {
		return nil, false, errs.ErrAuthentication.WithDetail("connection id rejected")
	}
	logger.Infof("[ws] connected user=%s (%s) conn=%s", username, userID, client.ConnID)
	return client, first, nil
}

// readLoop reads frames and dispatches; handler failures become a scoped
// error event, never a dropped connection.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	ws := client.WS
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		mt, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", client.ConnID)
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", client.ConnID, err)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		f, perr := ParseFrame(raw)
		if perr != nil {
			s.emitError(client, errs.ErrValidation.WithDetail(perr.Error()))
			continue
		}
		if err := s.disp.Dispatch(ctx, client, f); err != nil {
			s.emitError(client, err)
		}
	}
}

// writePump is the connection's single writer: outbound queue plus pings.
func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = client.WS.Close()
	}()

	for {
		select {
		case payload := <-client.Send:
			_ = client.WS.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := client.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[ws] write err conn=%s err=%v", client.ConnID, err)
				client.Close()
				return
			}
		case <-ticker.C:
			_ = client.WS.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := client.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.Close()
				return
			}
		case <-client.Done():
			_ = client.WS.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			_ = client.WS.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
