package chat

import (
	"context"
	"sync"
	"time"

	"PulseIM/logger"
	"PulseIM/service/natsx"
	"PulseIM/tools/decode"
	"PulseIM/tools/errs"
)

type Config struct {
	NodeID string // gateway node id, lands in the presence mirror

	FanoutWorkers int
	FanoutQueue   int
	SendQueue     int // per-client outbound queue

	AuthTimeout  time.Duration // handshake must complete within this
	PingInterval time.Duration
	PongWait     time.Duration
	WriteTimeout time.Duration
	DedupWindow  time.Duration // conversation:created retry window
	PresenceTTL  time.Duration // redis mirror TTL
}

func (c *Config) norm() {
	if c.NodeID == "" {
		c.NodeID = "im_gw-1"
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 4
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 75 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 30 * time.Second
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 2 * time.Minute
	}
}

// Server is the session and delivery coordinator: it owns the registry, the
// rooms, the per-conversation sequencing guards and the fanout pool, and
// delegates durability to the store collaborator.
type Server struct {
	cfg      Config
	store    Store
	identity Identity
	outbox   *natsx.Outbox

	registry *Registry
	rooms    *RoomManager
	seq      *Sequencer
	fanout   *Fanout
	presence *Presence
	disp     *Dispatcher

	// in-process fallback for the conversation:created dedup window
	convMu   sync.Mutex
	convSeen map[string]time.Time
}

func NewServer(cfg Config, store Store, identity Identity, outbox *natsx.Outbox) *Server {
	cfg.norm()
	s := &Server{
		cfg:      cfg,
		store:    store,
		identity: identity,
		outbox:   outbox,
		registry: NewRegistry(),
		rooms:    NewRoomManager(store),
		seq:      NewSequencer(),
		fanout:   NewFanout(cfg.FanoutWorkers, cfg.FanoutQueue),
		disp:     NewDispatcher(),
		convSeen: make(map[string]time.Time),
	}
	s.presence = NewPresence(s.registry, store, s.fanout, cfg.NodeID, cfg.PresenceTTL)

	s.disp.Register(OpConversationJoin, payloadHandler(s.onConversationJoin))
	s.disp.Register(OpConversationLeave, payloadHandler(s.onConversationLeave))
	s.disp.Register(OpConversationCreated, payloadHandler(s.onConversationCreated))
	s.disp.Register(OpMessageSend, payloadHandler(s.onMessageSend))
	s.disp.Register(OpMessageRead, payloadHandler(s.onMessageRead))
	s.disp.Register(OpTypingStart, payloadHandler(s.onTypingStart))
	s.disp.Register(OpTypingStop, payloadHandler(s.onTypingStop))
	return s
}

func (s *Server) Registry() *Registry { return s.registry }
func (s *Server) Rooms() *RoomManager { return s.rooms }

func (s *Server) Close() {
	s.fanout.Close()
}

// payloadHandler decodes the frame data into the typed payload before the
// real handler runs.
func payloadHandler[T any](h func(ctx context.Context, c *Client, p *T) error) HandlerFunc {
	return func(ctx context.Context, c *Client, data map[string]any) error {
		p, err := decode.DecodeMap[T](data)
		if err != nil {
			return errs.ErrValidation.WithDetail(err.Error())
		}
		return h(ctx, c, p)
	}
}

// broadcastRoom enqueues inline, preserving call order; callers that need
// per-conversation total order hold the sequencing guard across the call.
func (s *Server) broadcastRoom(conversationID string, payload []byte) {
	for _, m := range s.rooms.Members(conversationID) {
		m.Enqueue(payload)
	}
}

// pushToUser delivers to the user's personal channel (every live device).
// Offline users simply have no clients; delivery drops naturally.
func (s *Server) pushToUser(userID string, payload []byte) {
	s.fanout.Broadcast(s.registry.ListByUser(userID), payload)
}

// emitError sends a scoped error event to one client, logging by class.
func (s *Server) emitError(c *Client, err error) {
	switch errs.Code(err) {
	case errs.ValidationErrCode:
		logger.Debugf("[chat] validation conn=%s err=%v", c.ConnID, err)
	case errs.PersistenceErrCode, errs.ServerInternalErrCode:
		logger.Errorf("[chat] %v conn=%s", err, c.ConnID)
	default:
		logger.Infof("[chat] %v conn=%s", err, c.ConnID)
	}
	c.Enqueue(BuildError(err))
}

// classifyStoreErr keeps already-classified store errors and folds the rest
// into the persistence class.
func classifyStoreErr(err error) error {
	if err == nil {
		return nil
	}
	switch errs.Code(err) {
	case errs.AuthenticationErrCode, errs.AuthorizationErrCode,
		errs.ValidationErrCode, errs.NotFoundErrCode, errs.PersistenceErrCode:
		return err
	}
	return errs.ErrPersistence.WrapMsg(err.Error())
}

// claimConversationNew implements the dedup window for conversation:created
// retries: redis when available, an in-process TTL map otherwise.
func (s *Server) claimConversationNew(conversationID string) bool {
	if claimed, err := s.claimViaRedis(conversationID); err == nil {
		return claimed
	}
	s.convMu.Lock()
	defer s.convMu.Unlock()
	now := time.Now()
	for id, at := range s.convSeen {
		if now.Sub(at) > s.cfg.DedupWindow {
			delete(s.convSeen, id)
		}
	}
	if _, seen := s.convSeen[conversationID]; seen {
		return false
	}
	s.convSeen[conversationID] = now
	return true
}
