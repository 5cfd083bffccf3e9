package chat

import (
	"sync"
	"time"

	"PulseIM/logger"
)

// Registry owns the userID -> connID -> client mapping. It is the single
// source of truth for liveness: online(u) == len(byUser[u]) > 0.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // user -> conn_id -> client
	byConn map[string]*Client            // conn_id -> client

	// recently unregistered conn ids; registering one again is a no-op
	// failure, not a crash
	tombstones   map[string]time.Time
	tombstoneTTL time.Duration
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:       make(map[string]map[string]*Client),
		byConn:       make(map[string]*Client),
		tombstones:   make(map[string]time.Time),
		tombstoneTTL: 30 * time.Second,
	}
}

// Register adds the client. Returns (first, ok): first is true when this was
// the user's 0->1 transition; ok is false for duplicate or already-
// unregistered connection ids (logged, nothing mutated).
func (r *Registry) Register(c *Client) (first bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneTombstonesLocked()

	if _, dead := r.tombstones[c.ConnID]; dead {
		logger.Warn("[registry] register after unregister ignored conn=" + c.ConnID)
		return false, false
	}
	if _, dup := r.byConn[c.ConnID]; dup {
		logger.Warn("[registry] duplicate conn id ignored conn=" + c.ConnID)
		return false, false
	}

	m := r.byUser[c.UserID]
	if m == nil {
		m = make(map[string]*Client)
		r.byUser[c.UserID] = m
	}
	m[c.ConnID] = c
	r.byConn[c.ConnID] = c
	return len(m) == 1, true
}

// Unregister removes the connection. Returns the owning user id and whether
// this was the user's 1->0 transition. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) (userID string, last bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneTombstonesLocked()

	c, found := r.byConn[connID]
	if !found {
		return "", false, false
	}
	delete(r.byConn, connID)
	r.tombstones[connID] = time.Now()

	if m := r.byUser[c.UserID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(r.byUser, c.UserID)
			return c.UserID, true, true
		}
	}
	return c.UserID, false, true
}

// ActiveConnections lists the user's live connection ids.
func (r *Registry) ActiveConnections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[userID]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

func (r *Registry) GetByConn(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// ListByUser returns the user's clients (the personal channel).
func (r *Registry) ListByUser(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byUser[userID]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// ListAllExcept returns every client not belonging to userID; used for the
// user:online / user:offline broadcast.
func (r *Registry) ListAllExcept(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		if c.UserID != userID {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) pruneTombstonesLocked() {
	if len(r.tombstones) == 0 {
		return
	}
	cutoff := time.Now().Add(-r.tombstoneTTL)
	for id, at := range r.tombstones {
		if at.Before(cutoff) {
			delete(r.tombstones, id)
		}
	}
}
