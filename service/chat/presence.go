package chat

import (
	"context"
	"time"

	"PulseIM/logger"
	"PulseIM/service/storage"
)

// Presence derives online/offline from the registry and reacts to 0<->1
// transitions only: the durable flags and the user:online/user:offline
// broadcast fire once per user, not once per device. A second device
// connecting or one of several disconnecting is silent, which avoids
// redundant store writes and offline flaps.
type Presence struct {
	registry *Registry
	store    Store
	fanout   *Fanout
	nodeID   string
	mirror   time.Duration
}

func NewPresence(registry *Registry, store Store, fanout *Fanout, nodeID string, mirrorTTL time.Duration) *Presence {
	return &Presence{registry: registry, store: store, fanout: fanout, nodeID: nodeID, mirror: mirrorTTL}
}

// HandleConnect runs after a successful Register. first is the registry's
// 0->1 verdict for this user.
func (p *Presence) HandleConnect(ctx context.Context, c *Client, first bool) {
	if !first {
		return
	}
	if err := p.store.SetUserOnline(ctx, c.UserID, true); err != nil {
		// live presence still derives from the registry; the durable flag
		// catches up on the next transition
		logger.Errorf("[presence] persist online user=%s err=%v", c.UserID, err)
	}
	if storage.Enabled() {
		if err := storage.PresenceOnline(c.UserID, p.nodeID, p.mirror); err != nil {
			logger.Warn("[presence] redis mirror online failed: " + err.Error())
		}
	}
	p.fanout.Broadcast(p.registry.ListAllExcept(c.UserID), BuildUserOnline(c.UserID, c.Username))
}

// HandleDisconnect runs after Unregister. last is the registry's 1->0 verdict.
func (p *Presence) HandleDisconnect(ctx context.Context, userID, username string, last bool) {
	if !last {
		return
	}
	if err := p.store.SetUserOnline(ctx, userID, false); err != nil {
		logger.Errorf("[presence] persist offline user=%s err=%v", userID, err)
	}
	if storage.Enabled() {
		if err := storage.PresenceOffline(userID); err != nil {
			logger.Warn("[presence] redis mirror offline failed: " + err.Error())
		}
	}
	p.fanout.Broadcast(p.registry.ListAllExcept(userID), BuildUserOffline(userID, username))
}
