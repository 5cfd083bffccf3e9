package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

var (
	rdb *redis.Client
	ctx = context.Background()
)

func InitRedis(c Config) error {
	cli := redis.NewClient(&redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB})
	if err := cli.Ping(ctx).Err(); err != nil {
		return err
	}
	rdb = cli
	return nil
}

func Enabled() bool { return rdb != nil }

// presence key: im:presence:<user>
// Value: gateway node id, TTL bounds staleness if the process dies hard.
func presenceKey(user string) string { return "im:presence:" + user }

// dedup key: im:convnew:<conversationId>
func convNewKey(convID string) string { return "im:convnew:" + convID }

// PresenceOnline mirrors an online user into redis and renews the TTL.
func PresenceOnline(user, nodeID string, ttl time.Duration) error {
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	return rdb.Set(ctx, presenceKey(user), nodeID, ttl).Err()
}

// PresenceOffline deletes the presence key.
func PresenceOffline(user string) error {
	if rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	return rdb.Del(ctx, presenceKey(user)).Err()
}

// PresenceLookup reports whether the user has a live presence mirror entry.
func PresenceLookup(user string) (nodeID string, online bool, err error) {
	if rdb == nil {
		return "", false, fmt.Errorf("redis not initialized")
	}
	val, err := rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// ClaimConversationNew claims the one-shot delivery slot for a freshly created
// conversation. Returns true exactly once per conversation id per window; a
// second claim within the window means a client retry and must be dropped.
func ClaimConversationNew(convID string, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis not initialized")
	}
	return rdb.SetNX(ctx, convNewKey(convID), "1", window).Result()
}
