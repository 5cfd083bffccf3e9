package global

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"PulseIM/logger"
	mid "PulseIM/middleware"
	midsec "PulseIM/middleware/security"
	"PulseIM/service/mgo"
	"PulseIM/service/natsx"
	"PulseIM/service/storage"
	"PulseIM/tools/ids"
	"PulseIM/tools/security"
)

// AppConfig is read from the environment at startup. Every field has a
// development default so a bare `go run .` comes up against local services.
type AppConfig struct {
	NodeID   string
	Port     int
	MongoURI string
	MongoDB  string
	MongoUsr string
	MongoPwd string
	Redis    string
	RedisPwd string
	NatsURLs string
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func Load() AppConfig {
	return AppConfig{
		NodeID:   env("NODE_ID", "pulse-1"),
		Port:     envInt("PORT", 8080),
		MongoURI: env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  env("MONGO_DB", "pulseim"),
		MongoUsr: env("MONGO_USER", ""),
		MongoPwd: env("MONGO_PASSWORD", ""),
		Redis:    env("REDIS_ADDR", ""),
		RedisPwd: env("REDIS_PASSWORD", ""),
		NatsURLs: env("NATS_URLS", ""),
	}
}

func GetJwtSecret() []byte {
	return []byte(env("JWT_SECRET", "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o="))
}

func JWTOptions() security.Options {
	return security.DefaultOptions(GetJwtSecret())
}

func ConfigIds(cfg AppConfig) {
	var node int64 = 100
	// derive a stable node id from the suffix of NODE_ID when it has one
	if i := strings.LastIndexByte(cfg.NodeID, '-'); i >= 0 {
		if n, err := strconv.ParseInt(cfg.NodeID[i+1:], 10, 64); err == nil {
			node = n
		}
	}
	ids.SetNodeID(node)
}

func ConfigMiddleware() {
	mid.UseAuth(midsec.DefaultOptions(JWTOptions()))
}

// ConfigRedis is optional: without REDIS_ADDR the gateway runs single-node
// with in-process presence and dedup only.
func ConfigRedis(cfg AppConfig) {
	if cfg.Redis == "" {
		logger.Info("redis disabled, using in-process presence")
		return
	}
	if err := storage.InitRedis(storage.Config{Addr: cfg.Redis, Password: cfg.RedisPwd}); err != nil {
		logger.Errorf("redis init: %v", err)
	}
}

func ConfigMgo(ctx context.Context, cfg AppConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return mgo.Init(ctx, &mgo.Config{
		Uri:         cfg.MongoURI,
		Database:    cfg.MongoDB,
		Username:    cfg.MongoUsr,
		Password:    cfg.MongoPwd,
		MaxPoolSize: 20,
		MaxRetry:    5,
	})
}

// ConfigNats is optional: a nil outbox disables offline push publishing.
func ConfigNats(cfg AppConfig) *natsx.Outbox {
	if cfg.NatsURLs == "" {
		logger.Info("nats disabled, offline push publishing off")
		return nil
	}
	out, err := natsx.NewOutbox(natsx.Config{
		Servers: strings.Split(cfg.NatsURLs, ","),
		Name:    cfg.NodeID,
	})
	if err != nil {
		logger.Errorf("nats init: %v", err)
		return nil
	}
	return out
}
