package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"PulseIM/global"
	"PulseIM/logger"
	mid "PulseIM/middleware"
	chatmod "PulseIM/module/chat"
	"PulseIM/module/user"
	"PulseIM/service/chat"
	"PulseIM/service/mgo"
	"PulseIM/tools/security"
)

// jwtIdentity adapts the token tooling to the coordinator's Identity port.
type jwtIdentity struct{}

func (jwtIdentity) Verify(token string) (string, string, error) {
	id, err := security.Verify(global.JWTOptions(), token)
	if err != nil {
		return "", "", err
	}
	return id.UserID, id.Username, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := global.Load()
	global.ConfigIds(cfg)
	global.ConfigRedis(cfg)
	global.ConfigMiddleware()
	if err := global.ConfigMgo(ctx, cfg); err != nil {
		logger.Errorf("mongo init: %v", err)
		return
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mgo.Close(c)
	}()

	outbox := global.ConfigNats(cfg)
	defer outbox.Close()

	srv := chat.NewServer(
		chat.Config{NodeID: cfg.NodeID},
		chatmod.NewMongoStore(),
		jwtIdentity{},
		outbox,
	)
	defer srv.Close()

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", srv.HandleWS) // e.g. ws://localhost:8080/ws, AUTH frame first

	mid.POST(r, "/api/auth/register", user.HandlerRegister, mid.RouteOpt{IsAuth: false})
	mid.POST(r, "/api/auth/login", user.HandlerLogin, mid.RouteOpt{IsAuth: false})
	mid.GET(r, "/api/users", user.HandlerList, mid.RouteOpt{IsAuth: true})

	mid.POST(r, "/api/conversations", chatmod.HandlerCreateConversation, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/conversations", chatmod.HandlerListConversations, mid.RouteOpt{IsAuth: true})
	mid.GET(r, "/api/conversations/:id/messages", chatmod.HandlerListMessages, mid.RouteOpt{IsAuth: true})

	mid.GET(r, "/api/notifications", chatmod.HandlerListNotifications, mid.RouteOpt{IsAuth: true})
	mid.PUT(r, "/api/notifications/:id/read", chatmod.HandlerMarkNotificationRead, mid.RouteOpt{IsAuth: true})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Infof("[HTTP] listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("http server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutCtx)
}
