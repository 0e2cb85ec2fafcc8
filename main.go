// Command auth is the session service: register, login, refresh and logout.
package main

import (
	"os"

	"github.com/linkup/linkup/backend/go-services/handlers"
	"github.com/linkup/linkup/backend/go-services/internal/auth"
	"github.com/linkup/linkup/backend/go-services/internal/config"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/server"
	"github.com/linkup/linkup/backend/go-services/internal/sessions"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/internal/userclient"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetService("auth")

	cfg, err := config.LoadConfig("5001")
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: redis=%v users=%s", cfg.Redis.Addr() != "", cfg.Services.UserServiceURL)

	ctx, stop := server.SignalContext()
	defer stop()

	issuer, err := tokens.NewIssuerFromPEM(cfg.JWT.PrivateKeyPEM, cfg.JWT.PublicKeyPEM)
	if err != nil {
		logger.Fatalf("jwt keys: %v", err)
	}

	rdb := server.Redis(ctx, cfg.Redis)
	if rdb == nil {
		logger.Fatalf("the auth service needs Redis for sessions")
	}
	defer rdb.Close()

	sessionSvc := sessions.NewService(sessions.NewRedisRepository(rdb, cfg.JWT.RefreshTokenTTL))
	users := userclient.New(cfg.Services.UserServiceURL, cfg.Services.Secret, cfg.Services.Timeout)
	svc := auth.NewService(users, sessionSvc, issuer, sessions.NewAttemptLimiter(rdb), events.NewRedisPublisher(rdb))

	r := server.New(cfg, rdb, map[string]handlers.Check{
		"redis": server.RedisCheck(rdb),
	})
	handlers.NewAuthHandler(svc, cfg.Production()).Register(r.Group("/api/v1"))
	handlers.RegisterSwagger(r, "linkup auth service")

	if err := server.Run(ctx, cfg.Server, "auth", r); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
