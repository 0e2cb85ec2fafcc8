// Command notification stores notification events and pushes them over
// websockets.
package main

import (
	"context"
	"os"

	"github.com/linkup/linkup/backend/go-services/handlers"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/config"
	"github.com/linkup/linkup/backend/go-services/internal/database"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/notifications"
	"github.com/linkup/linkup/backend/go-services/internal/server"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/internal/userclient"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetService("notification")

	cfg, err := config.LoadConfig("5004")
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := server.SignalContext()
	defer stop()

	verifier, err := tokens.NewIssuerFromPEM("", cfg.JWT.PublicKeyPEM)
	if err != nil {
		logger.Fatalf("jwt public key: %v", err)
	}

	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("mongo: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	repo := notifications.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection(notifications.Collection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warnf("notification indexes: %v", err)
	}

	rdb := server.Redis(ctx, cfg.Redis)
	if rdb == nil {
		logger.Fatalf("the notification service needs Redis for the event channel")
	}
	defer rdb.Close()

	hub := notifications.NewHub()
	defer hub.CloseAll()
	users := userclient.New(cfg.Services.UserServiceURL, cfg.Services.Secret, cfg.Services.Timeout)
	svc := notifications.NewService(repo, cache.New(rdb), hub, users)

	go func() {
		if err := events.Subscribe(ctx, rdb, svc.Handle); err != nil {
			logger.Errorf("event subscription ended: %v", err)
			stop()
		}
	}()

	r := server.New(cfg, rdb, map[string]handlers.Check{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		"redis": server.RedisCheck(rdb),
	})
	authn := middleware.Authenticate(verifier)
	h := notifications.NewHandler(svc, hub)
	h.Register(r.Group("/api/v1"), authn)
	h.RegisterSocket(r, authn)
	handlers.RegisterSwagger(r, "linkup notification service")

	if err := server.Run(ctx, cfg.Server, "notification", r); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
