// Command user serves profiles, skills, pictures and connections, plus the
// internal directory API the other services call.
package main

import (
	"context"
	"os"

	"github.com/linkup/linkup/backend/go-services/handlers"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/config"
	"github.com/linkup/linkup/backend/go-services/internal/database"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/server"
	"github.com/linkup/linkup/backend/go-services/internal/sessions"
	"github.com/linkup/linkup/backend/go-services/internal/storage"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/internal/users"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetService("user")

	cfg, err := config.LoadConfig("5002")
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := server.SignalContext()
	defer stop()

	verifier, err := tokens.NewIssuerFromPEM("", cfg.JWT.PublicKeyPEM)
	if err != nil {
		logger.Fatalf("jwt public key: %v", err)
	}

	db, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Timeout)
	if err != nil {
		logger.Fatalf("postgres: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, users.Schema); err != nil {
		logger.Fatalf("%v", err)
	}

	rdb := server.Redis(ctx, cfg.Redis)
	var (
		pub     events.Publisher
		revoker users.SessionRevoker
	)
	if rdb != nil {
		defer rdb.Close()
		pub = events.NewRedisPublisher(rdb)
		revoker = sessions.NewService(sessions.NewRedisRepository(rdb, cfg.JWT.RefreshTokenTTL))
	}

	checks := map[string]handlers.Check{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
		"redis":    server.RedisCheck(rdb),
	}

	var pictures users.PictureStore
	if cfg.MinIO.Endpoint != "" {
		store, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("minio unavailable, picture uploads disabled: %v", err)
		} else {
			pictures = store
			checks["minio"] = store.Ping
		}
	}

	urls := users.PictureURLs{Base: cfg.Pictures.BaseURL, Default: cfg.Pictures.DefaultURL}
	svc := users.NewService(users.NewPostgresRepository(db, urls), cache.New(rdb), urls, pictures, revoker, pub)

	r := server.New(cfg, rdb, checks)
	users.NewHandler(svc).Register(r.Group("/api/v1"), middleware.Authenticate(verifier))
	users.NewRPCHandler(svc).Register(r, cfg.Services.Secret)
	handlers.RegisterSwagger(r, "linkup user service")

	if err := server.Run(ctx, cfg.Server, "user", r); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
