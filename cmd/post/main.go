// Command post serves posts, likes, comments, feeds and trending.
package main

import (
	"context"
	"os"

	"github.com/linkup/linkup/backend/go-services/handlers"
	"github.com/linkup/linkup/backend/go-services/internal/cache"
	"github.com/linkup/linkup/backend/go-services/internal/config"
	"github.com/linkup/linkup/backend/go-services/internal/database"
	"github.com/linkup/linkup/backend/go-services/internal/events"
	"github.com/linkup/linkup/backend/go-services/internal/posts"
	"github.com/linkup/linkup/backend/go-services/internal/server"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/internal/userclient"
	"github.com/linkup/linkup/backend/go-services/pkg/logger"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetService("post")

	cfg, err := config.LoadConfig("5003")
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
	if err := database.Migrate(ctx, db, posts.Schema); err != nil {
		logger.Fatalf("%v", err)
	}

	rdb := server.Redis(ctx, cfg.Redis)
	var pub events.Publisher
	if rdb != nil {
		defer rdb.Close()
		pub = events.NewRedisPublisher(rdb)
	}

	users := userclient.New(cfg.Services.UserServiceURL, cfg.Services.Secret, cfg.Services.Timeout)
	svc := posts.NewService(posts.NewPostgresRepository(db), users, cache.New(rdb), pub)

	r := server.New(cfg, rdb, map[string]handlers.Check{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
		"redis":    server.RedisCheck(rdb),
	})
	posts.NewHandler(svc).Register(r.Group("/api/v1"), middleware.Authenticate(verifier))
	handlers.RegisterSwagger(r, "linkup post service")

	if err := server.Run(ctx, cfg.Server, "post", r); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
