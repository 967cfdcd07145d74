package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/config"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpapi"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/httpapi/handlers"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/migrate"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/notify"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/objectstore"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/shutdown"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/queue"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/resolver"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/store"
)

func main() {
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "media-api",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting media pipeline API")

	cfg, err := config.Load(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}
	if cfg.Database.DSN == "" {
		log.LogFatal("missing database DSN (set DATABASE_URL)", nil)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Migrations run on API start so a fresh environment needs no extra tool.
	log.Info("applying database migrations")
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.LogFatal("failed to apply migrations", err)
	}

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	log.Info("connecting to RabbitMQ")
	q, err := queue.DialAMQP(cfg.Queue.URL, cfg.Queue.Name, cfg.Queue.Prefetch)
	if err != nil {
		log.LogFatal("failed to connect to RabbitMQ", err)
	}
	shutdownMgr.Register("rabbitmq", func(ctx context.Context) error {
		return q.Close()
	})
	log.Info("RabbitMQ connected", "queue", cfg.Queue.Name)

	log.Info("initializing object store gateway")
	gateway, err := objectstore.NewS3(ctx, cfg.S3)
	if err != nil {
		log.LogFatal("failed to initialize object store gateway", err)
	}

	notifier := notify.New(cfg.Redis.Addr, cfg.Redis.Channel)
	if notifier != nil {
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return notifier.Close()
		})
	}

	ledger := store.New(pool)
	res := resolver.New(gateway, time.Duration(cfg.S3.PresignGetExpiry)*time.Second)

	router := httpapi.NewRouter(handlers.Deps{
		Ledger:    ledger,
		Publisher: q,
		Resolver:  res,
		Presigner: gateway,
		Log:       log,
		HealthChecks: map[string]func(ctx context.Context) error{
			"postgres": pool.Ping,
			"rabbitmq": q.Ping,
			"redis":    notifier.Ping,
			"storage": func(ctx context.Context) error {
				_, err := gateway.Exists(ctx, ".healthcheck")
				return err
			},
		},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}
