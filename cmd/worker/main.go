package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/config"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/engine"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/notify"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/objectstore"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/logger"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/shutdown"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/queue"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/steps"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/store"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/worker"
)

func main() {
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "media-worker",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting media pipeline worker")

	cfg, err := config.Load(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}
	if cfg.Database.DSN == "" {
		log.LogFatal("missing database DSN (set DATABASE_URL)", nil)
	}

	if !steps.Available(cfg.Steps.FfmpegPath) {
		log.LogFatal("ffmpeg not found in PATH", nil, "path", cfg.Steps.FfmpegPath)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	// Canceling the run context first lets in-flight jobs stop and requeue
	// before connections are torn down.
	shutdownMgr.Register("worker-pool", func(ctx context.Context) error {
		cancel()
		return nil
	})

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(runCtx, cfg.Database.DSN)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	if err := pool.Ping(runCtx); err != nil {
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
	log.Info("RabbitMQ connected", "queue", cfg.Queue.Name, "prefetch", cfg.Queue.Prefetch)

	log.Info("initializing object store gateway")
	gateway, err := objectstore.NewS3(runCtx, cfg.S3)
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
	registry := steps.NewRegistry(steps.Deps{
		Gateway:       gateway,
		FfmpegPath:    cfg.Steps.FfmpegPath,
		WatermarkText: cfg.Steps.WatermarkText,
		Log:           log,
	})
	eng := engine.New(engine.Deps{
		Ledger:      ledger,
		Registry:    registry,
		Notifier:    notifier,
		Log:         log,
		MaxAttempts: cfg.Worker.MaxAttempts,
		StepTimeout: cfg.StepTimeout(),
		BackoffBase: cfg.BackoffBase(),
	})

	go shutdownMgr.Wait()

	err = worker.Run(runCtx, worker.Deps{
		Queue:       q,
		Leaser:      ledger,
		Executor:    eng,
		Log:         log,
		Concurrency: cfg.Worker.Concurrency,
		LeaseTTL:    cfg.LeaseTTL(),
	})
	if err != nil && runCtx.Err() == nil {
		log.LogFatal("worker pool failed", err)
	}

	if runCtx.Err() != nil {
		// Signal-driven stop: let the shutdown manager finish cleanup.
		<-shutdownMgr.Done()
	}
	log.Info("worker exited")
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}
