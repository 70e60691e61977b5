package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/bl-concierge/cmd/mainconfig"
	"github.com/wolfman30/bl-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	if cfg.InboundQueueURL == "" {
		logger.Error("INBOUND_QUEUE_URL is required for the turn worker")
		os.Exit(1)
	}

	llmClient, err := bootstrap.BuildLLMClient(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to configure language model", "error", err)
		os.Exit(1)
	}
	if closer, ok := llmClient.(io.Closer); ok {
		defer closer.Close()
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		defer pool.Close()
	}
	activityDB, err := bootstrap.OpenActivityDB(ctx, cfg)
	if err != nil {
		logger.Warn("activity log database unavailable; logging activity only", "error", err)
	}
	if activityDB != nil {
		defer activityDB.Close()
	}

	concierge := bootstrap.BuildConcierge(bootstrap.Dependencies{
		Config: cfg,
		AWS:    awsCfg,
		Redis:  redisClient,
		Pool:   pool,
		SQLDB:  activityDB,
		LLM:    llmClient,
		Logger: logger,
	})
	queue, _ := bootstrap.BuildQueue(cfg, awsCfg)
	jobs := bootstrap.BuildJobStore(cfg, awsCfg, logger)
	msgRouter := bootstrap.BuildMessageRouter(cfg, concierge, bootstrap.BuildOutboundMessenger(cfg, logger), nil, logger)

	worker := messaging.NewWorker(msgRouter, queue, jobs, logger,
		messaging.WithWorkerCount(cfg.WorkerCount),
	)
	worker.Start(ctx)
	logger.Info("turn worker started", "workers", cfg.WorkerCount, "queue", cfg.InboundQueueURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down turn worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("turn worker stopped")
	case <-doneCtx.Done():
		logger.Error("turn worker shutdown timed out", "error", doneCtx.Err())
	}
}
