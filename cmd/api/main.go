package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/bl-concierge/cmd/mainconfig"
	"github.com/wolfman30/bl-concierge/internal/api/router"
	"github.com/wolfman30/bl-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bl-concierge/internal/http/middleware"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/webchat"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bl-concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"memory_queue", cfg.UseMemoryQueue,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
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

	metricsHandler, turnMetrics := setupMetrics()
	concierge := bootstrap.BuildConcierge(bootstrap.Dependencies{
		Config:  cfg,
		AWS:     awsCfg,
		Redis:   redisClient,
		Pool:    pool,
		SQLDB:   activityDB,
		LLM:     llmClient,
		Metrics: turnMetrics,
		Logger:  logger,
	})

	queue, memoryQueue := bootstrap.BuildQueue(cfg, awsCfg)
	jobs := bootstrap.BuildJobStore(cfg, awsCfg, logger)
	hub := webchat.NewHub()
	messenger := webchat.NewReplyMessenger(hub, bootstrap.BuildOutboundMessenger(cfg, logger), logger)
	msgRouter := bootstrap.BuildMessageRouter(cfg, concierge, messenger, turnMetrics, logger)

	worker := setupInlineWorker(ctx, cfg, msgRouter, memoryQueue, jobs, logger)

	routerCfg := &router.Config{
		Logger:             logger,
		MessagesHandler:    messaging.NewHandler(messaging.NewPublisher(queue, jobs, logger), jobs, logger),
		WebChat:            webchat.NewHandler(msgRouter, hub, concierge.Sessions, logger),
		AdminSessions:      handlers.NewAdminSessionsHandler(concierge.Sessions, concierge.Engine, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatRateLimiter:    httpmiddleware.NewRateLimiter(cfg.ChatRateLimitRPS, cfg.ChatRateLimitBurst),
	}
	if concierge.ActivityLog != nil {
		routerCfg.AdminActivity = handlers.NewAdminActivityHandler(concierge.ActivityLog, logger)
	}
	if concierge.Receipts != nil {
		routerCfg.AdminReceipts = handlers.NewAdminReceiptsHandler(concierge.Receipts, logger)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	waitForInlineWorker(worker, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func setupMetrics() (http.Handler, *metrics.TurnMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewTurnMetrics(reg)
}

// setupInlineWorker runs the worker pool in-process when the memory queue is
// in use; otherwise cmd/turn-worker or the Lambda consumes the SQS queue.
func setupInlineWorker(ctx context.Context, cfg *appconfig.Config, r *messaging.Router, memoryQueue *messaging.MemoryQueue, jobs messaging.JobUpdater, logger *logging.Logger) *messaging.Worker {
	if !cfg.UseMemoryQueue || memoryQueue == nil {
		return nil
	}
	worker := messaging.NewWorker(r, memoryQueue, jobs, logger,
		messaging.WithWorkerCount(cfg.WorkerCount),
		messaging.WithReceiveWaitSeconds(1),
	)
	worker.Start(ctx)
	logger.Info("inline turn worker started", "workers", cfg.WorkerCount)
	return worker
}

func waitForInlineWorker(worker *messaging.Worker, logger *logging.Logger) {
	if worker == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		worker.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info("inline turn worker stopped")
	case <-time.After(30 * time.Second):
		logger.Error("inline turn worker shutdown timed out")
	}
}
