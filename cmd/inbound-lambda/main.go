package main

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/bl-concierge/cmd/mainconfig"
	"github.com/wolfman30/bl-concierge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// processor handles one queued message body.
type processor interface {
	Process(ctx context.Context, body string) error
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

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

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, false)
	pool := bootstrap.ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	activityDB, err := bootstrap.OpenActivityDB(ctx, cfg)
	if err != nil {
		logger.Warn("activity log database unavailable; logging activity only", "error", err)
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
	worker := messaging.NewWorker(msgRouter, queue, jobs, logger)

	lambda.Start(func(ctx context.Context, evt events.SQSEvent) (events.SQSEventResponse, error) {
		return handle(ctx, worker, logger, evt), nil
	})
}

// handle processes each record and reports the ones SQS should redeliver.
// Undecodable bodies are dropped since a retry cannot fix them.
func handle(ctx context.Context, p processor, logger *logging.Logger, evt events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range evt.Records {
		err := p.Process(ctx, record.Body)
		if err == nil {
			continue
		}
		if errors.Is(err, messaging.ErrUndecodable) {
			logger.Error("dropping undecodable inbound message", "msg_id", record.MessageId, "error", err)
			continue
		}
		logger.Warn("inbound message will be retried", "msg_id", record.MessageId, "error", err)
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return resp
}
