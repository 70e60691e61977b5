package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// JobStore both records accepted jobs and finalises them.
type JobStore interface {
	messaging.JobRecorder
	messaging.JobUpdater
}

// BuildOutboundMessenger delivers replies to the chat gateway webhook, or
// only logs them when no webhook is configured.
func BuildOutboundMessenger(cfg *appconfig.Config, logger *logging.Logger) messaging.Messenger {
	if url := strings.TrimSpace(cfg.OutboundWebhookURL); url != "" {
		return messaging.NewWebhookMessenger(url, &http.Client{Timeout: 15 * time.Second}, logger)
	}
	logger.Warn("OUTBOUND_WEBHOOK_URL not set; replies are only logged")
	return messaging.NewLogMessenger(logger)
}

// BuildQueue returns the in-process queue when USE_MEMORY_QUEUE is set and
// the SQS queue otherwise.
func BuildQueue(cfg *appconfig.Config, awsCfg aws.Config) (messaging.Queue, *messaging.MemoryQueue) {
	if cfg.UseMemoryQueue {
		mq := messaging.NewMemoryQueue(1024)
		return mq, mq
	}
	return messaging.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.InboundQueueURL), nil
}

// BuildJobStore keeps jobs in memory alongside the memory queue and in
// DynamoDB otherwise.
func BuildJobStore(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) JobStore {
	if cfg.UseMemoryQueue {
		return messaging.NewMemoryJobStore()
	}
	return messaging.NewJobStore(dynamodb.NewFromConfig(awsCfg), cfg.TurnJobsTable, logger)
}

// BuildMessageRouter assembles the inbound router around the concierge.
func BuildMessageRouter(cfg *appconfig.Config, c *Concierge, messenger messaging.Messenger, m *metrics.TurnMetrics, logger *logging.Logger) *messaging.Router {
	return messaging.NewRouter(c.Engine, messenger, logger,
		messaging.WithExtractor(c.Extractor),
		messaging.WithDeduper(c.Deduper),
		messaging.WithActivity(c.Activity),
		messaging.WithMetrics(m),
		messaging.WithAdminID(cfg.AdminID),
	)
}
