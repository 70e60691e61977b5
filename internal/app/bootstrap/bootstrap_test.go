package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/docextract"
	"github.com/wolfman30/bl-concierge/internal/engine"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/internal/messaging"
	"github.com/wolfman30/bl-concierge/internal/notify"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		SessionBackend:    "memory",
		SessionMaxEntries: 100,
		SessionTTL:        time.Hour,
		VerificationTTL:   2 * time.Hour,
		DedupeTTL:         2 * time.Second,
		VerifyBaseURL:     "http://127.0.0.1:1",
		VerifyTimeout:     time.Second,
		UseMemoryQueue:    true,
		AWSRegion:         "us-east-1",
	}
}

func TestBuildRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))

	cfg.RedisAddr = ""
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), false))
}

func TestBuildSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisAddr = mr.Addr()
	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), false)
	defer client.Close()

	_, isMemory := BuildSessionStore(cfg, client, logging.Discard()).(*session.MemoryStore)
	assert.True(t, isMemory)

	cfg.SessionBackend = "redis"
	_, isRedis := BuildSessionStore(cfg, client, logging.Discard()).(*session.RedisStore)
	assert.True(t, isRedis)

	_, isMemory = BuildSessionStore(cfg, nil, logging.Discard()).(*session.MemoryStore)
	assert.True(t, isMemory, "redis requested without a client falls back to memory")

	_, isRedisDedupe := BuildDeduper(cfg, client).(*session.RedisDeduper)
	assert.True(t, isRedisDedupe)
	_, isMemoryDedupe := BuildDeduper(cfg, nil).(*session.MemoryDeduper)
	assert.True(t, isMemoryDedupe)
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, ConnectPostgresPool(context.Background(), "", logging.Discard()))
}

func TestOpenActivityDBDisabled(t *testing.T) {
	cfg := testConfig()
	db, err := OpenActivityDB(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestBuildLLMClient(t *testing.T) {
	cfg := testConfig()

	_, err := BuildLLMClient(context.Background(), nil, aws.Config{}, logging.Discard())
	require.Error(t, err)

	cfg.LLMProvider = "openai"
	client, err := BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, llm.Unconfigured{}, client)

	cfg.OpenAIAPIKey = "sk-test"
	cfg.OpenAIPrimaryModel = "gpt-4o"
	cfg.OpenAIFallbackModel = "gpt-3.5-turbo"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.RateLimitFallback{}, client)

	cfg.OpenAIFallbackModel = "gpt-4o"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.OpenAIClient{}, client)

	cfg.LLMProvider = "bedrock"
	cfg.BedrockModelID = "anthropic.claude-3-haiku"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{Region: "us-east-1"}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, &llm.BedrockClient{}, client)

	cfg.LLMProvider = "gemini"
	client, err = BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.IsType(t, llm.Unconfigured{}, client)

	cfg.LLMProvider = "mystery"
	_, err = BuildLLMClient(context.Background(), cfg, aws.Config{}, logging.Discard())
	require.Error(t, err)
}

func TestBuildExtractor(t *testing.T) {
	cfg := testConfig()
	assert.IsType(t, &docextract.LLMExtractor{}, BuildExtractor(cfg, llm.Unconfigured{}, logging.Discard()))

	cfg.PDFExtractionURL = "http://extractor.internal/extract"
	assert.IsType(t, &docextract.RemoteExtractor{}, BuildExtractor(cfg, llm.Unconfigured{}, logging.Discard()))
}

func TestBuildEmailSender(t *testing.T) {
	cfg := testConfig()
	awsCfg := aws.Config{Region: "us-east-1"}

	cfg.EmailProvider = "none"
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(cfg, awsCfg, logging.Discard()))

	cfg.EmailProvider = "ses"
	assert.IsType(t, &notify.StubEmailSender{}, BuildEmailSender(cfg, awsCfg, logging.Discard()))
	cfg.SESFromEmail = "support@iqstrade.com"
	assert.IsType(t, &notify.SESSender{}, BuildEmailSender(cfg, awsCfg, logging.Discard()))

	cfg.EmailProvider = "sendgrid"
	cfg.SendGridAPIKey = "SG.test"
	cfg.SendGridFromEmail = "support@iqstrade.com"
	assert.IsType(t, &notify.SendGridSender{}, BuildEmailSender(cfg, awsCfg, logging.Discard()))
}

type recordingMessenger struct {
	sent []messaging.OutboundMessage
}

func (r *recordingMessenger) Send(_ context.Context, recipient, text string) error {
	r.sent = append(r.sent, messaging.OutboundMessage{Recipient: recipient, Text: text})
	return nil
}

func TestBuildConciergeRoutesCannedAnswer(t *testing.T) {
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	m := metrics.NewTurnMetrics(reg)

	c := BuildConcierge(Dependencies{
		Config:  cfg,
		LLM:     llm.Unconfigured{},
		Metrics: m,
		Logger:  logging.Discard(),
	})
	require.NotNil(t, c.Engine)
	assert.Nil(t, c.ActivityLog)
	assert.Nil(t, c.Receipts)

	out := &recordingMessenger{}
	router := BuildMessageRouter(cfg, c, out, m, logging.Discard())
	res, err := router.Route(context.Background(), messaging.InboundMessage{
		Sender:    "85290001111",
		MessageID: "wamid.1",
		Text:      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, messaging.RouteReplied, res.Status)
	require.Len(t, out.sent, 1)
	assert.NotEmpty(t, out.sent[0].Text)

	reply := c.Engine.ProcessTurn(context.Background(), "85290001112", "hello", engine.TurnContext{})
	assert.Equal(t, out.sent[0].Text, reply)
}

func TestBuildQueueAndJobStore(t *testing.T) {
	cfg := testConfig()
	q, mq := BuildQueue(cfg, aws.Config{})
	assert.NotNil(t, mq)
	assert.Same(t, mq, q)
	assert.IsType(t, &messaging.MemoryJobStore{}, BuildJobStore(cfg, aws.Config{}, logging.Discard()))

	cfg.UseMemoryQueue = false
	cfg.InboundQueueURL = "http://localhost:4566/000000000000/inbound"
	cfg.TurnJobsTable = "turn_jobs"
	q, mq = BuildQueue(cfg, aws.Config{Region: "us-east-1"})
	assert.Nil(t, mq)
	assert.IsType(t, &messaging.SQSQueue{}, q)
	assert.IsType(t, &messaging.JobStore{}, BuildJobStore(cfg, aws.Config{Region: "us-east-1"}, logging.Discard()))
}
