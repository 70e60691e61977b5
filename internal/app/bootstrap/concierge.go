package bootstrap

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/bl-concierge/internal/activity"
	"github.com/wolfman30/bl-concierge/internal/canned"
	"github.com/wolfman30/bl-concierge/internal/classify"
	"github.com/wolfman30/bl-concierge/internal/compose"
	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/docextract"
	"github.com/wolfman30/bl-concierge/internal/engine"
	"github.com/wolfman30/bl-concierge/internal/llm"
	"github.com/wolfman30/bl-concierge/internal/localize"
	"github.com/wolfman30/bl-concierge/internal/lookup"
	"github.com/wolfman30/bl-concierge/internal/notify"
	"github.com/wolfman30/bl-concierge/internal/observability/metrics"
	"github.com/wolfman30/bl-concierge/internal/receipt"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/internal/verify"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// Dependencies are the shared clients a binary opens once. Redis, Pool and
// SQLDB are optional.
type Dependencies struct {
	Config  *appconfig.Config
	AWS     aws.Config
	Redis   *redis.Client
	Pool    *pgxpool.Pool
	SQLDB   *sql.DB
	LLM     llm.Client
	Metrics *metrics.TurnMetrics
	Logger  *logging.Logger
}

// Concierge is the assembled conversation core plus the pieces the HTTP
// layer and the inbound router need.
type Concierge struct {
	Engine    *engine.Engine
	Sessions  SessionStore
	Deduper   session.Deduper
	Activity  activity.Recorder
	Extractor docextract.Extractor
	// ActivityLog is nil without a database.
	ActivityLog *activity.PostgresRecorder
	// Receipts is nil when no bucket is configured.
	Receipts *receipt.S3Publisher
}

// BuildConcierge wires the engine and its collaborators from config.
func BuildConcierge(deps Dependencies) *Concierge {
	cfg := deps.Config
	if cfg == nil {
		panic("bootstrap: config cannot be nil")
	}
	if deps.LLM == nil {
		panic("bootstrap: llm client cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	store := buildLookupStore(deps.Pool, logger)
	c := &Concierge{
		Sessions:  BuildSessionStore(cfg, deps.Redis, logger),
		Deduper:   BuildDeduper(cfg, deps.Redis),
		Extractor: BuildExtractor(cfg, deps.LLM, logger),
	}

	c.Activity = activity.NewLogRecorder(logger)
	if deps.SQLDB != nil {
		c.ActivityLog = activity.NewPostgresRecorder(deps.SQLDB)
		c.Activity = c.ActivityLog
	}

	var issuer compose.ReceiptIssuer
	if strings.TrimSpace(cfg.ReceiptBucket) != "" {
		c.Receipts = receipt.NewS3Publisher(s3.NewFromConfig(deps.AWS), cfg.ReceiptBucket, cfg.ReceiptPublicBaseURL, logger)
		issuer = receipt.NewIssuer(c.Receipts, store, logger, receipt.WithMailer(BuildEmailSender(cfg, deps.AWS, logger)))
	} else {
		logger.Warn("RECEIPT_BUCKET not set; payments are confirmed without receipts")
	}

	matcher := canned.Default()
	gate := verify.NewGate(
		verify.NewHTTPChecker(cfg.VerifyBaseURL, cfg.VerifyTimeout),
		logger,
		verify.WithValidity(cfg.VerificationTTL),
	)
	c.Engine = engine.New(engine.Deps{
		Sessions:   c.Sessions,
		Gate:       gate,
		Lookup:     store,
		Matcher:    matcher,
		Classifier: classify.New(deps.LLM, matcher.Phrases(), logger),
		Composer:   compose.New(store, issuer, logger),
		Localizer:  localize.New(localize.NewLLMTranslator(deps.LLM, logger)),
		Activity:   c.Activity,
		Metrics:    deps.Metrics,
		Logger:     logger,
	})
	return c
}

type receiptLookupStore interface {
	lookup.Store
	lookup.ReceiptRecorder
}

func buildLookupStore(pool *pgxpool.Pool, logger *logging.Logger) receiptLookupStore {
	if pool == nil {
		logger.Warn("DATABASE_URL not set; BL lookups use an empty in-memory store")
		return lookup.NewMemoryStore()
	}
	return lookup.NewPostgresStore(pool)
}

// BuildExtractor prefers the external PDF service when configured.
func BuildExtractor(cfg *appconfig.Config, client llm.Client, logger *logging.Logger) docextract.Extractor {
	if url := strings.TrimSpace(cfg.PDFExtractionURL); url != "" {
		return docextract.NewRemoteExtractor(url, &http.Client{Timeout: cfg.VerifyTimeout}, logger)
	}
	return docextract.NewLLMExtractor(client, logger)
}

// BuildEmailSender selects the receipt mailer named by EMAIL_PROVIDER.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			logger.Warn("SES_FROM_EMAIL not set; receipt emails disabled")
			break
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.EmailFromName,
			ReplyTo:   cfg.EmailReplyTo,
		}, logger)
	case "sendgrid":
		if strings.TrimSpace(cfg.SendGridAPIKey) == "" || strings.TrimSpace(cfg.SendGridFromEmail) == "" {
			logger.Warn("SendGrid credentials incomplete; receipt emails disabled")
			break
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.EmailFromName,
			ReplyTo:   cfg.EmailReplyTo,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}
