package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// Session state
	SessionBackend    string
	SessionMaxEntries int
	SessionTTL        time.Duration
	VerificationTTL   time.Duration
	DedupeTTL         time.Duration
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool

	// Language models
	LLMProvider            string
	OpenAIAPIKey           string
	OpenAIPrimaryModel     string
	OpenAIFallbackModel    string
	BedrockModelID         string
	BedrockFallbackModelID string
	GeminiAPIKey           string
	GeminiModelID          string

	// Collaborators
	VerifyBaseURL      string
	VerifyTimeout      time.Duration
	PDFExtractionURL   string
	OutboundWebhookURL string
	AdminID            string
	AdminJWTSecret     string
	ActivityLogEnabled bool

	// HTTP surface
	CORSAllowedOrigins []string
	ChatRateLimitRPS   float64
	ChatRateLimitBurst int

	// Receipts
	ReceiptBucket        string
	ReceiptPublicBaseURL string
	EmailProvider        string
	SESFromEmail         string
	SendGridAPIKey       string
	SendGridFromEmail    string
	EmailFromName        string
	EmailReplyTo         string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	InboundQueueURL     string
	TurnJobsTable       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		SessionBackend:    strings.ToLower(strings.TrimSpace(getEnv("SESSION_BACKEND", "memory"))),
		SessionMaxEntries: getEnvAsInt("SESSION_MAX_ENTRIES", 10000),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		VerificationTTL:   getEnvAsDuration("VERIFICATION_TTL", 2*time.Hour),
		DedupeTTL:         getEnvAsDuration("DEDUPE_TTL", 2*time.Second),
		RedisAddr:         getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),

		LLMProvider:            strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIPrimaryModel:     getEnv("OPENAI_PRIMARY_MODEL", "gpt-4o"),
		OpenAIFallbackModel:    getEnv("OPENAI_FALLBACK_MODEL", "gpt-3.5-turbo"),
		BedrockModelID:         getEnv("BEDROCK_MODEL_ID", ""),
		BedrockFallbackModelID: getEnv("BEDROCK_FALLBACK_MODEL_ID", ""),
		GeminiAPIKey:           getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:          getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),

		VerifyBaseURL:      strings.TrimRight(getEnv("VERIFY_BASE_URL", "https://iqstrade.onrender.com"), "/"),
		VerifyTimeout:      getEnvAsDuration("VERIFY_TIMEOUT", 10*time.Second),
		PDFExtractionURL:   getEnv("PDF_EXTRACTION_URL", ""),
		OutboundWebhookURL: getEnv("OUTBOUND_WEBHOOK_URL", ""),
		AdminID:            strings.TrimSpace(getEnv("ADMIN_ID", "")),
		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		ActivityLogEnabled: getEnvAsBool("ACTIVITY_LOG_ENABLED", true),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		ChatRateLimitRPS:   getEnvAsFloat("CHAT_RATE_LIMIT_RPS", 2),
		ChatRateLimitBurst: getEnvAsInt("CHAT_RATE_LIMIT_BURST", 10),

		ReceiptBucket:        getEnv("RECEIPT_BUCKET", ""),
		ReceiptPublicBaseURL: strings.TrimRight(getEnv("RECEIPT_PUBLIC_BASE_URL", ""), "/"),
		EmailProvider:        strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "none"))),
		SESFromEmail:         getEnv("SES_FROM_EMAIL", ""),
		SendGridAPIKey:       getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:    getEnv("SENDGRID_FROM_EMAIL", ""),
		EmailFromName:        getEnv("EMAIL_FROM_NAME", "IQSTrade Support"),
		EmailReplyTo:         getEnv("EMAIL_REPLY_TO", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		InboundQueueURL:     getEnv("INBOUND_QUEUE_URL", ""),
		TurnJobsTable:       getEnv("TURN_JOBS_TABLE", "turn_jobs"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
