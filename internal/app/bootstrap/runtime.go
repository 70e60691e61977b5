package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/bl-concierge/internal/config"
	"github.com/wolfman30/bl-concierge/internal/session"
	"github.com/wolfman30/bl-concierge/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// SessionStore is a session store that can also answer read-only lookups for
// the admin and history endpoints.
type SessionStore interface {
	session.Store
	session.Peeker
}

// BuildSessionStore picks Redis when SESSION_BACKEND=redis and a client is
// available, otherwise the bounded in-memory store.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) SessionStore {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SessionBackend == "redis" {
		if redisClient != nil {
			logger.Info("session store: redis", "ttl", cfg.SessionTTL.String())
			return session.NewRedisStore(redisClient, cfg.SessionTTL)
		}
		logger.Warn("session store: redis requested but unavailable; falling back to memory")
	}
	logger.Info("session store: memory", "max_entries", cfg.SessionMaxEntries, "ttl", cfg.SessionTTL.String())
	return session.NewMemoryStore(cfg.SessionMaxEntries, cfg.SessionTTL)
}

// BuildDeduper shares duplicate-delivery claims through Redis when possible.
func BuildDeduper(cfg *appconfig.Config, redisClient *redis.Client) session.Deduper {
	if redisClient != nil {
		return session.NewRedisDeduper(redisClient, cfg.DedupeTTL)
	}
	return session.NewMemoryDeduper(cfg.DedupeTTL, nil)
}

// ConnectPostgresPool opens the pgx pool used by the BL lookup store. An
// empty URL returns nil.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres not reachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// OpenActivityDB opens the database/sql handle used by the activity log.
// lib/pq registers the "postgres" driver.
func OpenActivityDB(ctx context.Context, cfg *appconfig.Config) (*sql.DB, error) {
	if cfg == nil || !cfg.ActivityLogEnabled || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open activity db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: ping activity db: %w", err)
	}
	return db, nil
}
