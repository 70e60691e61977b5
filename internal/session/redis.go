package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var redisTracer = otel.Tracer("blconcierge.internal.session")

// RedisStore keeps each session as a JSON document with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, tracer: redisTracer}
}

func (r *RedisStore) Load(ctx context.Context, senderID string) (*Session, error) {
	s, err := r.Peek(ctx, senderID)
	if errors.Is(err, ErrNotFound) {
		return New(senderID), nil
	}
	return s, err
}

func (r *RedisStore) Peek(ctx context.Context, senderID string) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "session.load")
	defer span.End()
	span.SetAttributes(attribute.String("blconcierge.sender", senderID))

	data, err := r.client.Get(ctx, sessionKey(senderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("session: load %s: %w", senderID, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: decode %s: %w", senderID, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ctx, span := r.tracer.Start(ctx, "session.save")
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: encode %s: %w", s.SenderID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.SenderID), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist %s: %w", s.SenderID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, senderID string) error {
	if err := r.client.Del(ctx, sessionKey(senderID)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", senderID, err)
	}
	return nil
}

func sessionKey(senderID string) string {
	return fmt.Sprintf("session:%s", senderID)
}
