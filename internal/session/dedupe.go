package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultDedupeWindow is how long a message key stays claimed after its
	// processing finished.
	DefaultDedupeWindow = 2 * time.Second
	// DedupeLease bounds a claim whose holder never released it.
	DedupeLease = 5 * time.Minute
)

// Deduper claims a message key so duplicate deliveries are skipped. A claim
// is held while the message is processed; Release keeps it for one more
// window and then lets it lapse.
type Deduper interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// DedupeKey builds the claim key for a delivered message.
func DedupeKey(senderID, messageID string) string {
	return senderID + ":" + messageID
}

// RedisDeduper claims keys with SET NX under a long lease and shortens the
// expiry to the window on release.
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
}

func NewRedisDeduper(client *redis.Client, window time.Duration) *RedisDeduper {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &RedisDeduper{client: client, window: window}
}

func (d *RedisDeduper) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, "dedupe:"+key, 1, DedupeLease).Result()
	if err != nil {
		return false, fmt.Errorf("session: dedupe claim: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) Release(ctx context.Context, key string) error {
	if err := d.client.PExpire(ctx, "dedupe:"+key, d.window).Err(); err != nil {
		return fmt.Errorf("session: dedupe release: %w", err)
	}
	return nil
}

// MemoryDeduper is the single-process variant.
type MemoryDeduper struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	claims map[string]time.Time
}

func NewMemoryDeduper(window time.Duration, now func() time.Time) *MemoryDeduper {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryDeduper{window: window, now: now, claims: make(map[string]time.Time)}
}

func (d *MemoryDeduper) Acquire(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expires := range d.claims {
		if !now.Before(expires) {
			delete(d.claims, k)
		}
	}
	if _, held := d.claims[key]; held {
		return false, nil
	}
	d.claims[key] = now.Add(DedupeLease)
	return true, nil
}

func (d *MemoryDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, held := d.claims[key]; held {
		d.claims[key] = d.now().Add(d.window)
	}
	return nil
}
