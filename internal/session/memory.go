package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is a bounded, time-boxed in-process store. The least recently
// used session is evicted at capacity and idle sessions expire after ttl.
type MemoryStore struct {
	cache *expirable.LRU[string, *Session]
}

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{cache: expirable.NewLRU[string, *Session](capacity, nil, ttl)}
}

func (m *MemoryStore) Load(ctx context.Context, senderID string) (*Session, error) {
	if s, ok := m.cache.Get(senderID); ok {
		return s.Clone(), nil
	}
	return New(senderID), nil
}

func (m *MemoryStore) Peek(ctx context.Context, senderID string) (*Session, error) {
	s, ok := m.cache.Peek(senderID)
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.cache.Add(s.SenderID, s.Clone())
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, senderID string) error {
	m.cache.Remove(senderID)
	return nil
}

// Len reports how many sessions are held.
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
