package session

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/bl-concierge/internal/verify"
)

func TestDropDocumentEntries(t *testing.T) {
	s := New("wa-1")
	s.Append(RoleUser, "Untitled document BL ABC123")
	s.Append(RoleUser, "invoice please")
	s.Append(RoleAssistant, "Untitled reply")
	s.DropDocumentEntries()
	require.Len(t, s.History, 1)
	assert.Equal(t, "invoice please", s.History[0].Content)
}

func TestMemoryStoreLoadSaveDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, time.Hour)

	s, err := store.Load(ctx, "wa-1")
	require.NoError(t, err)
	assert.Equal(t, verify.PhaseUnverified, s.Verification.Phase())
	assert.Empty(t, s.History)

	s.Append(RoleUser, "hi")
	s.LastValidated = []string{"NYC220"}
	require.NoError(t, store.Save(ctx, s))

	s.Append(RoleUser, "mutated after save")
	loaded, err := store.Load(ctx, "wa-1")
	require.NoError(t, err)
	assert.Len(t, loaded.History, 1, "store must keep its own copy")
	assert.Equal(t, []string{"NYC220"}, loaded.LastValidated)

	require.NoError(t, store.Delete(ctx, "wa-1"))
	_, err = store.Peek(ctx, "wa-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, store.Save(ctx, New(id)))
	}
	_, err := store.Load(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, New("c")))

	assert.Equal(t, 2, store.Len())
	_, err = store.Peek(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Peek(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStoreExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(10, 50*time.Millisecond)
	require.NoError(t, store.Save(ctx, New("wa-1")))
	require.Eventually(t, func() bool {
		_, err := store.Peek(ctx, "wa-1")
		return err == ErrNotFound
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	fresh, err := store.Load(ctx, "wa-9")
	require.NoError(t, err)
	assert.Equal(t, "wa-9", fresh.SenderID)

	since := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	fresh.Verification = verify.Verified("a@b.co", since)
	fresh.Append(RoleUser, "invoice")
	require.NoError(t, store.Save(ctx, fresh))
	assert.True(t, mr.Exists("session:wa-9"))
	assert.Equal(t, time.Hour, mr.TTL("session:wa-9"))

	loaded, err := store.Load(ctx, "wa-9")
	require.NoError(t, err)
	assert.Equal(t, verify.PhaseVerified, loaded.Verification.Phase())
	assert.Equal(t, "a@b.co", loaded.Verification.Email())
	assert.True(t, since.Equal(loaded.Verification.Since()))
	assert.Equal(t, fresh.History, loaded.History)

	require.NoError(t, store.Delete(ctx, "wa-9"))
	_, err = store.Peek(ctx, "wa-9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:bad", "{not json"))
	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	_, err := store.Load(context.Background(), "bad")
	assert.Error(t, err)
}

func TestLockerSerialisesSameKey(t *testing.T) {
	locker := NewLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("wa-1")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locker.size(), "idle keys must be released")
}

func TestMemoryDeduper(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(2*time.Second, func() time.Time { return now })
	ctx := context.Background()
	key := DedupeKey("wa-1", "msg-1")

	ok, err := d.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = d.Acquire(ctx, key)
	assert.False(t, ok, "duplicate delivery while processing")

	ok, _ = d.Acquire(ctx, DedupeKey("wa-1", "msg-2"))
	assert.True(t, ok, "distinct messages are not serialised")

	now = now.Add(10 * time.Second)
	ok, _ = d.Acquire(ctx, key)
	assert.False(t, ok, "claim held until released")

	require.NoError(t, d.Release(ctx, key))
	now = now.Add(time.Second)
	ok, _ = d.Acquire(ctx, key)
	assert.False(t, ok, "duplicate delivery inside the window after completion")

	now = now.Add(time.Second)
	ok, _ = d.Acquire(ctx, key)
	assert.True(t, ok, "claim lapses one window after release")
}

func TestMemoryDeduperLeaseExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(2*time.Second, func() time.Time { return now })
	ctx := context.Background()

	ok, _ := d.Acquire(ctx, "wa-1:m1")
	require.True(t, ok)

	now = now.Add(DedupeLease)
	ok, _ = d.Acquire(ctx, "wa-1:m1")
	assert.True(t, ok, "abandoned claim is reclaimable after the lease")
}

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	d := NewRedisDeduper(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 2*time.Second)
	ctx := context.Background()

	ok, err := d.Acquire(ctx, "wa-1:m1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = d.Acquire(ctx, "wa-1:m1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(3 * time.Second)
	ok, err = d.Acquire(ctx, "wa-1:m1")
	require.NoError(t, err)
	assert.False(t, ok, "claim held until released")

	require.NoError(t, d.Release(ctx, "wa-1:m1"))
	assert.Equal(t, 2*time.Second, mr.TTL("dedupe:wa-1:m1"))

	mr.FastForward(3 * time.Second)
	ok, err = d.Acquire(ctx, "wa-1:m1")
	require.NoError(t, err)
	assert.True(t, ok)
}
