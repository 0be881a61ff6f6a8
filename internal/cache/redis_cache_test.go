package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisCache(rdb, ttl), mr
}

func TestRedisCache_StoreSent_Success(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, 10*time.Second)

	ctx := context.Background()
	id := uuid.MustParse("67f2f8a8-ea58-4ed0-a6f9-ff217df4d849")
	sentAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := cache.StoreSent(ctx, id, sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	key := "sms:sent:67f2f8a8-ea58-4ed0-a6f9-ff217df4d849"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got sentValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.CorrelationID != id {
		t.Fatalf("expected CorrelationID %s, got %s", id, got.CorrelationID)
	}
	if !got.SentAt.Equal(sentAt) {
		t.Fatalf("expected SentAt %v, got %v", sentAt, got.SentAt)
	}
}

func TestRedisCache_SentAt(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	if _, ok, err := cache.SentAt(ctx, id); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	sentAt := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	if err := cache.StoreSent(ctx, id, sentAt); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}

	got, ok, err := cache.SentAt(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !got.Equal(sentAt) {
		t.Fatalf("expected %v, got %v", sentAt, got)
	}
}

func TestRedisCache_MarkerExpires(t *testing.T) {
	t.Parallel()

	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	if err := cache.StoreSent(ctx, id, time.Now()); err != nil {
		t.Fatalf("StoreSent() error: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok, err := cache.SentAt(ctx, id); err != nil || ok {
		t.Fatalf("expected expired marker, got ok=%v err=%v", ok, err)
	}
}

func TestRedisCache_StoreSent_ContextCanceled(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cache.StoreSent(ctx, uuid.New(), time.Now()); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
