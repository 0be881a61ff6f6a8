package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ SentCache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

type sentValue struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	SentAt        time.Time `json:"sentAt"`
}

func sentKey(id uuid.UUID) string {
	return "sms:sent:" + id.String()
}

func (c *RedisCache) StoreSent(ctx context.Context, correlationID uuid.UUID, sentAt time.Time) error {
	b, err := json.Marshal(sentValue{
		CorrelationID: correlationID,
		SentAt:        sentAt.UTC(),
	})
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, sentKey(correlationID), b, c.ttl).Err()
}

func (c *RedisCache) SentAt(ctx context.Context, correlationID uuid.UUID) (time.Time, bool, error) {
	raw, err := c.rdb.Get(ctx, sentKey(correlationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	var v sentValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return time.Time{}, false, err
	}
	return v.SentAt, true, nil
}
