package auth

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// revokedKeyPrefix namespaces logged-out token ids in redis.
const revokedKeyPrefix = "revoked_token:"

// RevocationList remembers logged-out token ids until they would have expired anyway.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocations is the single-instance list.
type MemoryRevocations struct {
	entries *cache.Cache
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.entries.Set(tokenID, struct{}{}, ttl)
	return nil
}

func (m *MemoryRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	_, found := m.entries.Get(tokenID)
	return found, nil
}

// RedisRevocations shares logouts between every instance using the same redis.
type RedisRevocations struct {
	rdb *redis.Client
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.rdb.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
