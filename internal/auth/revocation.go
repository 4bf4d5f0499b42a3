package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// Revoker remembers session tokens that were logged out before expiring.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevoker keeps revoked token ids in Redis until the token would have
// expired anyway. A nil client turns every call into a no-op, and Redis
// errors are logged and treated as "not revoked" so an outage does not sign
// everyone out.
type RedisRevoker struct {
	client *redis.Client
}

var _ Revoker = (*RedisRevoker)(nil)

// NewRedisRevoker connects to addr. An empty addr disables revocation.
func NewRedisRevoker(addr, password string, db int) *RedisRevoker {
	if addr == "" {
		return &RedisRevoker{}
	}
	return &RedisRevoker{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// NewRedisRevokerWithClient wraps an existing client.
func NewRedisRevokerWithClient(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

// Enabled reports whether a Redis client is configured.
func (r *RedisRevoker) Enabled() bool {
	return r != nil && r.client != nil
}

// Ping checks connectivity when enabled.
func (r *RedisRevoker) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if !r.Enabled() || ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		slog.Warn("session revocation not stored", "error", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !r.Enabled() {
		return false, nil
	}
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		slog.Warn("session revocation lookup failed", "error", err)
		return false, nil
	}
}

// Close releases the Redis connection pool.
func (r *RedisRevoker) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Close()
}
