// Package redislock provides a Redis-backed run lock.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bobmcallan/navsync/internal/common"
	"github.com/bobmcallan/navsync/internal/interfaces"
)

const keyPrefix = "navsync:lock:"

// releaseScript deletes the key only when it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock implements RunLock with SET NX PX.
type Lock struct {
	client *redis.Client
	logger *common.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg common.LockConfig, logger *common.Logger) (*Lock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddress, err)
	}

	logger.Info().Str("address", cfg.RedisAddress).Int("db", cfg.RedisDB).Msg("Redis run lock initialized")
	return NewWithClient(client, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, logger *common.Logger) *Lock {
	return &Lock{client: client, logger: logger}
}

func (l *Lock) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+name, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock %s: %w", name, err)
	}
	if ok {
		return true, nil
	}

	// Re-entrant for the same owner
	current, err := l.client.Get(ctx, keyPrefix+name).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read run lock %s: %w", name, err)
	}
	if current == owner {
		if err := l.client.PExpire(ctx, keyPrefix+name, ttl).Err(); err != nil {
			return false, fmt.Errorf("failed to extend run lock %s: %w", name, err)
		}
		return true, nil
	}
	return false, nil
}

func (l *Lock) Release(ctx context.Context, name, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{keyPrefix + name}, owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release run lock %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis client.
func (l *Lock) Close() error {
	return l.client.Close()
}

var _ interfaces.RunLock = (*Lock)(nil)
