package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultGuardKey = "gophaccounts:migration:lock"
	DefaultGuardTTL = 10 * time.Minute
)

// Guard serialises migration passes across processes.
type Guard interface {
	// Acquire returns common.ErrMigrationInProgress when another holder is
	// active. The returned release must be called exactly once.
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a single-key lease: SET NX with a TTL, released by a
// compare-and-delete script so an expired holder cannot free a newer lease.
type RedisGuard struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisGuard(client redis.UniversalClient, key string, ttl time.Duration) *RedisGuard {
	if key == "" {
		key = DefaultGuardKey
	}
	if ttl <= 0 {
		ttl = DefaultGuardTTL
	}
	return &RedisGuard{client: client, key: key, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("guard token: %w", err)
	}

	ok, err := g.client.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if !ok {
		return nil, common.ErrMigrationInProgress
	}

	release := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, g.client, []string{g.key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis error: %w", err)
		}
		return nil
	}
	return release, nil
}
