package migration

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisGuard_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	g := NewRedisGuard(client, "", time.Minute)

	release, err := g.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(DefaultGuardKey))
	require.Equal(t, time.Minute, mr.TTL(DefaultGuardKey))

	_, err = g.Acquire(ctx)
	require.ErrorIs(t, err, common.ErrMigrationInProgress)

	require.NoError(t, release(ctx))
	require.False(t, mr.Exists(DefaultGuardKey))

	release, err = g.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisGuard_ExpiredHolderDoesNotReleaseNewLease(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	g := NewRedisGuard(client, "lock", time.Second)

	stale, err := g.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := g.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	require.True(t, mr.Exists("lock"), "stale release must keep the newer lease")

	require.NoError(t, fresh(ctx))
	require.False(t, mr.Exists("lock"))
}

func TestRedisGuard_ConnectionError(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	_, err := NewRedisGuard(client, "", 0).Acquire(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrMigrationInProgress)
}
