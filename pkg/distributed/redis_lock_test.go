package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLockManager(t *testing.T) (*miniredis.Miniredis, *RedisLockManager) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisLockManager(client, "worker-1")
}

func TestRedisLock_AcquireAndRelease(t *testing.T) {
	_, manager := setupLockManager(t)
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "test:lock:mode", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock)

	held, err := lock.IsHeld(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, lock.Release(ctx))

	held, err = lock.IsHeld(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

// 같은 키는 한 번에 한 소유자만 가질 수 있다
func TestRedisLock_Contention(t *testing.T) {
	mr, manager := setupLockManager(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	other := NewRedisLockManager(client, "worker-2")
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "test:lock:mode", 10*time.Second)
	require.NoError(t, err)

	_, err = other.Acquire(ctx, "test:lock:mode", 10*time.Second)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	// 해제 후에는 다른 인스턴스가 획득 가능
	require.NoError(t, lock.Release(ctx))

	lock2, err := other.Acquire(ctx, "test:lock:mode", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, lock2)
}

// TTL이 지나면 보유자가 죽어도 락이 풀린다
func TestRedisLock_ExpiresAfterTTL(t *testing.T) {
	mr, manager := setupLockManager(t)
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "test:lock:mode", 1*time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	held, err := lock.IsHeld(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	// 만료된 락 해제는 ErrLockNotHeld
	assert.ErrorIs(t, lock.Release(ctx), ErrLockNotHeld)

	_, err = manager.Acquire(ctx, "test:lock:mode", 1*time.Second)
	require.NoError(t, err)
}

// 만료 후 다른 소유자가 잡은 락을 건드리지 않는다
func TestRedisLock_ReleaseDoesNotStealForeignLock(t *testing.T) {
	mr, manager := setupLockManager(t)
	ctx := context.Background()

	stale, err := manager.Acquire(ctx, "test:lock:mode", 1*time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := manager.Acquire(ctx, "test:lock:mode", 10*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, stale.Release(ctx), ErrLockNotHeld)

	held, err := fresh.IsHeld(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRedisLock_Extend(t *testing.T) {
	mr, manager := setupLockManager(t)
	ctx := context.Background()

	lock, err := manager.Acquire(ctx, "test:lock:mode", 1*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock.Extend(ctx, 10*time.Second))

	// 원래 TTL은 지났지만 연장 덕분에 아직 보유 중
	mr.FastForward(2 * time.Second)

	held, err := lock.IsHeld(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	// 만료 후 연장은 실패
	mr.FastForward(10 * time.Second)
	assert.ErrorIs(t, lock.Extend(ctx, 10*time.Second), ErrLockNotHeld)
}
