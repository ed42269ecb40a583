package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"restaurant-pos/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(t, client.Ping(context.Background()).Err())

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLocker_TryLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second, logger.Discard())
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, TableKey(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(TableKey(3)))
	assert.Equal(t, 5*time.Second, mr.TTL(TableKey(3)))

	_, ok, err = l.TryLock(ctx, TableKey(3))
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	unlock()
	assert.False(t, mr.Exists(TableKey(3)))

	_, ok, err = l.TryLock(ctx, TableKey(3))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_UnlockKeepsForeignToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, time.Second, logger.Discard())
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, TableKey(1))
	require.NoError(t, err)
	require.True(t, ok)

	// The lock lapses and somebody else takes it.
	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, TableKey(1))
	require.NoError(t, err)
	require.True(t, ok)

	unlock()
	assert.True(t, mr.Exists(TableKey(1)), "stale holder must not release the new lock")
}

func TestRedisLocker_LockWaitsForRelease(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second, logger.Discard())
	ctx := context.Background()

	unlock, err := l.Lock(ctx, OrderKey(9))
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	unlock2, err := l.Lock(waitCtx, OrderKey(9))
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_LockTimesOut(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second, logger.Discard())

	unlock, err := l.Lock(context.Background(), OrderKey(1))
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, OrderKey(1))
	assert.True(t, errors.Is(err, ErrNotAcquired))
}

func TestRedisLocker_ConcurrentHoldersAreExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	l := NewRedisLocker(client, 5*time.Second, logger.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var inside, violations int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, TableKey(7))
			if !assert.NoError(t, err) {
				return
			}
			if atomic.AddInt32(&inside, 1) > 1 {
				atomic.AddInt32(&violations, 1)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(0), violations)
}

func TestRedisLocker_RenewsWhileHeld(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, 3*time.Second, logger.Discard())
	l.renewEvery = 10 * time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, PaymentKey(5))
	require.NoError(t, err)

	// Work runs past the original TTL; each renewal re-arms it.
	for i := 0; i < 3; i++ {
		mr.FastForward(2 * time.Second)
		require.True(t, mr.Exists(PaymentKey(5)))
		assert.Eventually(t, func() bool {
			return mr.TTL(PaymentKey(5)) == 3*time.Second
		}, time.Second, 5*time.Millisecond)
	}

	_, ok, err := l.TryLock(ctx, PaymentKey(5))
	require.NoError(t, err)
	assert.False(t, ok, "renewed lock must still exclude others")

	unlock()
	assert.False(t, mr.Exists(PaymentKey(5)))
	unlock()
}

func TestRedisLocker_RenewalStopsAfterLoss(t *testing.T) {
	client, mr := setupTestRedis(t)
	l := NewRedisLocker(client, time.Second, logger.Discard())
	l.renewEvery = 10 * time.Millisecond
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, TableKey(2))
	require.NoError(t, err)
	require.True(t, ok)
	defer unlock()

	mr.Set(TableKey(2), "someone-else")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "someone-else", mustGet(t, mr, TableKey(2)))
	assert.Equal(t, time.Duration(0), mr.TTL(TableKey(2)), "foreign key must not be extended")
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
