package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func newRedisLock(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, nil, WithRetryDelay(time.Millisecond)), mr
}

func lockers(t *testing.T) map[string]locker {
	r, _ := newRedisLock(t)
	return map[string]locker{"keyed": NewKeyed(), "redis": r}
}

func TestLock_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(context.Background(), "cart:1")
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLock_IndependentKeys(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlockA, err := l.Lock(context.Background(), "cart:1")
			require.NoError(t, err)
			defer unlockA()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			unlockB, err := l.Lock(ctx, "cart:2")
			require.NoError(t, err)
			unlockB()
		})
	}
}

func TestLock_ContextCancelWhileWaiting(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), "cart:1")
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = l.Lock(ctx, "cart:1")
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestKeyed_DropsIdleEntries(t *testing.T) {
	k := NewKeyed()
	unlock, err := k.Lock(context.Background(), "cart:1")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.Empty(t, k.slots)
}

func TestRedis_ReleaseOnlyOwnLease(t *testing.T) {
	l, mr := newRedisLock(t)

	unlock, err := l.Lock(context.Background(), "cart:1")
	require.NoError(t, err)
	require.True(t, mr.Exists("lock:cart:1"))

	// lease expired and somebody else took it
	mr.Del("lock:cart:1")
	require.NoError(t, mr.Set("lock:cart:1", "other-token"))
	unlock()

	got, err := mr.Get("lock:cart:1")
	require.NoError(t, err)
	assert.Equal(t, "other-token", got)
}

func TestRedis_LeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedis(client, nil, WithTTL(time.Second), WithRetryDelay(time.Millisecond))

	_, err := l.Lock(context.Background(), "cart:1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock, err := l.Lock(context.Background(), "cart:1")
	require.NoError(t, err)
	unlock()
}
