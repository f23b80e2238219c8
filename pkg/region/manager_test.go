package region

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("@2:procs/%d", i)
		require.NoError(t, mgr.WithLock(ctx, key, func(context.Context) error { return nil }))
	}
	assert.Zero(t, mgr.Active(), "locks must not leak after release")
}

func TestManager_SerializesSameKey(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "@2:procs", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestManager_DistinctKeysRunConcurrently(t *testing.T) {
	mgr := NewManager()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- mgr.WithLock(ctx, "a", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	require.NoError(t, mgr.WithLock(ctx, "b", func(context.Context) error { return nil }))
	assert.Equal(t, 1, mgr.Active())

	close(release)
	require.NoError(t, <-done)
}

func TestManager_ReturnsFnError(t *testing.T) {
	boom := errors.New("boom")
	err := NewManager().WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	return nil, errors.New("unavailable")
}

func TestManager_DistributedLockFailure(t *testing.T) {
	mgr := NewManager(WithLocker(failingLocker{}))
	called := false
	err := mgr.WithLock(context.Background(), "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.False(t, called)
	assert.Zero(t, mgr.Active())
}

func TestManager_RedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	mgr := NewManager(WithLocker(redis.NewLocker(client, "test:")), WithTTL(5*time.Second))
	err := mgr.WithLock(context.Background(), "@2:procs", func(context.Context) error {
		assert.True(t, mr.Exists("test:lock:@2:procs"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:lock:@2:procs"))
}
