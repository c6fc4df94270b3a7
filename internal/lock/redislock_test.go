package lock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/lock"
)

func newLocker(t *testing.T) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockSerialises(t *testing.T) {
	locker, _ := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "register:till-1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "register:till-1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestTryWithLockFailsFast(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	err := locker.TryWithLock(ctx, "checkout:s1", time.Second, func(ctx context.Context) error {
		require.True(t, mr.Exists("lock:checkout:s1"))
		inner := locker.TryWithLock(ctx, "checkout:s1", time.Second, func(context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		require.ErrorIs(t, inner, lock.ErrLocked)
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("lock:checkout:s1"))
}

func TestLockReleasedWhenCallbackFails(t *testing.T) {
	locker, mr := newLocker(t)
	boom := errors.New("boom")

	err := locker.TryWithLock(context.Background(), "k", time.Second, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("lock:k"))
}

func TestLockRequiresClient(t *testing.T) {
	err := lock.Locker{}.WithLock(context.Background(), "k", 0, func(context.Context) error { return nil })
	require.Error(t, err)
}
