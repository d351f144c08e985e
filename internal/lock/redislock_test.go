package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/lock"
)

func newLocker(t *testing.T) lock.Locker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
}

func TestWithLockSerialisesHolders(t *testing.T) {
	locker := newLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	order := make(chan string, 2)
	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	secondDone := make(chan struct{})

	go func() {
		_ = locker.WithLock(ctx, "pos:submit:demo", 100*time.Millisecond, func(context.Context) error {
			order <- "first"
			close(firstEntered)
			<-releaseFirst
			return nil
		})
	}()

	<-firstEntered

	go func() {
		defer close(secondDone)
		_ = locker.WithLock(ctx, "pos:submit:demo", 100*time.Millisecond, func(context.Context) error {
			order <- "second"
			return nil
		})
	}()

	close(releaseFirst)
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("second holder never acquired the lock")
	}
	require.Equal(t, "first", <-order)
	require.Equal(t, "second", <-order)
}

func TestWithLockHonoursContextCancellation(t *testing.T) {
	locker := newLocker(t)

	ctx, cancel := context.WithCancel(context.Background())
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "pos:submit:busy", time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := locker.WithLock(ctx, "pos:submit:busy", time.Second, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
	close(release)
}
