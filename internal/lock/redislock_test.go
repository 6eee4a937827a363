package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Locker{R: client, RetryBackoff: 5 * time.Millisecond}, mr
}

func TestWithLockRunsCallback(t *testing.T) {
	l, _ := testLocker(t)
	ran := false
	err := l.WithLock(context.Background(), "sweep:tenant-a", time.Second, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
	if !ran {
		t.Fatal("callback did not run")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	l, mr := testLocker(t)
	wantErr := errors.New("boom")
	err := l.WithLock(context.Background(), "sweep:tenant-a", time.Second, func(ctx context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if mr.Exists("sweep:tenant-a") {
		t.Fatal("lock key should be released after the callback errors")
	}
}

func TestWithLockBlocksSecondHolder(t *testing.T) {
	l, _ := testLocker(t)
	ctx := context.Background()

	err := l.WithLock(ctx, "sweep:tenant-a", time.Minute, func(inner context.Context) error {
		shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		err := l.WithLock(shortCtx, "sweep:tenant-a", time.Minute, func(context.Context) error {
			t.Error("second holder must not acquire the lock")
			return nil
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock: %v", err)
	}
}
