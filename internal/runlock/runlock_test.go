package runlock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalLockExcludesConcurrentRuns(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	release()
	release()

	again, err := l.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}

func TestNewSelectsBackend(t *testing.T) {
	l, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := l.(*Local); !ok {
		t.Fatalf("expected local lock by default, got %T", l)
	}
	if _, err := New(Options{Type: "redis"}); err == nil {
		t.Fatalf("expected error without redis address")
	}
	if _, err := New(Options{Type: "zookeeper"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestRedisLock(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	lock := NewRedis(client, "runlock-test:"+time.Now().Format(time.RFC3339Nano), time.Minute)
	defer lock.Close()
	ctx := context.Background()

	release, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := lock.Acquire(ctx); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	release()

	again, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again()
}
