package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client, mr
}

func TestNewLock(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock := NewLock(client)
	if lock == nil {
		t.Fatal("expected non-nil lock")
	}
	if lock.ownerID == "" {
		t.Error("expected non-empty owner ID")
	}
}

func TestLock_OwnerID_Unique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.OwnerID() == lock2.OwnerID() {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.OwnerID())
	}
}

func TestLock_Acquire_Success(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	acquired, err := lock.Acquire(ctx, "operations_replay", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !acquired {
		t.Error("expected to acquire free lock")
	}
}

func TestLock_Acquire_HeldElsewhere(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if acquired, err := lock1.Acquire(ctx, "operations_replay", time.Minute); err != nil || !acquired {
		t.Fatalf("first Acquire: acquired=%v err=%v", acquired, err)
	}

	acquired, err := lock2.Acquire(ctx, "operations_replay", time.Minute)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if acquired {
		t.Error("expected second instance to be rejected")
	}
}

func TestLock_Release_AllowsReacquire(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if _, err := lock1.Acquire(ctx, "operations_replay", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock1.Release(ctx, "operations_replay"); err != nil {
		t.Fatalf("Release: %v", err)
	}

	acquired, err := lock2.Acquire(ctx, "operations_replay", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if !acquired {
		t.Error("expected lock to be free after release")
	}
}

func TestLock_Release_NotOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if _, err := lock1.Acquire(ctx, "operations_replay", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Releasing a lock held by someone else must be a no-op.
	if err := lock2.Release(ctx, "operations_replay"); err != nil {
		t.Fatalf("Release by non-owner: %v", err)
	}

	acquired, err := lock2.Acquire(ctx, "operations_replay", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if acquired {
		t.Error("lock was stolen by a non-owner release")
	}
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock := NewLock(client)
	if err := lock.Release(context.Background(), "never_acquired"); err != nil {
		t.Errorf("Release of unheld lock: %v", err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock := NewLock(client)
	if _, err := lock.Acquire(ctx, "operations_replay", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	extended, err := lock.Extend(ctx, "operations_replay", 2*time.Minute)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if !extended {
		t.Error("expected to extend held lock")
	}
}

func TestLock_Extend_NotOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if _, err := lock1.Acquire(ctx, "operations_replay", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	extended, err := lock2.Extend(ctx, "operations_replay", 2*time.Minute)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if extended {
		t.Error("non-owner extended the lock")
	}
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if _, err := lock1.Acquire(ctx, "operations_replay", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	acquired, err := lock2.Acquire(ctx, "operations_replay", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if !acquired {
		t.Error("expected lock to expire after TTL")
	}
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock := NewLock(client)
	if err := lock.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
