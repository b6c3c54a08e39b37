package driven

import (
	"context"
	"time"
)

// SyncLock coordinates replay runs across instances sharing one store.
// The in-process guard in the sync service handles redundant triggers
// within a single process; this lock is for multi-instance deployments.
type SyncLock interface {
	// Acquire attempts to take a named lock with the given TTL.
	// Returns true if acquired, false if held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release releases a named lock if held by this instance.
	Release(ctx context.Context, name string) error

	// Extend renews the TTL of a lock held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) (bool, error)
}
