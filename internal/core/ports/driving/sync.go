package driving

import (
	"context"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// SyncManager replays queued mutations against the backend and exposes the
// manual-intervention surface for failed operations.
type SyncManager interface {
	// ProcessPending drains the operation queue FIFO, skipping failed
	// operations. Safe to invoke redundantly; an overlapping run returns
	// domain.ErrSyncInProgress. A run while offline is skipped.
	ProcessPending(ctx context.Context) (*domain.SyncReport, error)

	// Enqueue queues a mutation for later replay and applies its
	// optimistic effect to the cache.
	Enqueue(ctx context.Context, op *domain.PendingOperation) (*domain.PendingOperation, error)

	// PendingCount returns the number of queued operations.
	PendingCount(ctx context.Context) (int, error)

	// ListFailed returns operations that exhausted automatic retries.
	ListFailed(ctx context.Context) ([]*domain.PendingOperation, error)

	// RetryOperation resets a failed operation for automatic replay.
	RetryOperation(ctx context.Context, id int64) error

	// DiscardOperation deletes an operation unconditionally.
	DiscardOperation(ctx context.Context, id int64) error

	// RetryAll resets every failed operation, returning how many were
	// reset.
	RetryAll(ctx context.Context) (int, error)

	// DiscardAll deletes every failed operation, returning how many were
	// removed.
	DiscardAll(ctx context.Context) (int, error)
}
