package driven

import (
	"context"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// OperationFilter narrows List results. Nil fields are ignored. Results are
// always ordered by timestamp ascending (FIFO) so dependent mutations stay
// causally ordered.
type OperationFilter struct {
	// MaxRetries keeps operations with Retries strictly below the value
	// (used to exclude failed operations from automatic replay).
	MaxRetries *int

	// MinRetries keeps operations with Retries at or above the value
	// (used to list failed operations).
	MinRetries *int

	// Before keeps operations with Timestamp strictly before the cutoff.
	Before *time.Time

	Collection domain.Collection
	EntityID   string
}

// OperationStore persists the queue of not-yet-applied mutations.
type OperationStore interface {
	// Enqueue inserts the operation, assigning ID, Timestamp and
	// Retries=0, and returns the stored record.
	Enqueue(ctx context.Context, op *domain.PendingOperation) (*domain.PendingOperation, error)

	// Get retrieves one operation. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.PendingOperation, error)

	// Update applies a partial patch to a stored operation.
	Update(ctx context.Context, id int64, patch domain.OperationPatch) error

	// Delete removes one operation. Deleting a non-existent id is not an
	// error.
	Delete(ctx context.Context, id int64) error

	// List retrieves operations matching the filter in FIFO order.
	List(ctx context.Context, filter OperationFilter) ([]*domain.PendingOperation, error)

	// RemapEntityID rewrites the entity id on every stored operation that
	// still references oldID, applied when a create is reconciled so
	// dependent operations do not replay against an orphaned temp id.
	RemapEntityID(ctx context.Context, collection domain.Collection, oldID, newID string) (int, error)

	// Count returns the number of queued operations.
	Count(ctx context.Context) (int, error)

	// Clear removes every queued operation.
	Clear(ctx context.Context) error
}
