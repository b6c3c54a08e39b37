package driven

import (
	"context"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// EntityFilter narrows ListEntities results. Zero-value fields are ignored.
type EntityFilter struct {
	// Tombstoned restricts results to soft-deleted rows when true.
	Tombstoned bool

	// DeletedBefore restricts results to tombstones older than the cutoff.
	// Implies Tombstoned.
	DeletedBefore *time.Time

	// TempOnly restricts results to rows with a temporary id.
	TempOnly bool

	// CreatedBefore restricts results to rows created before the cutoff.
	CreatedBefore *time.Time
}

// EntityStore persists cached copies of remote entities, one table per
// collection, keyed by id.
type EntityStore interface {
	// PutEntities upserts by id, last-write-wins. Upserting an id that does
	// not exist yet is not an error.
	PutEntities(ctx context.Context, collection domain.Collection, entities []*domain.CachedEntity) error

	// GetEntity retrieves one cached entity. Returns domain.ErrNotFound if
	// the id is absent.
	GetEntity(ctx context.Context, collection domain.Collection, id string) (*domain.CachedEntity, error)

	// ListEntities retrieves cached entities matching the filter.
	ListEntities(ctx context.Context, collection domain.Collection, filter EntityFilter) ([]*domain.CachedEntity, error)

	// DeleteEntities bulk-deletes by id. Deleting a non-existent id is not
	// an error.
	DeleteEntities(ctx context.Context, collection domain.Collection, ids []string) error

	// ReplaceID re-keys a cached entity from oldID to newID, used when a
	// temp id is reconciled with the server-assigned id.
	ReplaceID(ctx context.Context, collection domain.Collection, oldID, newID string) error

	// Count returns the number of cached rows for a collection.
	Count(ctx context.Context, collection domain.Collection) (int, error)

	// ApproxSizeBytes estimates the serialized size of all cached rows for
	// a collection.
	ApproxSizeBytes(ctx context.Context, collection domain.Collection) (int64, error)

	// Clear removes every cached row for a collection.
	Clear(ctx context.Context, collection domain.Collection) error
}
