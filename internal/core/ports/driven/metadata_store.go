package driven

import (
	"context"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// MetadataStore persists per-stream sync bookkeeping, keyed by stream name.
type MetadataStore interface {
	// Get retrieves metadata for a stream. Returns an idle default record
	// when the key has never been written.
	Get(ctx context.Context, key string) (*domain.SyncMetadata, error)

	// Save creates or updates a metadata record.
	Save(ctx context.Context, meta *domain.SyncMetadata) error

	// List retrieves every stored metadata record.
	List(ctx context.Context) ([]*domain.SyncMetadata, error)

	// Clear removes every metadata record.
	Clear(ctx context.Context) error
}
