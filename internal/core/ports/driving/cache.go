package driving

import (
	"context"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// CacheManager keeps the local store populated with a recent snapshot of
// remote reference data and reports on cache health. All methods are
// soft-failing: they log and return safe defaults rather than crashing the
// host application.
type CacheManager interface {
	// Preload fetches the full remote set for a collection and caches it.
	// A logged no-op while offline.
	Preload(ctx context.Context, collection domain.Collection) error

	// PreloadAll preloads every registered collection.
	PreloadAll(ctx context.Context) error

	// CleanOldData sweeps aged tombstones and aged pending operations.
	CleanOldData(ctx context.Context) (*domain.CleanupReport, error)

	// Stats returns a snapshot of cache contents. Never fails; a zeroed
	// snapshot is returned when the store is unreadable.
	Stats(ctx context.Context) *domain.CacheStats

	// CheckHealth inspects the cache for failed operations, stale temp
	// ids and errored sync streams.
	CheckHealth(ctx context.Context) *domain.HealthReport

	// ClearAll wipes every collection, the operation queue and sync
	// metadata. Unconditional once invoked; confirmation is the caller's
	// concern.
	ClearAll(ctx context.Context) error

	// RecoverStaleSync rewrites metadata stuck in "syncing" from a
	// crashed run to "error". Run at startup.
	RecoverStaleSync(ctx context.Context) error
}
