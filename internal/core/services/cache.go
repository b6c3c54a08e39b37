package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
	"github.com/ledgerline/offline-core/internal/core/ports/driving"
)

// Default retention thresholds for the old-data sweep and health checks.
const (
	// DefaultTombstoneRetention is how long soft-deleted rows are kept
	// before the sweep purges them.
	DefaultTombstoneRetention = 30 * 24 * time.Hour

	// DefaultOperationRetention is how long queued operations are kept
	// before the age sweep evicts them. Failed operations are exempt; they
	// wait for an explicit discard.
	DefaultOperationRetention = 90 * 24 * time.Hour

	// DefaultTempIDStaleAfter is how old an unreconciled temp-id entity
	// may get before it is reported as a health issue.
	DefaultTempIDStaleAfter = 7 * 24 * time.Hour

	// DefaultSyncStaleAfter is how old a "syncing" status may be before
	// startup recovery rewrites it to "error".
	DefaultSyncStaleAfter = 10 * time.Minute
)

// Verify interface compliance
var _ driving.CacheManager = (*CacheService)(nil)

// CacheService keeps the local store populated with a recent snapshot of
// remote reference data, and reports on cache health. It is soft-failing
// throughout: store and gateway errors are logged and notified, never
// panicked, and read paths degrade to safe defaults.
type CacheService struct {
	entities    driven.EntityStore
	operations  driven.OperationStore
	metadata    driven.MetadataStore
	gateway     driven.EntityGateway
	conn        driven.Connectivity
	notifier    driven.Notifier
	logger      *slog.Logger
	collections []domain.Collection

	tombstoneRetention time.Duration
	operationRetention time.Duration
	tempIDStaleAfter   time.Duration
	syncStaleAfter     time.Duration
}

// CacheServiceConfig holds dependencies for CacheService.
type CacheServiceConfig struct {
	EntityStore    driven.EntityStore
	OperationStore driven.OperationStore
	MetadataStore  driven.MetadataStore
	Gateway        driven.EntityGateway
	Connectivity   driven.Connectivity
	Notifier       driven.Notifier
	Logger         *slog.Logger

	// Collections overrides the registered collection set (tests only).
	Collections []domain.Collection

	// Retention overrides; zero means the package default.
	TombstoneRetention time.Duration
	OperationRetention time.Duration
	TempIDStaleAfter   time.Duration
	SyncStaleAfter     time.Duration
}

// NewCacheService creates a new cache service.
func NewCacheService(cfg CacheServiceConfig) *CacheService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collections := cfg.Collections
	if len(collections) == 0 {
		collections = domain.RegisteredCollections()
	}

	s := &CacheService{
		entities:           cfg.EntityStore,
		operations:         cfg.OperationStore,
		metadata:           cfg.MetadataStore,
		gateway:            cfg.Gateway,
		conn:               cfg.Connectivity,
		notifier:           cfg.Notifier,
		logger:             logger,
		collections:        collections,
		tombstoneRetention: cfg.TombstoneRetention,
		operationRetention: cfg.OperationRetention,
		tempIDStaleAfter:   cfg.TempIDStaleAfter,
		syncStaleAfter:     cfg.SyncStaleAfter,
	}
	if s.tombstoneRetention == 0 {
		s.tombstoneRetention = DefaultTombstoneRetention
	}
	if s.operationRetention == 0 {
		s.operationRetention = DefaultOperationRetention
	}
	if s.tempIDStaleAfter == 0 {
		s.tempIDStaleAfter = DefaultTempIDStaleAfter
	}
	if s.syncStaleAfter == 0 {
		s.syncStaleAfter = DefaultSyncStaleAfter
	}
	return s
}

// Preload fetches the full remote set for a collection and caches it.
// While offline it is a logged no-op: the gateway is not called and the
// preload metadata keeps its previous LastSync. A failed fetch records an
// error status but also leaves LastSync untouched, so a failed preload
// never claims success and the prior snapshot stays usable.
func (s *CacheService) Preload(ctx context.Context, collection domain.Collection) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: collection %q", domain.ErrInvalidInput, collection)
	}

	if !s.conn.Online(ctx) {
		s.logger.Info("preload skipped, offline", "collection", collection)
		return nil
	}

	meta, err := s.metadata.Get(ctx, collection.PreloadKey())
	if err != nil {
		s.logger.Warn("failed to read preload metadata", "collection", collection, "error", err)
		meta = domain.NewSyncMetadata(collection.PreloadKey())
	}
	meta.MarkSyncing()
	if err := s.metadata.Save(ctx, meta); err != nil {
		s.logger.Warn("failed to mark preload syncing", "collection", collection, "error", err)
	}

	records, err := s.gateway.FetchAll(ctx, collection)
	if err != nil {
		return s.failPreload(ctx, meta, collection, fmt.Errorf("fetch %s: %w", collection, err))
	}

	entities := make([]*domain.CachedEntity, 0, len(records))
	for _, record := range records {
		entities = append(entities, domain.NewCachedEntity(collection, record.ID, record.Data))
	}
	if err := s.entities.PutEntities(ctx, collection, entities); err != nil {
		return s.failPreload(ctx, meta, collection, fmt.Errorf("cache %s: %w", collection, err))
	}

	meta.MarkIdle()
	if err := s.metadata.Save(ctx, meta); err != nil {
		s.logger.Warn("failed to save preload metadata", "collection", collection, "error", err)
	}

	s.logger.Info("preload completed", "collection", collection, "entities", len(entities))
	return nil
}

// failPreload records a failed preload and returns the error.
func (s *CacheService) failPreload(ctx context.Context, meta *domain.SyncMetadata, collection domain.Collection, err error) error {
	s.logger.Error("preload failed", "collection", collection, "error", err)
	s.notifier.Error(fmt.Sprintf("Could not refresh %s from the server", collection))

	meta.MarkError(err.Error())
	if saveErr := s.metadata.Save(ctx, meta); saveErr != nil {
		s.logger.Warn("failed to save preload error state", "collection", collection, "error", saveErr)
	}
	return err
}

// PreloadAll preloads every registered collection. One failed collection
// does not stop the rest.
func (s *CacheService) PreloadAll(ctx context.Context) error {
	var errs []error
	for _, collection := range s.collections {
		if err := s.Preload(ctx, collection); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CleanOldData sweeps tombstones older than the tombstone retention and
// queued operations older than the operation retention. Failed operations
// are exempt from the age sweep: dropping them silently would lose the
// only record of a mutation that never reached the server, so they stay
// until an operator discards them.
func (s *CacheService) CleanOldData(ctx context.Context) (*domain.CleanupReport, error) {
	report := &domain.CleanupReport{}
	var errs []error

	tombstoneCutoff := time.Now().Add(-s.tombstoneRetention)
	for _, collection := range s.collections {
		stale, err := s.entities.ListEntities(ctx, collection, driven.EntityFilter{DeletedBefore: &tombstoneCutoff})
		if err != nil {
			s.logger.Warn("cleanup: failed to list tombstones", "collection", collection, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(stale) == 0 {
			continue
		}
		ids := make([]string, len(stale))
		for i, e := range stale {
			ids[i] = e.ID
		}
		if err := s.entities.DeleteEntities(ctx, collection, ids); err != nil {
			s.logger.Warn("cleanup: failed to delete tombstones", "collection", collection, "error", err)
			errs = append(errs, err)
			continue
		}
		report.TombstonesRemoved += len(ids)
	}

	operationCutoff := time.Now().Add(-s.operationRetention)
	aged, err := s.operations.List(ctx, driven.OperationFilter{Before: &operationCutoff})
	if err != nil {
		s.logger.Warn("cleanup: failed to list aged operations", "error", err)
		errs = append(errs, err)
	}
	for _, op := range aged {
		if op.Failed() {
			report.FailedRetained++
			continue
		}
		if err := s.operations.Delete(ctx, op.ID); err != nil {
			s.logger.Warn("cleanup: failed to delete aged operation", "operation_id", op.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		report.OperationsRemoved++
	}

	s.logger.Info("cleanup completed",
		"tombstones_removed", report.TombstonesRemoved,
		"operations_removed", report.OperationsRemoved,
		"failed_retained", report.FailedRetained,
	)
	return report, errors.Join(errs...)
}

// Stats returns a snapshot of cache contents. It never fails: any store
// error degrades to the zeroed snapshot.
func (s *CacheService) Stats(ctx context.Context) *domain.CacheStats {
	stats := domain.EmptyCacheStats()

	var totalBytes int64
	for _, collection := range s.collections {
		count, err := s.entities.Count(ctx, collection)
		if err != nil {
			s.logger.Warn("stats unavailable", "collection", collection, "error", err)
			return domain.EmptyCacheStats()
		}
		stats.Collections[collection] = count

		size, err := s.entities.ApproxSizeBytes(ctx, collection)
		if err != nil {
			s.logger.Warn("stats unavailable", "collection", collection, "error", err)
			return domain.EmptyCacheStats()
		}
		totalBytes += size

		meta, err := s.metadata.Get(ctx, collection.PreloadKey())
		if err != nil {
			s.logger.Warn("stats unavailable", "collection", collection, "error", err)
			return domain.EmptyCacheStats()
		}
		stats.LastSync[collection] = meta.LastSync
	}
	stats.ApproxSizeKB = float64(totalBytes) / 1024

	pending, err := s.operations.Count(ctx)
	if err != nil {
		s.logger.Warn("stats unavailable", "error", err)
		return domain.EmptyCacheStats()
	}
	stats.PendingOperations = pending

	minRetries := domain.MaxRetries
	failed, err := s.operations.List(ctx, driven.OperationFilter{MinRetries: &minRetries})
	if err != nil {
		s.logger.Warn("stats unavailable", "error", err)
		return domain.EmptyCacheStats()
	}
	stats.FailedOperations = len(failed)

	return stats
}

// CheckHealth inspects the cache for failed operations, stale temp ids and
// errored sync streams.
func (s *CacheService) CheckHealth(ctx context.Context) *domain.HealthReport {
	var issues []string

	minRetries := domain.MaxRetries
	failed, err := s.operations.List(ctx, driven.OperationFilter{MinRetries: &minRetries})
	if err != nil {
		s.logger.Warn("health: failed to list operations", "error", err)
		issues = append(issues, "operation queue unreadable: "+err.Error())
	} else if len(failed) > 0 {
		issues = append(issues, fmt.Sprintf("%d operation(s) exceeded the retry limit and need manual intervention", len(failed)))
	}

	tempCutoff := time.Now().Add(-s.tempIDStaleAfter)
	for _, collection := range s.collections {
		stale, err := s.entities.ListEntities(ctx, collection, driven.EntityFilter{TempOnly: true, CreatedBefore: &tempCutoff})
		if err != nil {
			s.logger.Warn("health: failed to list entities", "collection", collection, "error", err)
			issues = append(issues, fmt.Sprintf("%s unreadable: %s", collection, err))
			continue
		}
		if len(stale) > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d entities still carry a temporary id older than %s", collection, len(stale), s.tempIDStaleAfter))
		}
	}

	for _, collection := range s.collections {
		meta, err := s.metadata.Get(ctx, collection.PreloadKey())
		if err != nil {
			s.logger.Warn("health: failed to read metadata", "collection", collection, "error", err)
			issues = append(issues, "sync metadata unreadable: "+err.Error())
			continue
		}
		if meta.Status == domain.SyncStatusError {
			issues = append(issues, fmt.Sprintf("%s preload last ended in error: %s", collection, meta.Error))
		}
	}

	return &domain.HealthReport{Healthy: len(issues) == 0, Issues: issues}
}

// ClearAll wipes every collection, the operation queue and sync metadata.
// Unconditional once invoked; confirming with the user is the caller's
// concern.
func (s *CacheService) ClearAll(ctx context.Context) error {
	var errs []error
	for _, collection := range s.collections {
		if err := s.entities.Clear(ctx, collection); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", collection, err))
		}
	}
	if err := s.operations.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear operations: %w", err))
	}
	if err := s.metadata.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear metadata: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		s.logger.Error("cache clear incomplete", "error", err)
		return err
	}

	s.logger.Info("cache cleared")
	s.notifier.Info("Local cache cleared")
	return nil
}

// RecoverStaleSync rewrites metadata stuck in "syncing" from a crashed run
// to "error". Run once at startup, before the worker starts.
func (s *CacheService) RecoverStaleSync(ctx context.Context) error {
	records, err := s.metadata.List(ctx)
	if err != nil {
		s.logger.Warn("stale sync recovery: failed to list metadata", "error", err)
		return err
	}

	cutoff := time.Now().Add(-s.syncStaleAfter)
	for _, meta := range records {
		if !meta.StaleSyncing(cutoff) {
			continue
		}
		s.logger.Warn("recovering stale sync status", "key", meta.Key, "updated_at", meta.UpdatedAt)
		meta.MarkError("sync interrupted: stale syncing status found at startup")
		if err := s.metadata.Save(ctx, meta); err != nil {
			s.logger.Warn("failed to recover stale sync status", "key", meta.Key, "error", err)
		}
	}
	return nil
}
