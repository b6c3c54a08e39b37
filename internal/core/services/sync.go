package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
	"github.com/ledgerline/offline-core/internal/core/ports/driving"
)

// syncLockName is the shared lock guarding replay across instances.
const syncLockName = "operations_replay"

// DefaultSyncLockTTL bounds how long a crashed instance can hold the
// replay lock.
const DefaultSyncLockTTL = 2 * time.Minute

// Verify interface compliance
var _ driving.SyncManager = (*SyncService)(nil)

// SyncService replays queued mutations against the backend in timestamp
// order. FIFO matters: a create must reach the server before a dependent
// update on the same temp id. One failing operation never aborts the
// batch, and a batch is safe to trigger redundantly.
type SyncService struct {
	operations driven.OperationStore
	entities   driven.EntityStore
	metadata   driven.MetadataStore
	gateway    driven.EntityGateway
	conn       driven.Connectivity
	notifier   driven.Notifier
	lock       driven.SyncLock
	logger     *slog.Logger
	lockTTL    time.Duration

	mu      sync.Mutex
	running bool
}

// SyncServiceConfig holds dependencies for SyncService.
type SyncServiceConfig struct {
	OperationStore driven.OperationStore
	EntityStore    driven.EntityStore
	MetadataStore  driven.MetadataStore
	Gateway        driven.EntityGateway
	Connectivity   driven.Connectivity
	Notifier       driven.Notifier

	// Lock is optional; nil means single-instance deployment and only the
	// in-process guard applies.
	Lock    driven.SyncLock
	LockTTL time.Duration

	Logger *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(cfg SyncServiceConfig) *SyncService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = DefaultSyncLockTTL
	}
	return &SyncService{
		operations: cfg.OperationStore,
		entities:   cfg.EntityStore,
		metadata:   cfg.MetadataStore,
		gateway:    cfg.Gateway,
		conn:       cfg.Connectivity,
		notifier:   cfg.Notifier,
		lock:       cfg.Lock,
		logger:     logger,
		lockTTL:    lockTTL,
	}
}

// Enqueue queues a mutation for later replay and applies its optimistic
// effect to the cache, so the dashboard sees the change immediately. The
// queue row is the source of truth; a failed optimistic cache write is
// logged but does not fail the enqueue.
func (s *SyncService) Enqueue(ctx context.Context, op *domain.PendingOperation) (*domain.PendingOperation, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.operations.Enqueue(ctx, op)
	if err != nil {
		s.logger.Error("failed to enqueue operation", "type", op.Type, "collection", op.Collection, "error", err)
		return nil, fmt.Errorf("enqueue operation: %w", err)
	}

	s.applyOptimistic(ctx, stored)

	s.logger.Info("operation queued",
		"operation_id", stored.ID,
		"type", stored.Type,
		"collection", stored.Collection,
		"entity_id", stored.EntityID,
	)
	return stored, nil
}

// applyOptimistic mirrors a queued mutation into the entity cache.
func (s *SyncService) applyOptimistic(ctx context.Context, op *domain.PendingOperation) {
	switch op.Type {
	case domain.OperationCreate:
		entity := domain.NewCachedEntity(op.Collection, op.EntityID, op.Payload)
		if err := s.entities.PutEntities(ctx, op.Collection, []*domain.CachedEntity{entity}); err != nil {
			s.logger.Warn("optimistic create not cached", "entity_id", op.EntityID, "error", err)
		}
	case domain.OperationUpdate:
		entity, err := s.entities.GetEntity(ctx, op.Collection, op.EntityID)
		if err != nil {
			entity = domain.NewCachedEntity(op.Collection, op.EntityID, op.Payload)
		} else {
			entity.Data = op.Payload
		}
		if err := s.entities.PutEntities(ctx, op.Collection, []*domain.CachedEntity{entity}); err != nil {
			s.logger.Warn("optimistic update not cached", "entity_id", op.EntityID, "error", err)
		}
	case domain.OperationDelete:
		entity, err := s.entities.GetEntity(ctx, op.Collection, op.EntityID)
		if err != nil {
			return
		}
		entity.MarkDeleted()
		if err := s.entities.PutEntities(ctx, op.Collection, []*domain.CachedEntity{entity}); err != nil {
			s.logger.Warn("optimistic delete not cached", "entity_id", op.EntityID, "error", err)
		}
	}
}

// ProcessPending drains the operation queue oldest-first. Operations that
// exhausted their retries are skipped and left for manual intervention. A
// run already in flight returns domain.ErrSyncInProgress; a run while
// offline returns a skipped report without touching the gateway.
func (s *SyncService) ProcessPending(ctx context.Context) (*domain.SyncReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, domain.ErrSyncInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report := &domain.SyncReport{}
	startTime := time.Now()

	if !s.conn.Online(ctx) {
		s.logger.Info("sync skipped, offline")
		return report, nil
	}

	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, syncLockName, s.lockTTL)
		if err != nil {
			// Lock backend trouble should not stop a sync; the in-process
			// guard still holds for this instance.
			s.logger.Warn("sync lock unavailable, proceeding unlocked", "error", err)
		} else if !acquired {
			s.logger.Info("sync skipped, another instance holds the lock")
			return nil, domain.ErrSyncInProgress
		} else {
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), syncLockName); err != nil {
					s.logger.Warn("failed to release sync lock", "error", err)
				}
			}()
		}
	}

	meta, err := s.metadata.Get(ctx, domain.OperationsSyncKey)
	if err != nil {
		s.logger.Warn("failed to read sync metadata", "error", err)
		meta = domain.NewSyncMetadata(domain.OperationsSyncKey)
	}
	meta.MarkSyncing()
	if err := s.metadata.Save(ctx, meta); err != nil {
		s.logger.Warn("failed to mark sync running", "error", err)
	}

	ops, err := s.operations.List(ctx, driven.OperationFilter{})
	if err != nil {
		s.logger.Error("failed to list pending operations", "error", err)
		meta.MarkError(err.Error())
		if saveErr := s.metadata.Save(ctx, meta); saveErr != nil {
			s.logger.Warn("failed to save sync metadata", "error", saveErr)
		}
		return report, fmt.Errorf("list pending operations: %w", err)
	}

	for _, op := range ops {
		select {
		case <-ctx.Done():
			s.logger.Warn("sync interrupted", "error", ctx.Err())
			meta.MarkError(ctx.Err().Error())
			if saveErr := s.metadata.Save(context.WithoutCancel(ctx), meta); saveErr != nil {
				s.logger.Warn("failed to save sync metadata", "error", saveErr)
			}
			report.Duration = time.Since(startTime)
			return report, ctx.Err()
		default:
		}

		// Re-read the row: an earlier create in this batch may have
		// remapped this operation's entity id, and an operator may have
		// discarded it mid-run.
		current, err := s.operations.Get(ctx, op.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("failed to re-read operation", "operation_id", op.ID, "error", err)
			}
			continue
		}
		op = current

		if !op.CanAttempt() {
			report.Skipped++
			continue
		}
		report.Processed++

		if err := s.replay(ctx, op); err != nil {
			s.recordFailure(ctx, op, err)
			report.Failed++
			continue
		}

		if err := s.operations.Delete(ctx, op.ID); err != nil {
			// The remote mutation went through; keep going and let the
			// next run observe the leftover row.
			s.logger.Warn("failed to remove applied operation", "operation_id", op.ID, "error", err)
		}
		report.Succeeded++
	}

	meta.MarkIdle()
	if err := s.metadata.Save(ctx, meta); err != nil {
		s.logger.Warn("failed to save sync metadata", "error", err)
	}

	report.Duration = time.Since(startTime)
	s.logger.Info("sync completed",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)
	if report.Succeeded > 0 {
		s.notifier.Success(fmt.Sprintf("%d offline change(s) synced", report.Succeeded))
	}
	return report, nil
}

// replay dispatches one operation to the gateway.
func (s *SyncService) replay(ctx context.Context, op *domain.PendingOperation) error {
	switch op.Type {
	case domain.OperationCreate:
		record, err := s.gateway.Create(ctx, op.Collection, op.Payload)
		if err != nil {
			return err
		}
		if domain.IsTempID(op.EntityID) {
			s.reconcile(ctx, op.Collection, op.EntityID, record)
		}
		return nil
	case domain.OperationUpdate:
		return s.gateway.Update(ctx, op.Collection, op.EntityID, op.Payload)
	case domain.OperationDelete:
		if err := s.gateway.Delete(ctx, op.Collection, op.EntityID); err != nil {
			return err
		}
		if err := s.entities.DeleteEntities(ctx, op.Collection, []string{op.EntityID}); err != nil {
			s.logger.Warn("failed to drop tombstone", "entity_id", op.EntityID, "error", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// reconcile replaces a temp id with the server-assigned id: the cached
// entity is re-keyed and refreshed with the server record, and every
// still-queued operation referencing the temp id is remapped so dependent
// mutations replay against the real id.
func (s *SyncService) reconcile(ctx context.Context, collection domain.Collection, tempID string, record *driven.RemoteRecord) {
	if err := s.entities.ReplaceID(ctx, collection, tempID, record.ID); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to re-key reconciled entity", "temp_id", tempID, "error", err)
		}
	}

	entity := domain.NewCachedEntity(collection, record.ID, record.Data)
	if existing, err := s.entities.GetEntity(ctx, collection, record.ID); err == nil {
		entity.CreatedAt = existing.CreatedAt
	}
	if err := s.entities.PutEntities(ctx, collection, []*domain.CachedEntity{entity}); err != nil {
		s.logger.Warn("failed to refresh reconciled entity", "entity_id", record.ID, "error", err)
	}

	remapped, err := s.operations.RemapEntityID(ctx, collection, tempID, record.ID)
	if err != nil {
		s.logger.Warn("failed to remap dependent operations", "temp_id", tempID, "error", err)
		return
	}
	s.logger.Info("temp id reconciled",
		"collection", collection,
		"temp_id", tempID,
		"server_id", record.ID,
		"operations_remapped", remapped,
	)
}

// recordFailure bumps the retry count and keeps the operation queued.
func (s *SyncService) recordFailure(ctx context.Context, op *domain.PendingOperation, cause error) {
	retries := op.Retries + 1
	s.logger.Warn("operation replay failed",
		"operation_id", op.ID,
		"type", op.Type,
		"collection", op.Collection,
		"entity_id", op.EntityID,
		"retries", retries,
		"error", cause,
	)

	if err := s.operations.Update(ctx, op.ID, domain.FailurePatch(retries, cause.Error())); err != nil {
		s.logger.Error("failed to record operation failure", "operation_id", op.ID, "error", err)
		return
	}

	if retries >= domain.MaxRetries {
		s.notifier.Warning(fmt.Sprintf("A %s change on %s could not be synced and needs attention", op.Type, op.Collection))
	}
}

// PendingCount returns the number of queued operations.
func (s *SyncService) PendingCount(ctx context.Context) (int, error) {
	count, err := s.operations.Count(ctx)
	if err != nil {
		s.logger.Warn("failed to count pending operations", "error", err)
		return 0, err
	}
	return count, nil
}

// ListFailed returns operations that exhausted automatic retries.
func (s *SyncService) ListFailed(ctx context.Context) ([]*domain.PendingOperation, error) {
	minRetries := domain.MaxRetries
	ops, err := s.operations.List(ctx, driven.OperationFilter{MinRetries: &minRetries})
	if err != nil {
		s.logger.Warn("failed to list failed operations", "error", err)
		return nil, err
	}
	return ops, nil
}

// RetryOperation resets an operation for automatic replay.
func (s *SyncService) RetryOperation(ctx context.Context, id int64) error {
	if _, err := s.operations.Get(ctx, id); err != nil {
		return err
	}
	if err := s.operations.Update(ctx, id, domain.ResetPatch()); err != nil {
		return fmt.Errorf("reset operation %d: %w", id, err)
	}
	s.logger.Info("operation reset for retry", "operation_id", id)
	return nil
}

// DiscardOperation deletes an operation unconditionally, whatever its
// state.
func (s *SyncService) DiscardOperation(ctx context.Context, id int64) error {
	if err := s.operations.Delete(ctx, id); err != nil {
		return fmt.Errorf("discard operation %d: %w", id, err)
	}
	s.logger.Info("operation discarded", "operation_id", id)
	return nil
}

// RetryAll resets every failed operation. The pass is not atomic: an
// operation failing over the ceiling mid-pass is picked up next time.
func (s *SyncService) RetryAll(ctx context.Context) (int, error) {
	failed, err := s.ListFailed(ctx)
	if err != nil {
		return 0, err
	}
	reset := 0
	for _, op := range failed {
		if err := s.operations.Update(ctx, op.ID, domain.ResetPatch()); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.logger.Warn("failed to reset operation", "operation_id", op.ID, "error", err)
			continue
		}
		reset++
	}
	return reset, nil
}

// DiscardAll deletes every failed operation.
func (s *SyncService) DiscardAll(ctx context.Context) (int, error) {
	failed, err := s.ListFailed(ctx)
	if err != nil {
		return 0, err
	}
	discarded := 0
	for _, op := range failed {
		if err := s.operations.Delete(ctx, op.ID); err != nil {
			s.logger.Warn("failed to discard operation", "operation_id", op.ID, "error", err)
			continue
		}
		discarded++
	}
	return discarded, nil
}
