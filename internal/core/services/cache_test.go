package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
	"github.com/ledgerline/offline-core/internal/core/ports/driven/mocks"
)

// Test helper to create CacheService with mocks
func createTestCacheService(t *testing.T) (
	*CacheService,
	*mocks.MockEntityStore,
	*mocks.MockOperationStore,
	*mocks.MockMetadataStore,
	*mocks.MockGateway,
	*mocks.MockConnectivity,
	*mocks.MockNotifier,
) {
	t.Helper()

	entityStore := mocks.NewMockEntityStore()
	operationStore := mocks.NewMockOperationStore()
	metadataStore := mocks.NewMockMetadataStore()
	gateway := mocks.NewMockGateway()
	conn := mocks.NewMockConnectivity(true)
	notifier := mocks.NewMockNotifier()

	service := NewCacheService(CacheServiceConfig{
		EntityStore:    entityStore,
		OperationStore: operationStore,
		MetadataStore:  metadataStore,
		Gateway:        gateway,
		Connectivity:   conn,
		Notifier:       notifier,
	})

	return service, entityStore, operationStore, metadataStore, gateway, conn, notifier
}

func TestNewCacheService_Defaults(t *testing.T) {
	service, _, _, _, _, _, _ := createTestCacheService(t)
	if service.logger == nil {
		t.Error("expected non-nil logger")
	}
	if service.tombstoneRetention != DefaultTombstoneRetention {
		t.Errorf("expected default tombstone retention, got %s", service.tombstoneRetention)
	}
	if len(service.collections) != len(domain.RegisteredCollections()) {
		t.Error("expected registered collections by default")
	}
}

func TestPreload_OfflineNoOp(t *testing.T) {
	service, _, _, metadataStore, gateway, conn, _ := createTestCacheService(t)
	ctx := context.Background()

	conn.SetOnline(false)

	if err := service.Preload(ctx, domain.CollectionProviders); err != nil {
		t.Fatalf("offline preload should be a silent no-op, got %v", err)
	}
	if len(gateway.Calls) != 0 {
		t.Error("offline preload must not call the gateway")
	}
	if metadataStore.Has(domain.CollectionProviders.PreloadKey()) {
		t.Error("offline preload must not touch sync metadata")
	}
}

func TestPreload_CachesRemoteSet(t *testing.T) {
	service, entityStore, _, metadataStore, gateway, _, _ := createTestCacheService(t)
	ctx := context.Background()

	gateway.Seed(domain.CollectionProviders,
		driven.RemoteRecord{ID: "prov-1", Data: json.RawMessage(`{"name":"ACME"}`)},
		driven.RemoteRecord{ID: "prov-2", Data: json.RawMessage(`{"name":"Globex"}`)},
	)

	if err := service.Preload(ctx, domain.CollectionProviders); err != nil {
		t.Fatalf("preload failed: %v", err)
	}

	count, _ := entityStore.Count(ctx, domain.CollectionProviders)
	if count != 2 {
		t.Errorf("expected 2 cached providers, got %d", count)
	}

	meta, _ := metadataStore.Get(ctx, domain.CollectionProviders.PreloadKey())
	if meta.Status != domain.SyncStatusIdle {
		t.Errorf("expected idle status after preload, got %s", meta.Status)
	}
	if meta.LastSync == nil {
		t.Error("expected LastSync to advance after a successful preload")
	}
}

func TestPreload_GatewayError(t *testing.T) {
	service, entityStore, _, metadataStore, gateway, _, notifier := createTestCacheService(t)
	ctx := context.Background()

	// Prior successful preload state
	previous := time.Now().Add(-2 * time.Hour)
	meta := domain.NewSyncMetadata(domain.CollectionProviders.PreloadKey())
	meta.LastSync = &previous
	_ = metadataStore.Save(ctx, meta)

	stale := domain.NewCachedEntity(domain.CollectionProviders, "prov-1", json.RawMessage(`{"name":"ACME"}`))
	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{stale})

	gateway.Err = errors.New("connection refused")

	err := service.Preload(ctx, domain.CollectionProviders)
	if err == nil {
		t.Fatal("expected error when gateway is unreachable")
	}

	// Stale cache is left intact
	count, _ := entityStore.Count(ctx, domain.CollectionProviders)
	if count != 1 {
		t.Errorf("failed preload must leave the prior snapshot untouched, got %d rows", count)
	}

	// Metadata records the failure but keeps the prior LastSync
	got, _ := metadataStore.Get(ctx, domain.CollectionProviders.PreloadKey())
	if got.Status != domain.SyncStatusError {
		t.Errorf("expected error status, got %s", got.Status)
	}
	if got.LastSync == nil || !got.LastSync.Equal(previous) {
		t.Error("failed preload must not advance LastSync")
	}

	if notifier.Count("error") != 1 {
		t.Error("expected one error notification")
	}
}

func TestPreload_InvalidCollection(t *testing.T) {
	service, _, _, _, gateway, _, _ := createTestCacheService(t)

	err := service.Preload(context.Background(), domain.Collection("invoices"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(gateway.Calls) != 0 {
		t.Error("invalid collection must not reach the gateway")
	}
}

func TestPreloadAll_ContinuesPastFailures(t *testing.T) {
	service, entityStore, _, _, gateway, _, _ := createTestCacheService(t)
	ctx := context.Background()

	gateway.Seed(domain.CollectionClients,
		driven.RemoteRecord{ID: "client-1", Data: json.RawMessage(`{"name":"Initech"}`)},
	)

	if err := service.PreloadAll(ctx); err != nil {
		t.Fatalf("preload all failed: %v", err)
	}

	count, _ := entityStore.Count(ctx, domain.CollectionClients)
	if count != 1 {
		t.Errorf("expected clients preloaded, got %d", count)
	}
}

func daysAgo(d int) time.Time {
	return time.Now().Add(-time.Duration(d) * 24 * time.Hour)
}

func TestCleanOldData_TombstoneThreshold(t *testing.T) {
	service, entityStore, _, _, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	oldDelete := daysAgo(31)
	recentDelete := daysAgo(29)

	aged := domain.NewCachedEntity(domain.CollectionProviders, "prov-old", nil)
	aged.DeletedAt = &oldDelete
	recent := domain.NewCachedEntity(domain.CollectionProviders, "prov-recent", nil)
	recent.DeletedAt = &recentDelete
	live := domain.NewCachedEntity(domain.CollectionProviders, "prov-live", nil)

	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{aged, recent, live})

	report, err := service.CleanOldData(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if report.TombstonesRemoved != 1 {
		t.Errorf("expected 1 tombstone removed, got %d", report.TombstonesRemoved)
	}

	if _, err := entityStore.GetEntity(ctx, domain.CollectionProviders, "prov-old"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("31-day-old tombstone should be purged")
	}
	if _, err := entityStore.GetEntity(ctx, domain.CollectionProviders, "prov-recent"); err != nil {
		t.Error("29-day-old tombstone should be retained")
	}
	if _, err := entityStore.GetEntity(ctx, domain.CollectionProviders, "prov-live"); err != nil {
		t.Error("live entity should be retained")
	}
}

func TestCleanOldData_OperationThreshold(t *testing.T) {
	service, _, operationStore, _, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	operationStore.Seed(&domain.PendingOperation{
		ID: 1, Type: domain.OperationUpdate, Collection: domain.CollectionClients,
		EntityID: "client-1", Timestamp: daysAgo(91),
	})
	operationStore.Seed(&domain.PendingOperation{
		ID: 2, Type: domain.OperationUpdate, Collection: domain.CollectionClients,
		EntityID: "client-2", Timestamp: daysAgo(89),
	})
	// Aged out but failed: the sweep must not silently drop it.
	operationStore.Seed(&domain.PendingOperation{
		ID: 3, Type: domain.OperationCreate, Collection: domain.CollectionClients,
		EntityID: "temp_x", Timestamp: daysAgo(120), Retries: domain.MaxRetries,
	})

	report, err := service.CleanOldData(ctx)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	if report.OperationsRemoved != 1 {
		t.Errorf("expected 1 operation removed, got %d", report.OperationsRemoved)
	}
	if report.FailedRetained != 1 {
		t.Errorf("expected 1 failed operation retained, got %d", report.FailedRetained)
	}

	if _, err := operationStore.Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Error("91-day-old pending operation should be evicted")
	}
	if _, err := operationStore.Get(ctx, 2); err != nil {
		t.Error("89-day-old operation should be retained")
	}
	if _, err := operationStore.Get(ctx, 3); err != nil {
		t.Error("aged failed operation must wait for an explicit discard")
	}
}

func TestStats(t *testing.T) {
	service, entityStore, operationStore, metadataStore, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{
		domain.NewCachedEntity(domain.CollectionProviders, "prov-1", json.RawMessage(`{"name":"ACME"}`)),
		domain.NewCachedEntity(domain.CollectionProviders, "prov-2", json.RawMessage(`{"name":"Globex"}`)),
	})

	lastSync := time.Now().Add(-time.Hour)
	meta := domain.NewSyncMetadata(domain.CollectionProviders.PreloadKey())
	meta.LastSync = &lastSync
	_ = metadataStore.Save(ctx, meta)

	operationStore.Seed(&domain.PendingOperation{
		ID: 1, Type: domain.OperationUpdate, Collection: domain.CollectionProviders,
		EntityID: "prov-1", Timestamp: time.Now(),
	})
	operationStore.Seed(&domain.PendingOperation{
		ID: 2, Type: domain.OperationUpdate, Collection: domain.CollectionProviders,
		EntityID: "prov-2", Timestamp: time.Now(), Retries: domain.MaxRetries,
	})

	stats := service.Stats(ctx)

	if stats.Collections[domain.CollectionProviders] != 2 {
		t.Errorf("expected 2 providers, got %d", stats.Collections[domain.CollectionProviders])
	}
	if stats.PendingOperations != 2 {
		t.Errorf("expected 2 pending operations, got %d", stats.PendingOperations)
	}
	if stats.FailedOperations != 1 {
		t.Errorf("expected 1 failed operation, got %d", stats.FailedOperations)
	}
	if stats.LastSync[domain.CollectionProviders] == nil {
		t.Error("expected providers last sync to be reported")
	}
	if stats.ApproxSizeKB <= 0 {
		t.Error("expected a non-zero size estimate")
	}
}

func TestStats_StoreFailureReturnsZeroed(t *testing.T) {
	service, entityStore, _, _, _, _, _ := createTestCacheService(t)

	entityStore.Err = errors.New("disk I/O error")

	stats := service.Stats(context.Background())
	if stats == nil {
		t.Fatal("stats must never be nil")
	}
	if stats.PendingOperations != 0 || stats.ApproxSizeKB != 0 {
		t.Error("unreadable store must yield the zeroed snapshot")
	}
	for collection, count := range stats.Collections {
		if count != 0 {
			t.Errorf("expected zero count for %s, got %d", collection, count)
		}
	}
}

func TestCheckHealth_Healthy(t *testing.T) {
	service, _, _, _, _, _, _ := createTestCacheService(t)

	report := service.CheckHealth(context.Background())
	if !report.Healthy {
		t.Errorf("empty cache should be healthy, issues: %v", report.Issues)
	}
	if len(report.Issues) != 0 {
		t.Errorf("expected no issues, got %v", report.Issues)
	}
}

func TestCheckHealth_FailedOperations(t *testing.T) {
	service, _, operationStore, _, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	operationStore.Seed(&domain.PendingOperation{
		ID: 1, Type: domain.OperationUpdate, Collection: domain.CollectionClients,
		EntityID: "client-1", Timestamp: time.Now(), Retries: domain.MaxRetries,
	})

	report := service.CheckHealth(ctx)
	if report.Healthy {
		t.Error("failed operations should make the cache unhealthy")
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %v", report.Issues)
	}
	if !strings.Contains(report.Issues[0], "retry limit") {
		t.Errorf("issue should mention the retry limit, got %q", report.Issues[0])
	}
}

func TestCheckHealth_StaleTempIDs(t *testing.T) {
	service, entityStore, _, _, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	stale := domain.NewCachedEntity(domain.CollectionProviders, domain.NewTempID(), nil)
	stale.CreatedAt = daysAgo(8)
	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{stale})

	report := service.CheckHealth(ctx)
	if report.Healthy {
		t.Error("stale temp ids should make the cache unhealthy")
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %v", report.Issues)
	}
	if !strings.Contains(report.Issues[0], string(domain.CollectionProviders)) {
		t.Errorf("issue should name the collection, got %q", report.Issues[0])
	}
}

func TestCheckHealth_FreshTempIDIsFine(t *testing.T) {
	service, entityStore, _, _, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	fresh := domain.NewCachedEntity(domain.CollectionProviders, domain.NewTempID(), nil)
	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{fresh})

	report := service.CheckHealth(ctx)
	if !report.Healthy {
		t.Errorf("a fresh temp id is not a health issue, got %v", report.Issues)
	}
}

func TestCheckHealth_ErroredSyncStream(t *testing.T) {
	service, _, _, metadataStore, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	meta := domain.NewSyncMetadata(domain.CollectionClients.PreloadKey())
	meta.MarkError("connection refused")
	_ = metadataStore.Save(ctx, meta)

	report := service.CheckHealth(ctx)
	if report.Healthy {
		t.Error("errored sync stream should make the cache unhealthy")
	}
	if len(report.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %v", report.Issues)
	}
	if !strings.Contains(report.Issues[0], "connection refused") {
		t.Errorf("issue should carry the sync error, got %q", report.Issues[0])
	}
}

func TestClearAll(t *testing.T) {
	service, entityStore, operationStore, metadataStore, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	_ = entityStore.PutEntities(ctx, domain.CollectionProviders, []*domain.CachedEntity{
		domain.NewCachedEntity(domain.CollectionProviders, "prov-1", nil),
	})
	operationStore.Seed(&domain.PendingOperation{
		ID: 1, Type: domain.OperationUpdate, Collection: domain.CollectionProviders,
		EntityID: "prov-1", Timestamp: time.Now(),
	})
	_ = metadataStore.Save(ctx, domain.NewSyncMetadata(domain.CollectionProviders.PreloadKey()))

	if err := service.ClearAll(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	count, _ := entityStore.Count(ctx, domain.CollectionProviders)
	if count != 0 {
		t.Error("entities should be cleared")
	}
	pending, _ := operationStore.Count(ctx)
	if pending != 0 {
		t.Error("operation queue should be cleared")
	}
	if metadataStore.Has(domain.CollectionProviders.PreloadKey()) {
		t.Error("metadata should be cleared")
	}
}

func TestRecoverStaleSync(t *testing.T) {
	service, _, _, metadataStore, _, _, _ := createTestCacheService(t)
	ctx := context.Background()

	stale := domain.NewSyncMetadata(domain.OperationsSyncKey)
	stale.MarkSyncing()
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	_ = metadataStore.Save(ctx, stale)

	fresh := domain.NewSyncMetadata(domain.CollectionProviders.PreloadKey())
	fresh.MarkSyncing()
	_ = metadataStore.Save(ctx, fresh)

	if err := service.RecoverStaleSync(ctx); err != nil {
		t.Fatalf("recovery failed: %v", err)
	}

	got, _ := metadataStore.Get(ctx, domain.OperationsSyncKey)
	if got.Status != domain.SyncStatusError {
		t.Errorf("stale syncing status should be rewritten to error, got %s", got.Status)
	}

	untouched, _ := metadataStore.Get(ctx, domain.CollectionProviders.PreloadKey())
	if untouched.Status != domain.SyncStatusSyncing {
		t.Errorf("fresh syncing status should be left alone, got %s", untouched.Status)
	}
}
