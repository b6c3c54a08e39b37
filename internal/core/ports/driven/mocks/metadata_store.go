package mocks

import (
	"context"
	"sync"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// MockMetadataStore is an in-memory MetadataStore for testing.
// Set Err to make every call fail.
type MockMetadataStore struct {
	mu   sync.RWMutex
	meta map[string]*domain.SyncMetadata

	// Err, when set, is returned by every method.
	Err error
}

// NewMockMetadataStore creates an empty MockMetadataStore.
func NewMockMetadataStore() *MockMetadataStore {
	return &MockMetadataStore{meta: make(map[string]*domain.SyncMetadata)}
}

func (m *MockMetadataStore) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	record, ok := m.meta[key]
	if !ok {
		return domain.NewSyncMetadata(key), nil
	}
	copied := *record
	return &copied, nil
}

func (m *MockMetadataStore) Save(ctx context.Context, meta *domain.SyncMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	copied := *meta
	m.meta[meta.Key] = &copied
	return nil
}

func (m *MockMetadataStore) List(ctx context.Context) ([]*domain.SyncMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*domain.SyncMetadata
	for _, record := range m.meta {
		copied := *record
		result = append(result, &copied)
	}
	return result, nil
}

func (m *MockMetadataStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.meta = make(map[string]*domain.SyncMetadata)
	return nil
}

// Helper methods for testing

func (m *MockMetadataStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = make(map[string]*domain.SyncMetadata)
}

// Has reports whether a key was explicitly written.
func (m *MockMetadataStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.meta[key]
	return ok
}
