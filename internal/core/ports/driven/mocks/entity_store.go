package mocks

import (
	"context"
	"sync"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// MockEntityStore is an in-memory EntityStore for testing.
// Set Err to make every call fail, for exercising soft-failure paths.
type MockEntityStore struct {
	mu       sync.RWMutex
	entities map[domain.Collection]map[string]*domain.CachedEntity

	// Err, when set, is returned by every method.
	Err error
}

// NewMockEntityStore creates an empty MockEntityStore.
func NewMockEntityStore() *MockEntityStore {
	return &MockEntityStore{
		entities: make(map[domain.Collection]map[string]*domain.CachedEntity),
	}
}

func (m *MockEntityStore) table(collection domain.Collection) map[string]*domain.CachedEntity {
	t, ok := m.entities[collection]
	if !ok {
		t = make(map[string]*domain.CachedEntity)
		m.entities[collection] = t
	}
	return t
}

func (m *MockEntityStore) PutEntities(ctx context.Context, collection domain.Collection, entities []*domain.CachedEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	t := m.table(collection)
	for _, e := range entities {
		copied := *e
		t[e.ID] = &copied
	}
	return nil
}

func (m *MockEntityStore) GetEntity(ctx context.Context, collection domain.Collection, id string) (*domain.CachedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.entities[collection][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *MockEntityStore) ListEntities(ctx context.Context, collection domain.Collection, filter driven.EntityFilter) ([]*domain.CachedEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*domain.CachedEntity
	for _, e := range m.entities[collection] {
		if !matchEntity(e, filter) {
			continue
		}
		copied := *e
		result = append(result, &copied)
	}
	return result, nil
}

func matchEntity(e *domain.CachedEntity, filter driven.EntityFilter) bool {
	if (filter.Tombstoned || filter.DeletedBefore != nil) && e.DeletedAt == nil {
		return false
	}
	if filter.DeletedBefore != nil && !e.DeletedAt.Before(*filter.DeletedBefore) {
		return false
	}
	if filter.TempOnly && !domain.IsTempID(e.ID) {
		return false
	}
	if filter.CreatedBefore != nil && !e.CreatedAt.Before(*filter.CreatedBefore) {
		return false
	}
	return true
}

func (m *MockEntityStore) DeleteEntities(ctx context.Context, collection domain.Collection, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	t := m.entities[collection]
	for _, id := range ids {
		delete(t, id)
	}
	return nil
}

func (m *MockEntityStore) ReplaceID(ctx context.Context, collection domain.Collection, oldID, newID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	t := m.table(collection)
	e, ok := t[oldID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(t, oldID)
	e.ID = newID
	t[newID] = e
	return nil
}

func (m *MockEntityStore) Count(ctx context.Context, collection domain.Collection) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.entities[collection]), nil
}

func (m *MockEntityStore) ApproxSizeBytes(ctx context.Context, collection domain.Collection) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	var size int64
	for _, e := range m.entities[collection] {
		size += int64(len(e.ID) + len(e.Data))
	}
	return size, nil
}

func (m *MockEntityStore) Clear(ctx context.Context, collection domain.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.entities, collection)
	return nil
}

// Helper methods for testing

func (m *MockEntityStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities = make(map[domain.Collection]map[string]*domain.CachedEntity)
}
