package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// MockOperationStore is an in-memory OperationStore for testing.
// Set Err to make every call fail.
type MockOperationStore struct {
	mu     sync.RWMutex
	ops    map[int64]*domain.PendingOperation
	nextID int64

	// Err, when set, is returned by every method.
	Err error
}

// NewMockOperationStore creates an empty MockOperationStore.
func NewMockOperationStore() *MockOperationStore {
	return &MockOperationStore{ops: make(map[int64]*domain.PendingOperation)}
}

func (m *MockOperationStore) Enqueue(ctx context.Context, op *domain.PendingOperation) (*domain.PendingOperation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.nextID++
	stored := *op
	stored.ID = m.nextID
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	stored.Retries = 0
	m.ops[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (m *MockOperationStore) Get(ctx context.Context, id int64) (*domain.PendingOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	op, ok := m.ops[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *op
	return &copied, nil
}

func (m *MockOperationStore) Update(ctx context.Context, id int64, patch domain.OperationPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	op, ok := m.ops[id]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.Retries != nil {
		op.Retries = *patch.Retries
	}
	if patch.Error != nil {
		op.Error = *patch.Error
	}
	return nil
}

func (m *MockOperationStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.ops, id)
	return nil
}

func (m *MockOperationStore) List(ctx context.Context, filter driven.OperationFilter) ([]*domain.PendingOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var result []*domain.PendingOperation
	for _, op := range m.ops {
		if !matchOperation(op, filter) {
			continue
		}
		copied := *op
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID < result[j].ID
		}
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

func matchOperation(op *domain.PendingOperation, filter driven.OperationFilter) bool {
	if filter.MaxRetries != nil && op.Retries >= *filter.MaxRetries {
		return false
	}
	if filter.MinRetries != nil && op.Retries < *filter.MinRetries {
		return false
	}
	if filter.Before != nil && !op.Timestamp.Before(*filter.Before) {
		return false
	}
	if filter.Collection != "" && op.Collection != filter.Collection {
		return false
	}
	if filter.EntityID != "" && op.EntityID != filter.EntityID {
		return false
	}
	return true
}

func (m *MockOperationStore) RemapEntityID(ctx context.Context, collection domain.Collection, oldID, newID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	remapped := 0
	for _, op := range m.ops {
		if op.Collection == collection && op.EntityID == oldID {
			op.EntityID = newID
			remapped++
		}
	}
	return remapped, nil
}

func (m *MockOperationStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.ops), nil
}

func (m *MockOperationStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.ops = make(map[int64]*domain.PendingOperation)
	return nil
}

// Helper methods for testing

func (m *MockOperationStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = make(map[int64]*domain.PendingOperation)
	m.nextID = 0
}

// Seed inserts an operation as-is, keeping its ID, Timestamp and Retries.
func (m *MockOperationStore) Seed(op *domain.PendingOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op.ID == 0 {
		m.nextID++
		op.ID = m.nextID
	} else if op.ID > m.nextID {
		m.nextID = op.ID
	}
	copied := *op
	m.ops[copied.ID] = &copied
}
