package mocks

import (
	"context"
	"sync"
	"time"
)

// MockConnectivity is a switchable Connectivity for testing.
type MockConnectivity struct {
	mu     sync.RWMutex
	online bool
}

// NewMockConnectivity creates a MockConnectivity in the given state.
func NewMockConnectivity(online bool) *MockConnectivity {
	return &MockConnectivity{online: online}
}

func (m *MockConnectivity) Online(ctx context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline flips the connectivity state.
func (m *MockConnectivity) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online = online
}

// MockNotifier records notifications for testing.
type MockNotifier struct {
	mu       sync.Mutex
	Messages map[string][]string
}

// NewMockNotifier creates an empty MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Messages: make(map[string][]string)}
}

func (n *MockNotifier) add(level, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages[level] = append(n.Messages[level], msg)
}

func (n *MockNotifier) Success(msg string) { n.add("success", msg) }
func (n *MockNotifier) Info(msg string)    { n.add("info", msg) }
func (n *MockNotifier) Warning(msg string) { n.add("warning", msg) }
func (n *MockNotifier) Error(msg string)   { n.add("error", msg) }

// Count returns how many notifications were recorded at a level.
func (n *MockNotifier) Count(level string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Messages[level])
}

// MockSyncLock is an in-memory SyncLock for testing.
type MockSyncLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	Fail  bool // refuse every acquire
	Err   error
	Calls int
}

// NewMockSyncLock creates an empty MockSyncLock.
func NewMockSyncLock() *MockSyncLock {
	return &MockSyncLock{held: make(map[string]time.Time)}
}

func (l *MockSyncLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls++
	if l.Err != nil {
		return false, l.Err
	}
	if l.Fail {
		return false, nil
	}
	if expiry, ok := l.held[name]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[name] = time.Now().Add(ttl)
	return true, nil
}

func (l *MockSyncLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return l.Err
}

func (l *MockSyncLock) Extend(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	if _, ok := l.held[name]; !ok {
		return false, nil
	}
	l.held[name] = time.Now().Add(ttl)
	return true, nil
}
