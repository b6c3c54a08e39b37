package mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// GatewayCall records one dispatch to the mock gateway, for asserting
// replay order.
type GatewayCall struct {
	Method     string
	Collection domain.Collection
	EntityID   string
	Payload    json.RawMessage
}

// MockGateway is a scriptable EntityGateway for testing.
type MockGateway struct {
	mu sync.Mutex

	// Remote keeps the pretend server-side records per collection.
	Remote map[domain.Collection][]driven.RemoteRecord

	// Calls records every dispatch in order.
	Calls []GatewayCall

	// Err, when set, is returned by every call.
	Err error

	// CreateID, when non-empty, is the server id assigned to the next
	// created record. Otherwise ids are generated sequentially.
	CreateID string

	nextID int
}

// NewMockGateway creates an empty MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{Remote: make(map[domain.Collection][]driven.RemoteRecord)}
}

func (g *MockGateway) record(call GatewayCall) {
	g.Calls = append(g.Calls, call)
}

func (g *MockGateway) FetchAll(ctx context.Context, collection domain.Collection) ([]driven.RemoteRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(GatewayCall{Method: "fetch_all", Collection: collection})
	if g.Err != nil {
		return nil, g.Err
	}
	return append([]driven.RemoteRecord(nil), g.Remote[collection]...), nil
}

func (g *MockGateway) Create(ctx context.Context, collection domain.Collection, payload json.RawMessage) (*driven.RemoteRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(GatewayCall{Method: "create", Collection: collection, Payload: payload})
	if g.Err != nil {
		return nil, g.Err
	}
	id := g.CreateID
	if id == "" {
		g.nextID++
		id = fmt.Sprintf("%s-%d", collection, g.nextID)
	}
	record := driven.RemoteRecord{ID: id, Data: payload}
	g.Remote[collection] = append(g.Remote[collection], record)
	return &record, nil
}

func (g *MockGateway) Update(ctx context.Context, collection domain.Collection, id string, payload json.RawMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(GatewayCall{Method: "update", Collection: collection, EntityID: id, Payload: payload})
	if g.Err != nil {
		return g.Err
	}
	for i, record := range g.Remote[collection] {
		if record.ID == id {
			g.Remote[collection][i].Data = payload
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *MockGateway) Delete(ctx context.Context, collection domain.Collection, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(GatewayCall{Method: "delete", Collection: collection, EntityID: id})
	if g.Err != nil {
		return g.Err
	}
	records := g.Remote[collection]
	for i, record := range records {
		if record.ID == id {
			g.Remote[collection] = append(records[:i], records[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (g *MockGateway) Ping(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Err
}

// Helper methods for testing

// CallsTo returns the recorded calls targeting the given entity id.
func (g *MockGateway) CallsTo(entityID string) []GatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var result []GatewayCall
	for _, call := range g.Calls {
		if call.EntityID == entityID {
			result = append(result, call)
		}
	}
	return result
}

// Seed adds a server-side record.
func (g *MockGateway) Seed(collection domain.Collection, records ...driven.RemoteRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Remote[collection] = append(g.Remote[collection], records...)
}
