package driven

import (
	"context"
	"encoding/json"

	"github.com/ledgerline/offline-core/internal/core/domain"
)

// RemoteRecord is one entity as the backend returns it: the server-assigned
// id plus the record's domain fields, opaque to the cache core.
type RemoteRecord struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// EntityGateway abstracts the backend's per-collection CRUD API. Adapters
// are expected to apply a per-request timeout so a hung call stalls one
// operation's replay, never the whole batch.
type EntityGateway interface {
	// FetchAll retrieves the full remote set for a collection, walking
	// pagination internally.
	FetchAll(ctx context.Context, collection domain.Collection) ([]RemoteRecord, error)

	// Create persists a new entity remotely and returns the stored record
	// with its server-assigned id.
	Create(ctx context.Context, collection domain.Collection, payload json.RawMessage) (*RemoteRecord, error)

	// Update replays an update against an existing remote entity.
	Update(ctx context.Context, collection domain.Collection, id string, payload json.RawMessage) error

	// Delete removes a remote entity. Deleting an id the server no longer
	// has is surfaced as an error; callers decide whether that matters.
	Delete(ctx context.Context, collection domain.Collection, id string) error

	// Ping checks whether the backend is reachable.
	Ping(ctx context.Context) error
}
