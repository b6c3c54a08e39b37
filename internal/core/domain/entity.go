package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection identifies a class of remote reference data cached locally.
type Collection string

const (
	CollectionProviders  Collection = "providers"
	CollectionClients    Collection = "clients"
	CollectionProducts   Collection = "products"
	CollectionWarehouses Collection = "warehouses"
)

// RegisteredCollections returns every collection the cache tracks.
func RegisteredCollections() []Collection {
	return []Collection{
		CollectionProviders,
		CollectionClients,
		CollectionProducts,
		CollectionWarehouses,
	}
}

// Valid reports whether c is a registered collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionProviders, CollectionClients, CollectionProducts, CollectionWarehouses:
		return true
	}
	return false
}

// PreloadKey is the sync metadata key for this collection's preload stream.
func (c Collection) PreloadKey() string {
	return string(c) + "_preload"
}

// TempIDPrefix marks client-generated placeholder ids that have not been
// confirmed by the server yet.
const TempIDPrefix = "temp_"

// NewTempID creates a placeholder id for an entity created while offline.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a client-generated placeholder.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// CachedEntity is a locally stored copy of a remote domain record.
// Data holds the record's domain fields; the cache core never interprets
// them beyond serialization.
type CachedEntity struct {
	ID         string          `json:"id"`
	Collection Collection      `json:"collection"`
	Data       json.RawMessage `json:"data"`
	CreatedAt  time.Time       `json:"created_at"`

	// DeletedAt marks a soft-delete tombstone awaiting remote confirmation
	// and eventual purge.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// NewCachedEntity creates a cache row for a record fetched or created now.
func NewCachedEntity(collection Collection, id string, data json.RawMessage) *CachedEntity {
	return &CachedEntity{
		ID:         id,
		Collection: collection,
		Data:       data,
		CreatedAt:  time.Now(),
	}
}

// Tombstoned reports whether the entity is soft-deleted.
func (e *CachedEntity) Tombstoned() bool {
	return e.DeletedAt != nil
}

// MarkDeleted sets the soft-delete tombstone.
func (e *CachedEntity) MarkDeleted() {
	now := time.Now()
	e.DeletedAt = &now
}

// StaleTempID reports whether the entity still carries a temp id older
// than the given cutoff, signalling a create that was never reconciled.
func (e *CachedEntity) StaleTempID(cutoff time.Time) bool {
	return IsTempID(e.ID) && e.CreatedAt.Before(cutoff)
}
