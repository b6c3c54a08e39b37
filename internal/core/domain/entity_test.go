package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestRegisteredCollections(t *testing.T) {
	collections := RegisteredCollections()
	if len(collections) == 0 {
		t.Fatal("expected at least one registered collection")
	}
	for _, c := range collections {
		if !c.Valid() {
			t.Errorf("registered collection %q should be valid", c)
		}
	}
}

func TestCollectionValid(t *testing.T) {
	tests := []struct {
		collection Collection
		want       bool
	}{
		{CollectionProviders, true},
		{CollectionClients, true},
		{CollectionProducts, true},
		{CollectionWarehouses, true},
		{Collection("invoices"), false},
		{Collection(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.collection), func(t *testing.T) {
			if got := tt.collection.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.collection, got, tt.want)
			}
		})
	}
}

func TestCollectionPreloadKey(t *testing.T) {
	if got := CollectionProviders.PreloadKey(); got != "providers_preload" {
		t.Errorf("expected providers_preload, got %q", got)
	}
}

func TestNewTempID(t *testing.T) {
	id := NewTempID()
	if !strings.HasPrefix(id, TempIDPrefix) {
		t.Errorf("temp id %q should carry prefix %q", id, TempIDPrefix)
	}
	if !IsTempID(id) {
		t.Errorf("IsTempID(%q) should be true", id)
	}
	if id == NewTempID() {
		t.Error("temp ids should be unique")
	}
}

func TestIsTempID(t *testing.T) {
	if IsTempID("prov-123") {
		t.Error("server id should not be a temp id")
	}
	if !IsTempID("temp_abc") {
		t.Error("temp_abc should be a temp id")
	}
}

func TestCachedEntityTombstone(t *testing.T) {
	entity := NewCachedEntity(CollectionClients, "client-1", json.RawMessage(`{"name":"ACME"}`))
	if entity.Tombstoned() {
		t.Error("new entity should not be tombstoned")
	}

	entity.MarkDeleted()
	if !entity.Tombstoned() {
		t.Error("expected tombstone after MarkDeleted")
	}
	if entity.DeletedAt == nil || time.Since(*entity.DeletedAt) > time.Minute {
		t.Error("DeletedAt should be set to roughly now")
	}
}

func TestCachedEntityStaleTempID(t *testing.T) {
	cutoff := time.Now().Add(-7 * 24 * time.Hour)

	fresh := NewCachedEntity(CollectionProviders, NewTempID(), nil)
	if fresh.StaleTempID(cutoff) {
		t.Error("fresh temp entity should not be stale")
	}

	old := NewCachedEntity(CollectionProviders, NewTempID(), nil)
	old.CreatedAt = time.Now().Add(-8 * 24 * time.Hour)
	if !old.StaleTempID(cutoff) {
		t.Error("8-day-old temp entity should be stale")
	}

	reconciled := NewCachedEntity(CollectionProviders, "prov-9", nil)
	reconciled.CreatedAt = time.Now().Add(-30 * 24 * time.Hour)
	if reconciled.StaleTempID(cutoff) {
		t.Error("entity with a server id is never a stale temp entity")
	}
}
