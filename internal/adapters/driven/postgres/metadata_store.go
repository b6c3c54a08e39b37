package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore implements driven.MetadataStore using PostgreSQL
type MetadataStore struct {
	db *DB
}

// NewMetadataStore creates a new MetadataStore
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Get retrieves metadata for a stream, defaulting to idle for unknown keys.
func (s *MetadataStore) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	query := `
		SELECT key, last_sync, status, error, updated_at
		FROM sync_metadata
		WHERE key = $1
	`

	meta, err := scanMetadata(s.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		// Return default state for a stream that has never synced
		return domain.NewSyncMetadata(key), nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Save creates or updates a metadata record.
func (s *MetadataStore) Save(ctx context.Context, meta *domain.SyncMetadata) error {
	query := `
		INSERT INTO sync_metadata (key, last_sync, status, error, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			last_sync = EXCLUDED.last_sync,
			status = EXCLUDED.status,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		meta.Key, NullTime(meta.LastSync), meta.Status, meta.Error, meta.UpdatedAt)
	return err
}

// List retrieves every stored metadata record.
func (s *MetadataStore) List(ctx context.Context) ([]*domain.SyncMetadata, error) {
	query := `
		SELECT key, last_sync, status, error, updated_at
		FROM sync_metadata
		ORDER BY key
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SyncMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

// Clear removes every metadata record.
func (s *MetadataStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_metadata")
	return err
}

func scanMetadata(row rowScanner) (*domain.SyncMetadata, error) {
	var (
		meta     domain.SyncMetadata
		lastSync sql.NullTime
	)
	if err := row.Scan(&meta.Key, &lastSync, &meta.Status, &meta.Error, &meta.UpdatedAt); err != nil {
		return nil, err
	}
	meta.LastSync = TimePtr(lastSync)
	return &meta, nil
}
