package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// MetadataStore persists per-stream sync bookkeeping in SQLite.
type MetadataStore struct {
	db *DB
}

// NewMetadataStore creates a metadata store.
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// Verify interface compliance
var _ driven.MetadataStore = (*MetadataStore)(nil)

func (s *MetadataStore) Get(ctx context.Context, key string) (*domain.SyncMetadata, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, last_sync, status, error, updated_at
		FROM sync_metadata
		WHERE key = ?
	`, key)

	meta, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		// A stream that has never synced reads as idle.
		return domain.NewSyncMetadata(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync metadata: %w", err)
	}
	return meta, nil
}

func (s *MetadataStore) Save(ctx context.Context, meta *domain.SyncMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_metadata (key, last_sync, status, error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			last_sync = excluded.last_sync,
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, meta.Key, nullNs(meta.LastSync), meta.Status, meta.Error, ns(meta.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save sync metadata: %w", err)
	}
	return nil
}

func (s *MetadataStore) List(ctx context.Context) ([]*domain.SyncMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, last_sync, status, error, updated_at
		FROM sync_metadata
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("list sync metadata: %w", err)
	}
	defer rows.Close()

	var out []*domain.SyncMetadata
	for rows.Next() {
		meta, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync metadata: %w", err)
		}
		out = append(out, meta)
	}
	return out, rows.Err()
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sync_metadata"); err != nil {
		return fmt.Errorf("clear sync metadata: %w", err)
	}
	return nil
}

func scanMetadata(row rowScanner) (*domain.SyncMetadata, error) {
	var (
		meta      domain.SyncMetadata
		lastSync  sql.NullInt64
		updatedAt int64
	)
	if err := row.Scan(&meta.Key, &lastSync, &meta.Status, &meta.Error, &updatedAt); err != nil {
		return nil, err
	}
	if lastSync.Valid {
		t := fromNs(lastSync.Int64)
		meta.LastSync = &t
	}
	meta.UpdatedAt = fromNs(updatedAt)
	return &meta, nil
}
