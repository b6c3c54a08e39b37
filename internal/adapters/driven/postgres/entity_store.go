package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ledgerline/offline-core/internal/adapters/driven/secrets"
	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EntityStore = (*EntityStore)(nil)

// EntityStore implements driven.EntityStore using PostgreSQL. When an
// encryptor is provided, entity data is encrypted at rest.
type EntityStore struct {
	db  *DB
	enc *secrets.Encryptor
}

// NewEntityStore creates a new EntityStore. enc may be nil for plaintext
// storage.
func NewEntityStore(db *DB, enc *secrets.Encryptor) *EntityStore {
	return &EntityStore{db: db, enc: enc}
}

// PutEntities upserts cached rows, last write wins.
func (s *EntityStore) PutEntities(ctx context.Context, collection domain.Collection, entities []*domain.CachedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO cached_entities (collection, id, data, created_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (collection, id) DO UPDATE SET
				data = EXCLUDED.data,
				created_at = EXCLUDED.created_at,
				deleted_at = EXCLUDED.deleted_at
		`
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entities {
			data, err := s.seal(e.Data)
			if err != nil {
				return fmt.Errorf("seal entity %s: %w", e.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, collection, e.ID, data, e.CreatedAt, NullTime(e.DeletedAt)); err != nil {
				return fmt.Errorf("upsert entity %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// GetEntity retrieves one cached row by id.
func (s *EntityStore) GetEntity(ctx context.Context, collection domain.Collection, id string) (*domain.CachedEntity, error) {
	query := `
		SELECT collection, id, data, created_at, deleted_at
		FROM cached_entities
		WHERE collection = $1 AND id = $2
	`

	e, err := s.scanEntity(s.db.QueryRowContext(ctx, query, collection, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntities retrieves cached rows matching the filter.
func (s *EntityStore) ListEntities(ctx context.Context, collection domain.Collection, filter driven.EntityFilter) ([]*domain.CachedEntity, error) {
	query := `
		SELECT collection, id, data, created_at, deleted_at
		FROM cached_entities
		WHERE collection = $1`
	args := []any{collection}

	if filter.Tombstoned || filter.DeletedBefore != nil {
		query += " AND deleted_at IS NOT NULL"
	}
	if filter.DeletedBefore != nil {
		args = append(args, *filter.DeletedBefore)
		query += fmt.Sprintf(" AND deleted_at < $%d", len(args))
	}
	if filter.TempOnly {
		query += ` AND id LIKE 'temp\_%' ESCAPE '\'`
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.CachedEntity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntities bulk-deletes by id.
func (s *EntityStore) DeleteEntities(ctx context.Context, collection domain.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		DELETE FROM cached_entities
		WHERE collection = $1 AND id = ANY($2)
	`
	_, err := s.db.ExecContext(ctx, query, collection, pq.Array(ids))
	return err
}

// ReplaceID re-keys a cached row from oldID to newID.
func (s *EntityStore) ReplaceID(ctx context.Context, collection domain.Collection, oldID, newID string) error {
	query := `
		UPDATE cached_entities SET id = $1
		WHERE collection = $2 AND id = $3
	`
	res, err := s.db.ExecContext(ctx, query, newID, collection, oldID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the number of cached rows for a collection.
func (s *EntityStore) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cached_entities WHERE collection = $1", collection).Scan(&n)
	return n, err
}

// ApproxSizeBytes estimates the serialized size of a collection's rows.
func (s *EntityStore) ApproxSizeBytes(ctx context.Context, collection domain.Collection) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(OCTET_LENGTH(data) + OCTET_LENGTH(id)), 0)
		FROM cached_entities WHERE collection = $1
	`, collection).Scan(&size)
	return size, err
}

// Clear removes every cached row for a collection.
func (s *EntityStore) Clear(ctx context.Context, collection domain.Collection) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cached_entities WHERE collection = $1", collection)
	return err
}

func (s *EntityStore) seal(data []byte) ([]byte, error) {
	if s.enc == nil || data == nil {
		return data, nil
	}
	return s.enc.Encrypt(data)
}

func (s *EntityStore) open(data []byte) ([]byte, error) {
	if s.enc == nil || data == nil {
		return data, nil
	}
	return s.enc.Decrypt(data)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *EntityStore) scanEntity(row rowScanner) (*domain.CachedEntity, error) {
	var (
		e         domain.CachedEntity
		data      []byte
		deletedAt sql.NullTime
	)
	if err := row.Scan(&e.Collection, &e.ID, &data, &e.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}

	opened, err := s.open(data)
	if err != nil {
		return nil, err
	}
	e.Data = opened
	e.DeletedAt = TimePtr(deletedAt)
	return &e, nil
}
