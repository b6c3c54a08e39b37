package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerline/offline-core/internal/adapters/driven/secrets"
	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// EntityStore persists cached entity snapshots in SQLite. When an encryptor
// is provided, entity data is encrypted at rest.
type EntityStore struct {
	db  *DB
	enc *secrets.Encryptor
}

// NewEntityStore creates an entity store. enc may be nil for plaintext
// storage.
func NewEntityStore(db *DB, enc *secrets.Encryptor) *EntityStore {
	return &EntityStore{db: db, enc: enc}
}

// Verify interface compliance
var _ driven.EntityStore = (*EntityStore)(nil)

func (s *EntityStore) PutEntities(ctx context.Context, collection domain.Collection, entities []*domain.CachedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cached_entities (collection, id, data, created_at, deleted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			data = excluded.data,
			created_at = excluded.created_at,
			deleted_at = excluded.deleted_at
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entities {
		data, err := s.seal(e.Data)
		if err != nil {
			return fmt.Errorf("seal entity %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, e.ID, data, ns(e.CreatedAt), nullNs(e.DeletedAt)); err != nil {
			return fmt.Errorf("upsert entity %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *EntityStore) GetEntity(ctx context.Context, collection domain.Collection, id string) (*domain.CachedEntity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT collection, id, data, created_at, deleted_at
		FROM cached_entities
		WHERE collection = ? AND id = ?
	`, collection, id)

	e, err := s.scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *EntityStore) ListEntities(ctx context.Context, collection domain.Collection, filter driven.EntityFilter) ([]*domain.CachedEntity, error) {
	query := `
		SELECT collection, id, data, created_at, deleted_at
		FROM cached_entities
		WHERE collection = ?`
	args := []any{collection}

	if filter.Tombstoned || filter.DeletedBefore != nil {
		query += " AND deleted_at IS NOT NULL"
	}
	if filter.DeletedBefore != nil {
		query += " AND deleted_at < ?"
		args = append(args, ns(*filter.DeletedBefore))
	}
	if filter.TempOnly {
		query += ` AND id LIKE 'temp\_%' ESCAPE '\'`
	}
	if filter.CreatedBefore != nil {
		query += " AND created_at < ?"
		args = append(args, ns(*filter.CreatedBefore))
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []*domain.CachedEntity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *EntityStore) DeleteEntities(ctx context.Context, collection domain.Collection, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cached_entities WHERE collection = ? AND id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("delete entities: %w", err)
	}
	return nil
}

func (s *EntityStore) ReplaceID(ctx context.Context, collection domain.Collection, oldID, newID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cached_entities SET id = ?
		WHERE collection = ? AND id = ?
	`, newID, collection, oldID)
	if err != nil {
		return fmt.Errorf("replace entity id: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("replace entity id: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *EntityStore) Count(ctx context.Context, collection domain.Collection) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cached_entities WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	return n, nil
}

func (s *EntityStore) ApproxSizeBytes(ctx context.Context, collection domain.Collection) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(LENGTH(data) + LENGTH(id)), 0)
		FROM cached_entities WHERE collection = ?
	`, collection).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("approximate entity size: %w", err)
	}
	return size, nil
}

func (s *EntityStore) Clear(ctx context.Context, collection domain.Collection) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM cached_entities WHERE collection = ?", collection); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}
	return nil
}

// seal encrypts entity data when at-rest encryption is configured.
func (s *EntityStore) seal(data []byte) ([]byte, error) {
	if s.enc == nil || data == nil {
		return data, nil
	}
	return s.enc.Encrypt(data)
}

// open reverses seal.
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
		createdAt int64
		deletedAt sql.NullInt64
	)
	if err := row.Scan(&e.Collection, &e.ID, &data, &createdAt, &deletedAt); err != nil {
		return nil, err
	}

	opened, err := s.open(data)
	if err != nil {
		return nil, err
	}
	e.Data = opened
	e.CreatedAt = fromNs(createdAt)
	if deletedAt.Valid {
		t := fromNs(deletedAt.Int64)
		e.DeletedAt = &t
	}
	return &e, nil
}
