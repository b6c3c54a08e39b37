package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/offline-core/internal/adapters/driven/secrets"
	"github.com/ledgerline/offline-core/internal/core/domain"
	"github.com/ledgerline/offline-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.OperationStore = (*OperationStore)(nil)

// OperationStore implements driven.OperationStore using PostgreSQL. When an
// encryptor is provided, payloads are encrypted at rest.
type OperationStore struct {
	db  *DB
	enc *secrets.Encryptor
}

// NewOperationStore creates a new OperationStore. enc may be nil for
// plaintext storage.
func NewOperationStore(db *DB, enc *secrets.Encryptor) *OperationStore {
	return &OperationStore{db: db, enc: enc}
}

// Enqueue inserts the operation and returns the stored record.
func (s *OperationStore) Enqueue(ctx context.Context, op *domain.PendingOperation) (*domain.PendingOperation, error) {
	stored := *op
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}
	stored.Retries = 0

	payload, err := s.seal(stored.Payload)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}

	query := `
		INSERT INTO pending_operations (op_type, collection, entity_id, payload, queued_at, retries, last_error)
		VALUES ($1, $2, $3, $4, $5, 0, '')
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		stored.Type, stored.Collection, stored.EntityID, payload, stored.Timestamp,
	).Scan(&stored.ID)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// Get retrieves one operation by id.
func (s *OperationStore) Get(ctx context.Context, id int64) (*domain.PendingOperation, error) {
	query := `
		SELECT id, op_type, collection, entity_id, payload, queued_at, retries, last_error
		FROM pending_operations
		WHERE id = $1
	`

	op, err := s.scanOperation(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Update applies a partial patch to a stored operation.
func (s *OperationStore) Update(ctx context.Context, id int64, patch domain.OperationPatch) error {
	sets := ""
	args := []any{}
	if patch.Retries != nil {
		args = append(args, *patch.Retries)
		sets = fmt.Sprintf("retries = $%d", len(args))
	}
	if patch.Error != nil {
		args = append(args, *patch.Error)
		if sets != "" {
			sets += ", "
		}
		sets += fmt.Sprintf("last_error = $%d", len(args))
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE pending_operations SET %s WHERE id = $%d", sets, len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
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

// Delete removes one operation.
func (s *OperationStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_operations WHERE id = $1", id)
	return err
}

// List retrieves operations matching the filter in FIFO order.
func (s *OperationStore) List(ctx context.Context, filter driven.OperationFilter) ([]*domain.PendingOperation, error) {
	query := `
		SELECT id, op_type, collection, entity_id, payload, queued_at, retries, last_error
		FROM pending_operations
		WHERE 1 = 1`
	args := []any{}

	if filter.MaxRetries != nil {
		args = append(args, *filter.MaxRetries)
		query += fmt.Sprintf(" AND retries < $%d", len(args))
	}
	if filter.MinRetries != nil {
		args = append(args, *filter.MinRetries)
		query += fmt.Sprintf(" AND retries >= $%d", len(args))
	}
	if filter.Before != nil {
		args = append(args, *filter.Before)
		query += fmt.Sprintf(" AND queued_at < $%d", len(args))
	}
	if filter.Collection != "" {
		args = append(args, filter.Collection)
		query += fmt.Sprintf(" AND collection = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	query += " ORDER BY queued_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PendingOperation
	for rows.Next() {
		op, err := s.scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// RemapEntityID rewrites the entity id on every operation referencing oldID.
func (s *OperationStore) RemapEntityID(ctx context.Context, collection domain.Collection, oldID, newID string) (int, error) {
	query := `
		UPDATE pending_operations SET entity_id = $1
		WHERE collection = $2 AND entity_id = $3
	`
	res, err := s.db.ExecContext(ctx, query, newID, collection, oldID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Count returns the number of queued operations.
func (s *OperationStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_operations").Scan(&n)
	return n, err
}

// Clear removes every queued operation.
func (s *OperationStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM pending_operations")
	return err
}

func (s *OperationStore) seal(payload []byte) ([]byte, error) {
	if s.enc == nil || payload == nil {
		return payload, nil
	}
	return s.enc.Encrypt(payload)
}

func (s *OperationStore) open(payload []byte) ([]byte, error) {
	if s.enc == nil || payload == nil {
		return payload, nil
	}
	return s.enc.Decrypt(payload)
}

func (s *OperationStore) scanOperation(row rowScanner) (*domain.PendingOperation, error) {
	var (
		op      domain.PendingOperation
		payload []byte
	)
	if err := row.Scan(&op.ID, &op.Type, &op.Collection, &op.EntityID, &payload, &op.Timestamp, &op.Retries, &op.Error); err != nil {
		return nil, err
	}

	opened, err := s.open(payload)
	if err != nil {
		return nil, err
	}
	op.Payload = opened
	return &op, nil
}
