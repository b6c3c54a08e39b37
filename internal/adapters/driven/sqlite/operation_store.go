package sqlite

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

// OperationStore persists the pending-operation queue in SQLite. When an
// encryptor is provided, payloads are encrypted at rest.
type OperationStore struct {
	db  *DB
	enc *secrets.Encryptor
}

// NewOperationStore creates an operation store. enc may be nil for
// plaintext storage.
func NewOperationStore(db *DB, enc *secrets.Encryptor) *OperationStore {
	return &OperationStore{db: db, enc: enc}
}

// Verify interface compliance
var _ driven.OperationStore = (*OperationStore)(nil)

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

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_operations (op_type, collection, entity_id, payload, queued_at, retries, last_error)
		VALUES (?, ?, ?, ?, ?, 0, '')
	`, stored.Type, stored.Collection, stored.EntityID, payload, ns(stored.Timestamp))
	if err != nil {
		return nil, fmt.Errorf("enqueue operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("enqueue operation: %w", err)
	}
	stored.ID = id
	return &stored, nil
}

func (s *OperationStore) Get(ctx context.Context, id int64) (*domain.PendingOperation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, op_type, collection, entity_id, payload, queued_at, retries, last_error
		FROM pending_operations
		WHERE id = ?
	`, id)

	op, err := s.scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get operation: %w", err)
	}
	return op, nil
}

func (s *OperationStore) Update(ctx context.Context, id int64, patch domain.OperationPatch) error {
	sets := []string{}
	args := []any{}
	if patch.Retries != nil {
		sets = append(sets, "retries = ?")
		args = append(args, *patch.Retries)
	}
	if patch.Error != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, *patch.Error)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := "UPDATE pending_operations SET " + sets[0]
	for _, set := range sets[1:] {
		query += ", " + set
	}
	query += " WHERE id = ?"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *OperationStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_operations WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	return nil
}

func (s *OperationStore) List(ctx context.Context, filter driven.OperationFilter) ([]*domain.PendingOperation, error) {
	query := `
		SELECT id, op_type, collection, entity_id, payload, queued_at, retries, last_error
		FROM pending_operations
		WHERE 1 = 1`
	args := []any{}

	if filter.MaxRetries != nil {
		query += " AND retries < ?"
		args = append(args, *filter.MaxRetries)
	}
	if filter.MinRetries != nil {
		query += " AND retries >= ?"
		args = append(args, *filter.MinRetries)
	}
	if filter.Before != nil {
		query += " AND queued_at < ?"
		args = append(args, ns(*filter.Before))
	}
	if filter.Collection != "" {
		query += " AND collection = ?"
		args = append(args, filter.Collection)
	}
	if filter.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filter.EntityID)
	}
	query += " ORDER BY queued_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []*domain.PendingOperation
	for rows.Next() {
		op, err := s.scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (s *OperationStore) RemapEntityID(ctx context.Context, collection domain.Collection, oldID, newID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_operations SET entity_id = ?
		WHERE collection = ? AND entity_id = ?
	`, newID, collection, oldID)
	if err != nil {
		return 0, fmt.Errorf("remap operations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remap operations: %w", err)
	}
	return int(n), nil
}

func (s *OperationStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_operations").Scan(&n); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

func (s *OperationStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_operations"); err != nil {
		return fmt.Errorf("clear operations: %w", err)
	}
	return nil
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
		op       domain.PendingOperation
		payload  []byte
		queuedAt int64
	)
	if err := row.Scan(&op.ID, &op.Type, &op.Collection, &op.EntityID, &payload, &queuedAt, &op.Retries, &op.Error); err != nil {
		return nil, err
	}

	opened, err := s.open(payload)
	if err != nil {
		return nil, err
	}
	op.Payload = opened
	op.Timestamp = fromNs(queuedAt)
	return &op, nil
}
