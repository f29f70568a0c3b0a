package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
)

// QueueRepository persists queued operations and escalated conflicts.
// It implements ports.QueueStorePort.
type QueueRepository struct {
	db *sql.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Insert stores a new operation.
func (r *QueueRepository) Insert(ctx context.Context, op *operation.Operation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operations (id, kind, record_kind, entity_id, payload, status, retry_count, last_error, enqueued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Kind, op.RecordKind, op.EntityID, string(op.Payload),
		op.Status, op.RetryCount, op.LastError, op.EnqueuedAt, op.UpdatedAt)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not insert operation", err)
	}
	return nil
}

// Update persists queue state changes.
func (r *QueueRepository) Update(ctx context.Context, op *operation.Operation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE operations
		SET kind = ?, record_kind = ?, entity_id = ?, payload = ?, status = ?, retry_count = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, op.Kind, op.RecordKind, op.EntityID, string(op.Payload),
		op.Status, op.RetryCount, op.LastError, op.UpdatedAt, op.ID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not update operation", err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return errors.NewError(errors.CodeNotFound, "operation "+op.ID+" not found", errors.ErrOperationNotFound)
	}
	return nil
}

// Delete removes an operation.
func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM operations WHERE id = ?", id)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not delete operation", err)
	}
	return nil
}

// Get returns the operation with the given ID.
func (r *QueueRepository) Get(ctx context.Context, id string) (*operation.Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, record_kind, entity_id, payload, status, retry_count, last_error, enqueued_at, updated_at
		FROM operations WHERE id = ?
	`, id)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewError(errors.CodeNotFound, "operation "+id+" not found", errors.ErrOperationNotFound)
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not read operation", err)
	}
	return op, nil
}

// PendingForEntity returns the pending operation targeting the entity,
// or nil when none exists.
func (r *QueueRepository) PendingForEntity(ctx context.Context, entityID string) (*operation.Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, record_kind, entity_id, payload, status, retry_count, last_error, enqueued_at, updated_at
		FROM operations
		WHERE entity_id = ? AND status = ?
		ORDER BY enqueued_at LIMIT 1
	`, entityID, operation.StatusPending)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not read pending operation", err)
	}
	return op, nil
}

// NextPending returns the oldest pending operation, or nil when drained.
func (r *QueueRepository) NextPending(ctx context.Context) (*operation.Operation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, record_kind, entity_id, payload, status, retry_count, last_error, enqueued_at, updated_at
		FROM operations
		WHERE status = ?
		ORDER BY enqueued_at LIMIT 1
	`, operation.StatusPending)
	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not read next operation", err)
	}
	return op, nil
}

// ListActive returns pending and in-flight operations in enqueue order.
func (r *QueueRepository) ListActive(ctx context.Context) ([]*operation.Operation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, record_kind, entity_id, payload, status, retry_count, last_error, enqueued_at, updated_at
		FROM operations
		WHERE status IN (?, ?)
		ORDER BY enqueued_at
	`, operation.StatusPending, operation.StatusInFlight)
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not list operations", err)
	}
	defer rows.Close()

	var ops []*operation.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, errors.NewError(errors.CodeStorage, "could not scan operation", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not iterate operations", err)
	}
	return ops, nil
}

// DeleteAllPending removes every pending operation.
func (r *QueueRepository) DeleteAllPending(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM operations WHERE status = ?", operation.StatusPending)
	if err != nil {
		return 0, errors.NewError(errors.CodeStorage, "could not delete pending operations", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(deleted), nil
}

// CountActive returns how many operations are pending or in flight.
func (r *QueueRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM operations WHERE status IN (?, ?)",
		operation.StatusPending, operation.StatusInFlight,
	).Scan(&count)
	if err != nil {
		return 0, errors.NewError(errors.CodeStorage, "could not count operations", err)
	}
	return count, nil
}

// InsertConflict stores an escalated conflict.
func (r *QueueRepository) InsertConflict(ctx context.Context, c *operation.Conflict) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, operation_id, entity_id, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.ID, c.OperationID, c.EntityID, c.Message, c.CreatedAt)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not insert conflict", err)
	}
	return nil
}

// DeleteConflict removes the conflict attached to an operation.
func (r *QueueRepository) DeleteConflict(ctx context.Context, operationID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM conflicts WHERE operation_id = ?", operationID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not delete conflict", err)
	}
	return nil
}

// ListConflicts returns unresolved conflicts, oldest first.
func (r *QueueRepository) ListConflicts(ctx context.Context) ([]*operation.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, operation_id, entity_id, message, created_at
		FROM conflicts ORDER BY created_at
	`)
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not list conflicts", err)
	}
	defer rows.Close()

	var conflicts []*operation.Conflict
	for rows.Next() {
		c := &operation.Conflict{}
		if err := rows.Scan(&c.ID, &c.OperationID, &c.EntityID, &c.Message, &c.CreatedAt); err != nil {
			return nil, errors.NewError(errors.CodeStorage, "could not scan conflict", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not iterate conflicts", err)
	}
	return conflicts, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOperation maps a row to an operation.
func scanOperation(s scanner) (*operation.Operation, error) {
	op := &operation.Operation{}
	var entityID, payload, lastError sql.NullString
	err := s.Scan(&op.ID, &op.Kind, &op.RecordKind, &entityID, &payload,
		&op.Status, &op.RetryCount, &lastError, &op.EnqueuedAt, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	op.EntityID = entityID.String
	if payload.Valid && payload.String != "" {
		op.Payload = json.RawMessage(payload.String)
	}
	op.LastError = lastError.String
	return op, nil
}
