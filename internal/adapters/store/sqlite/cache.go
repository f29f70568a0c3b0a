package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
)

// documentRowID is the fixed primary key of the single cached document row.
const documentRowID = 1

// CacheRepository persists the cached shared document and the pending
// markers that protect unconfirmed local edits. It implements
// ports.LocalCachePort.
type CacheRepository struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewCacheRepository creates a new cache repository.
func NewCacheRepository(db *sql.DB, logger *logging.Logger) *CacheRepository {
	if logger == nil {
		logger = logging.Default()
	}
	return &CacheRepository{db: db, logger: logger}
}

// Load returns the cached document. A missing row or an unreadable
// payload yields an empty document; the caller never sees an error.
func (r *CacheRepository) Load(ctx context.Context) *yard.Document {
	var payload string
	err := r.db.QueryRowContext(ctx,
		"SELECT payload FROM documents WHERE id = ?", documentRowID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return yard.EmptyDocument()
	}
	if err != nil {
		logging.LogCacheRecovered(ctx, r.logger, err)
		return yard.EmptyDocument()
	}

	var doc yard.Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		logging.LogCacheRecovered(ctx, r.logger, err)
		return yard.EmptyDocument()
	}
	if doc.Trucks == nil {
		doc.Trucks = []yard.Truck{}
	}
	if doc.Loadings == nil {
		doc.Loadings = []yard.Loading{}
	}
	return &doc
}

// Save persists the document, replacing the previous snapshot.
func (r *CacheRepository) Save(ctx context.Context, doc *yard.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not encode document", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (id, payload, last_modified, saved_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			last_modified = excluded.last_modified,
			saved_at = CURRENT_TIMESTAMP
	`, documentRowID, string(payload), doc.LastModified)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not save document", err)
	}
	return nil
}

// MarkPendingChange records an unconfirmed local edit.
func (r *CacheRepository) MarkPendingChange(ctx context.Context, entityID, recordKind string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_changes (entity_id, record_kind, marked_at)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			record_kind = excluded.record_kind,
			marked_at = excluded.marked_at
	`, entityID, recordKind, time.Now().UTC())
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not mark pending change", err)
	}
	return nil
}

// ClearPendingChange removes the pending-change marker.
func (r *CacheRepository) ClearPendingChange(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM pending_changes WHERE entity_id = ?", entityID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not clear pending change", err)
	}
	return nil
}

// ListPendingChanges returns all pending-change markers, oldest first.
func (r *CacheRepository) ListPendingChanges(ctx context.Context) ([]ports.PendingChange, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_id, record_kind, marked_at FROM pending_changes ORDER BY marked_at")
	if err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not list pending changes", err)
	}
	defer rows.Close()

	var changes []ports.PendingChange
	for rows.Next() {
		var pc ports.PendingChange
		if err := rows.Scan(&pc.EntityID, &pc.RecordKind, &pc.MarkedAt); err != nil {
			return nil, errors.NewError(errors.CodeStorage, "could not read pending change", err)
		}
		changes = append(changes, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStorage, "could not list pending changes", err)
	}
	return changes, nil
}

// IsPendingChange reports whether the entity has an unconfirmed local edit.
func (r *CacheRepository) IsPendingChange(ctx context.Context, entityID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_changes WHERE entity_id = ?", entityID,
	).Scan(&count)
	if err != nil {
		return false, errors.NewError(errors.CodeStorage, "could not check pending change", err)
	}
	return count > 0, nil
}

// MarkPendingDeletion shields a locally deleted entity from remote merges.
func (r *CacheRepository) MarkPendingDeletion(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pending_deletions (entity_id, marked_at)
		VALUES (?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET marked_at = excluded.marked_at
	`, entityID, time.Now().UTC())
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not mark pending deletion", err)
	}
	return nil
}

// ClearPendingDeletion removes the pending-deletion marker.
func (r *CacheRepository) ClearPendingDeletion(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM pending_deletions WHERE entity_id = ?", entityID)
	if err != nil {
		return errors.NewError(errors.CodeStorage, "could not clear pending deletion", err)
	}
	return nil
}

// IsPendingDeletion reports whether the entity was deleted locally.
func (r *CacheRepository) IsPendingDeletion(ctx context.Context, entityID string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pending_deletions WHERE entity_id = ?", entityID,
	).Scan(&count)
	if err != nil {
		return false, errors.NewError(errors.CodeStorage, "could not check pending deletion", err)
	}
	return count > 0, nil
}

// ClearAllPending drops every pending marker.
func (r *CacheRepository) ClearAllPending(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pending_changes"); err != nil {
		return errors.NewError(errors.CodeStorage, "could not clear pending changes", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM pending_deletions"); err != nil {
		return errors.NewError(errors.CodeStorage, "could not clear pending deletions", err)
	}
	return nil
}

// SweepStale removes pending-change markers older than the window.
func (r *CacheRepository) SweepStale(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM pending_changes WHERE marked_at < ?", cutoff)
	if err != nil {
		return 0, errors.NewError(errors.CodeStorage, "could not sweep stale pending changes", err)
	}
	swept, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(swept), nil
}
