package ports

import (
	"context"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
)

// PendingChange marks a record with local modifications that have not
// been confirmed by the remote store yet.
type PendingChange struct {
	EntityID   string
	RecordKind string
	MarkedAt   time.Time
}

// LocalCachePort defines the durable local mirror of the shared
// document plus the pending markers that shield in-flight local edits
// from being overwritten by remote merges.
type LocalCachePort interface {
	// Load returns the cached document. It never fails: a missing or
	// unreadable cache yields an empty document.
	Load(ctx context.Context) *yard.Document

	// Save persists the document. Callers save before any remote write.
	Save(ctx context.Context, doc *yard.Document) error

	// MarkPendingChange records that a local edit to the entity is
	// awaiting remote confirmation.
	MarkPendingChange(ctx context.Context, entityID, recordKind string) error

	// ClearPendingChange removes the pending-change marker.
	ClearPendingChange(ctx context.Context, entityID string) error

	// IsPendingChange reports whether the entity has an unconfirmed
	// local edit.
	IsPendingChange(ctx context.Context, entityID string) (bool, error)

	// ListPendingChanges returns every pending-change marker, oldest
	// first.
	ListPendingChanges(ctx context.Context) ([]PendingChange, error)

	// MarkPendingDeletion records that the entity was deleted locally
	// and must not be resurrected by a remote merge.
	MarkPendingDeletion(ctx context.Context, entityID string) error

	// ClearPendingDeletion removes the pending-deletion marker.
	ClearPendingDeletion(ctx context.Context, entityID string) error

	// IsPendingDeletion reports whether the entity is shielded from
	// remote resurrection.
	IsPendingDeletion(ctx context.Context, entityID string) (bool, error)

	// ClearAllPending drops every pending marker. Used by reset.
	ClearAllPending(ctx context.Context) error

	// SweepStale removes pending-change markers older than the window
	// and returns how many were dropped.
	SweepStale(ctx context.Context, window time.Duration) (int, error)
}
