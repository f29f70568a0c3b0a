package ports

import (
	"context"

	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
)

// QueueStorePort defines durable storage for queued operations and the
// conflicts they escalate into. Operations survive restarts; the queue
// drains them in enqueue order.
type QueueStorePort interface {
	// Insert stores a new operation.
	Insert(ctx context.Context, op *operation.Operation) error

	// Update persists queue state changes (status, retries, last error).
	Update(ctx context.Context, op *operation.Operation) error

	// Delete removes an operation.
	Delete(ctx context.Context, id string) error

	// Get returns the operation with the given ID.
	Get(ctx context.Context, id string) (*operation.Operation, error)

	// PendingForEntity returns the pending operation targeting the
	// entity, or nil when none exists. In-flight operations are not
	// returned; they can no longer be coalesced.
	PendingForEntity(ctx context.Context, entityID string) (*operation.Operation, error)

	// NextPending returns the oldest pending operation, or nil when the
	// queue is drained.
	NextPending(ctx context.Context) (*operation.Operation, error)

	// ListActive returns pending and in-flight operations in enqueue order.
	ListActive(ctx context.Context) ([]*operation.Operation, error)

	// DeleteAllPending removes every pending operation. Used when a
	// reset supersedes queued intents.
	DeleteAllPending(ctx context.Context) (int, error)

	// CountActive returns how many operations are pending or in flight.
	CountActive(ctx context.Context) (int, error)

	// InsertConflict stores an escalated conflict.
	InsertConflict(ctx context.Context, c *operation.Conflict) error

	// DeleteConflict removes the conflict attached to an operation.
	DeleteConflict(ctx context.Context, operationID string) error

	// ListConflicts returns unresolved conflicts, oldest first.
	ListConflicts(ctx context.Context) ([]*operation.Conflict, error)
}
