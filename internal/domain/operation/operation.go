// Package operation defines queued write intents and the conflicts
// they escalate into when the remote store keeps rejecting them.
package operation

import (
	"encoding/json"
	"time"
)

// Kind classifies the intent behind a queued operation.
type Kind string

const (
	KindCreate Kind = "create" // New record added locally
	KindUpdate Kind = "update" // Existing record changed locally
	KindDelete Kind = "delete" // Record removed locally
	KindReset  Kind = "reset"  // Whole collection cleared
)

// RecordKind identifies which collection an operation targets.
type RecordKind string

const (
	RecordTruck    RecordKind = "truck"
	RecordLoading  RecordKind = "loading"
	RecordDocument RecordKind = "document" // Whole-document intents (reset, retention purge)
)

// Status tracks an operation through the queue.
type Status string

const (
	StatusPending   Status = "pending"   // Waiting for the next drain
	StatusInFlight  Status = "in_flight" // Currently being pushed
	StatusCompleted Status = "completed" // Acknowledged by the remote store
	StatusFailed    Status = "failed"    // Retries exhausted, awaiting resolution
)

// Operation is a durable write intent. Once enqueued it is immutable;
// coalescing replaces the whole pending intent with a newer one.
type Operation struct {
	ID         string          // Unique operation identifier
	Kind       Kind            // What the client intended
	RecordKind RecordKind      // Which collection the intent targets
	EntityID   string          // Target record ID (empty for document-level intents)
	Payload    json.RawMessage // Snapshot of the record at enqueue time
	Status     Status          // Queue lifecycle state
	RetryCount int             // Failed push attempts so far
	LastError  string          // Message from the most recent failure
	EnqueuedAt time.Time       // When the intent entered the queue
	UpdatedAt  time.Time       // Last queue state change
}

// IsTerminal reports whether the operation has left the active queue.
func (o *Operation) IsTerminal() bool {
	return o.Status == StatusCompleted || o.Status == StatusFailed
}

// Conflict records an operation whose pushes kept colliding with
// concurrent remote writes. It stays until a human picks a side.
type Conflict struct {
	ID          string    // Unique conflict identifier
	OperationID string    // The failed operation
	EntityID    string    // Record the operation targeted
	Message     string    // Last error from the remote store
	CreatedAt   time.Time // When the conflict was raised
}

// Resolution is a human decision on a conflict.
type Resolution string

const (
	ResolutionKeepLocal Resolution = "keep_local" // Requeue the local intent
	ResolutionUseRemote Resolution = "use_remote" // Drop the intent, adopt remote state
)

// ValidResolution reports whether r is a known resolution value.
func ValidResolution(r Resolution) bool {
	return r == ResolutionKeepLocal || r == ResolutionUseRemote
}
