// Package queue implements the durable operation queue between local
// mutations and the remote store. Operations coalesce at enqueue, drain
// strictly one at a time, retry with exponential backoff, and escalate
// to conflicts when the remote keeps rejecting them.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/tracing"
)

// Config holds queue tuning parameters.
type Config struct {
	MaxRetries    int           // Failed pushes before an operation is abandoned
	BackoffBase   time.Duration // Base for the 2^retries backoff between attempts
	DrainInterval time.Duration // How often the background drain wakes up
}

// DefaultConfig returns the standard queue parameters.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		BackoffBase:   time.Second,
		DrainInterval: 10 * time.Second,
	}
}

// Queue coordinates queued write intents. All methods are safe for
// concurrent use.
type Queue struct {
	store  ports.QueueStorePort
	cache  ports.LocalCachePort
	remote ports.RemoteStorePort
	logger *logging.Logger
	tracer *tracing.Tracer
	config Config

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	draining bool
	lastHash string // Content hash from the last confirmed remote state
}

// New creates a queue over durable storage.
func New(store ports.QueueStorePort, cache ports.LocalCachePort, remote ports.RemoteStorePort, logger *logging.Logger, cfg Config) *Queue {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 10 * time.Second
	}
	return &Queue{
		store:  store,
		cache:  cache,
		remote: remote,
		logger: logger,
		tracer: tracing.Default(),
		config: cfg,
		sleep:  sleepContext,
	}
}

// SetRemoteHash records the content hash of the last remote state this
// client observed. The sync layer calls it after every fetch so queued
// writes build on fresh state.
func (q *Queue) SetRemoteHash(hash string) {
	q.mu.Lock()
	q.lastHash = hash
	q.mu.Unlock()
}

// Enqueue records a write intent. A pending operation for the same
// entity is coalesced: the newer intent replaces it in place, keeping
// the original queue position. A reset supersedes everything pending.
func (q *Queue) Enqueue(ctx context.Context, kind operation.Kind, recordKind operation.RecordKind, entityID string, payload json.RawMessage) (*operation.Operation, error) {
	now := time.Now().UTC()

	if kind == operation.KindReset {
		if _, err := q.store.DeleteAllPending(ctx); err != nil {
			return nil, err
		}
		if err := q.cache.ClearAllPending(ctx); err != nil {
			return nil, err
		}
		op := &operation.Operation{
			ID:         uuid.New().String(),
			Kind:       kind,
			RecordKind: recordKind,
			Status:     operation.StatusPending,
			EnqueuedAt: now,
			UpdatedAt:  now,
		}
		if err := q.store.Insert(ctx, op); err != nil {
			return nil, err
		}
		logging.LogOperationEnqueued(ctx, q.logger, op.ID, string(kind), "", false)
		return op, nil
	}

	if entityID != "" {
		existing, err := q.store.PendingForEntity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			coalesced := coalesce(existing, kind, payload, now)
			if err := q.store.Update(ctx, coalesced); err != nil {
				return nil, err
			}
			logging.LogOperationEnqueued(ctx, q.logger, coalesced.ID, string(coalesced.Kind), entityID, true)
			return coalesced, nil
		}
	}

	op := &operation.Operation{
		ID:         uuid.New().String(),
		Kind:       kind,
		RecordKind: recordKind,
		EntityID:   entityID,
		Payload:    payload,
		Status:     operation.StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
	if err := q.store.Insert(ctx, op); err != nil {
		return nil, err
	}
	logging.LogOperationEnqueued(ctx, q.logger, op.ID, string(kind), entityID, false)
	return op, nil
}

// coalesce folds a newer intent into an existing pending operation.
// The newest payload always wins. A create absorbing an update stays a
// create (the record never reached the remote); anything absorbing a
// delete becomes a delete.
func coalesce(existing *operation.Operation, kind operation.Kind, payload json.RawMessage, now time.Time) *operation.Operation {
	switch {
	case kind == operation.KindDelete:
		existing.Kind = operation.KindDelete
	case existing.Kind == operation.KindCreate:
		// keep create
	default:
		existing.Kind = kind
	}
	existing.Payload = payload
	existing.UpdatedAt = now
	return existing
}

// Drain pushes pending operations to the remote store, strictly one at
// a time in enqueue order. A drain already in progress is not
// re-entered; the second caller returns immediately.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return nil
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	pending, _ := q.store.CountActive(ctx)
	ctx, span := q.tracer.StartDrainSpan(ctx, pending)

	pushed, failed := 0, 0
	for {
		select {
		case <-ctx.Done():
			span.EndWithError(ctx.Err())
			return ctx.Err()
		default:
		}

		op, err := q.store.NextPending(ctx)
		if err != nil {
			span.EndWithError(err)
			return err
		}
		if op == nil {
			span.SetOutcome(pushed, failed)
			span.End()
			return nil
		}

		ok, err := q.push(ctx, op)
		if err != nil {
			span.EndWithError(err)
			return err
		}
		if ok {
			pushed++
		} else {
			failed++
		}
	}
}

// push attempts one operation and settles its queue state. The bool
// reports whether the remote confirmed the operation.
func (q *Queue) push(ctx context.Context, op *operation.Operation) (bool, error) {
	started := time.Now()
	opCtx := logging.WithOperationID(ctx, op.ID)

	op.Status = operation.StatusInFlight
	op.UpdatedAt = time.Now().UTC()
	if err := q.store.Update(ctx, op); err != nil {
		return false, err
	}

	// The intent is already applied to the cached document; pushing
	// means writing the whole current document on top of the last
	// remote state we saw.
	doc := q.cache.Load(ctx)

	q.mu.Lock()
	hash := q.lastHash
	q.mu.Unlock()

	newHash, err := q.remote.Write(ctx, doc, hash)
	if err == nil {
		q.mu.Lock()
		q.lastHash = newHash
		q.mu.Unlock()

		if err := q.store.Delete(ctx, op.ID); err != nil {
			return false, err
		}
		q.clearMarkers(ctx, op)
		logging.LogOperationCompleted(opCtx, q.logger, op.ID, op.RetryCount, time.Since(started))
		return true, nil
	}

	op.RetryCount++
	op.LastError = err.Error()
	op.UpdatedAt = time.Now().UTC()

	if op.RetryCount < q.config.MaxRetries {
		op.Status = operation.StatusPending
		if uerr := q.store.Update(ctx, op); uerr != nil {
			return false, uerr
		}
		backoff := q.config.BackoffBase * (1 << op.RetryCount)
		logging.LogOperationRetry(opCtx, q.logger, op.ID, op.RetryCount, backoff, err)
		return false, q.sleep(ctx, backoff)
	}

	op.Status = operation.StatusFailed
	if uerr := q.store.Update(ctx, op); uerr != nil {
		return false, uerr
	}
	logging.LogOperationFailed(opCtx, q.logger, op.ID, err)

	if errors.IsConflict(err) {
		c := &operation.Conflict{
			ID:          uuid.New().String(),
			OperationID: op.ID,
			EntityID:    op.EntityID,
			Message:     err.Error(),
			CreatedAt:   time.Now().UTC(),
		}
		if cerr := q.store.InsertConflict(ctx, c); cerr != nil {
			return false, cerr
		}
		logging.LogConflictRaised(opCtx, q.logger, c.ID, op.ID, op.EntityID)
	}
	return false, nil
}

// clearMarkers removes the pending shields once the remote confirmed
// the operation.
func (q *Queue) clearMarkers(ctx context.Context, op *operation.Operation) {
	if op.EntityID != "" {
		q.cache.ClearPendingChange(ctx, op.EntityID)
		if op.Kind == operation.KindDelete {
			q.cache.ClearPendingDeletion(ctx, op.EntityID)
		}
	}
	if op.Kind == operation.KindReset {
		q.cache.ClearAllPending(ctx)
	}
}

// ResolveConflict settles a failed operation by human decision.
// keep_local requeues the intent with a fresh retry budget; use_remote
// drops it so the next poll adopts the remote state.
func (q *Queue) ResolveConflict(ctx context.Context, operationID string, resolution operation.Resolution) error {
	if !operation.ValidResolution(resolution) {
		return errors.NewError(errors.CodeValidation, "unknown resolution "+string(resolution), nil)
	}

	op, err := q.store.Get(ctx, operationID)
	if err != nil {
		return err
	}
	if op.Status != operation.StatusFailed {
		return errors.NewError(errors.CodeValidation, "operation "+operationID+" is not awaiting resolution", nil)
	}

	switch resolution {
	case operation.ResolutionKeepLocal:
		op.Status = operation.StatusPending
		op.RetryCount = 0
		op.LastError = ""
		op.UpdatedAt = time.Now().UTC()
		if err := q.store.Update(ctx, op); err != nil {
			return err
		}
		if err := q.store.DeleteConflict(ctx, operationID); err != nil {
			return err
		}

	case operation.ResolutionUseRemote:
		if err := q.store.DeleteConflict(ctx, operationID); err != nil {
			return err
		}
		if err := q.store.Delete(ctx, operationID); err != nil {
			return err
		}
		if op.EntityID != "" {
			q.cache.ClearPendingChange(ctx, op.EntityID)
			q.cache.ClearPendingDeletion(ctx, op.EntityID)
		}
	}

	logging.LogConflictResolved(ctx, q.logger, operationID, string(resolution))
	return nil
}

// PendingCount returns how many operations are pending or in flight.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.store.CountActive(ctx)
}

// Conflicts returns unresolved conflicts, oldest first.
func (q *Queue) Conflicts(ctx context.Context) ([]*operation.Conflict, error) {
	return q.store.ListConflicts(ctx)
}

// Run drains the queue on an interval until the context ends. Used as
// the background safety net; enqueue and connectivity changes trigger
// drains directly.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.config.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := q.store.CountActive(ctx)
			if err != nil || count == 0 {
				continue
			}
			if err := q.Drain(ctx); err != nil && ctx.Err() == nil {
				q.logger.WarnContext(ctx, "background drain failed", "error", err.Error())
			}
		}
	}
}

// sleepContext waits for the duration or the context, whichever ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
