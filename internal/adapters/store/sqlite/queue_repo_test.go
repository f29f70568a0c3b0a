package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
)

func newTestQueue(t *testing.T) *QueueRepository {
	t.Helper()
	conn := openTestDB(t)
	db, err := conn.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	return NewQueueRepository(db)
}

func makeOp(id, entityID string, kind operation.Kind, enqueued time.Time) *operation.Operation {
	return &operation.Operation{
		ID:         id,
		Kind:       kind,
		RecordKind: operation.RecordTruck,
		EntityID:   entityID,
		Payload:    json.RawMessage(`{"id":"` + entityID + `"}`),
		Status:     operation.StatusPending,
		EnqueuedAt: enqueued,
		UpdatedAt:  enqueued,
	}
}

func TestQueueRepository_InsertGet(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	op := makeOp("op-1", "t-1", operation.KindCreate, now)
	if err := repo.Insert(ctx, op); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.Get(ctx, "op-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Kind != operation.KindCreate || got.EntityID != "t-1" {
		t.Errorf("unexpected operation: %+v", got)
	}
	if string(got.Payload) != `{"id":"t-1"}` {
		t.Errorf("payload = %s", got.Payload)
	}

	_, err = repo.Get(ctx, "missing")
	if !errors.Is(err, errors.ErrOperationNotFound) {
		t.Errorf("Get(missing) = %v, want ErrOperationNotFound", err)
	}
}

func TestQueueRepository_Update(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	now := time.Now().UTC()

	op := makeOp("op-1", "t-1", operation.KindUpdate, now)
	if err := repo.Insert(ctx, op); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	op.Status = operation.StatusFailed
	op.RetryCount = 3
	op.LastError = "content hash mismatch"
	op.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, op); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, _ := repo.Get(ctx, "op-1")
	if got.Status != operation.StatusFailed || got.RetryCount != 3 {
		t.Errorf("update not persisted: %+v", got)
	}
	if got.LastError != "content hash mismatch" {
		t.Errorf("LastError = %q", got.LastError)
	}

	ghost := makeOp("ghost", "t-9", operation.KindUpdate, now)
	if err := repo.Update(ctx, ghost); !errors.Is(err, errors.ErrOperationNotFound) {
		t.Errorf("Update(missing) = %v, want ErrOperationNotFound", err)
	}
}

func TestQueueRepository_PendingForEntity(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Insert(ctx, makeOp("op-1", "t-1", operation.KindUpdate, now)); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := repo.PendingForEntity(ctx, "t-1")
	if err != nil {
		t.Fatalf("PendingForEntity() error = %v", err)
	}
	if got == nil || got.ID != "op-1" {
		t.Fatalf("PendingForEntity() = %+v, want op-1", got)
	}

	// In-flight operations are no longer coalescable.
	got.Status = operation.StatusInFlight
	got.UpdatedAt = now.Add(time.Second)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err = repo.PendingForEntity(ctx, "t-1")
	if err != nil {
		t.Fatalf("PendingForEntity() error = %v", err)
	}
	if got != nil {
		t.Errorf("in-flight operation returned for coalescing: %+v", got)
	}

	got, err = repo.PendingForEntity(ctx, "unknown")
	if err != nil || got != nil {
		t.Errorf("PendingForEntity(unknown) = %+v, %v, want nil, nil", got, err)
	}
}

func TestQueueRepository_NextPendingOrder(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	repo.Insert(ctx, makeOp("op-2", "t-2", operation.KindUpdate, base.Add(time.Second)))
	repo.Insert(ctx, makeOp("op-1", "t-1", operation.KindCreate, base))

	next, err := repo.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if next == nil || next.ID != "op-1" {
		t.Errorf("NextPending() = %+v, want oldest op-1", next)
	}

	if err := repo.Delete(ctx, "op-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	next, _ = repo.NextPending(ctx)
	if next == nil || next.ID != "op-2" {
		t.Errorf("NextPending() after delete = %+v, want op-2", next)
	}

	repo.Delete(ctx, "op-2")
	next, err = repo.NextPending(ctx)
	if err != nil || next != nil {
		t.Errorf("NextPending() on empty queue = %+v, %v, want nil, nil", next, err)
	}
}

func TestQueueRepository_CountAndListActive(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().UTC()

	repo.Insert(ctx, makeOp("op-1", "t-1", operation.KindCreate, base))
	inFlight := makeOp("op-2", "t-2", operation.KindUpdate, base.Add(time.Second))
	repo.Insert(ctx, inFlight)
	inFlight.Status = operation.StatusInFlight
	repo.Update(ctx, inFlight)

	done := makeOp("op-3", "t-3", operation.KindDelete, base.Add(2*time.Second))
	repo.Insert(ctx, done)
	done.Status = operation.StatusCompleted
	repo.Update(ctx, done)

	count, err := repo.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive() error = %v", err)
	}
	if count != 2 {
		t.Errorf("CountActive() = %d, want 2", count)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 || active[0].ID != "op-1" || active[1].ID != "op-2" {
		t.Errorf("ListActive() = %+v, want op-1 then op-2", active)
	}
}

func TestQueueRepository_DeleteAllPending(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	base := time.Now().UTC()

	repo.Insert(ctx, makeOp("op-1", "t-1", operation.KindCreate, base))
	repo.Insert(ctx, makeOp("op-2", "t-2", operation.KindUpdate, base))
	inFlight := makeOp("op-3", "t-3", operation.KindUpdate, base)
	repo.Insert(ctx, inFlight)
	inFlight.Status = operation.StatusInFlight
	repo.Update(ctx, inFlight)

	deleted, err := repo.DeleteAllPending(ctx)
	if err != nil {
		t.Fatalf("DeleteAllPending() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// The in-flight operation is untouched.
	if _, err := repo.Get(ctx, "op-3"); err != nil {
		t.Errorf("in-flight operation was deleted: %v", err)
	}
}

func TestQueueRepository_Conflicts(t *testing.T) {
	repo := newTestQueue(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	op := makeOp("op-1", "t-1", operation.KindUpdate, now)
	if err := repo.Insert(ctx, op); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	c := &operation.Conflict{
		ID:          "conf-1",
		OperationID: "op-1",
		EntityID:    "t-1",
		Message:     "content hash mismatch after retries",
		CreatedAt:   now,
	}
	if err := repo.InsertConflict(ctx, c); err != nil {
		t.Fatalf("InsertConflict() error = %v", err)
	}

	conflicts, err := repo.ListConflicts(ctx)
	if err != nil {
		t.Fatalf("ListConflicts() error = %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].OperationID != "op-1" {
		t.Errorf("ListConflicts() = %+v", conflicts)
	}

	if err := repo.DeleteConflict(ctx, "op-1"); err != nil {
		t.Fatalf("DeleteConflict() error = %v", err)
	}
	conflicts, _ = repo.ListConflicts(ctx)
	if len(conflicts) != 0 {
		t.Errorf("conflicts after delete = %+v, want none", conflicts)
	}
}
