package trucks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jbctechsolutions/yardsync/internal/adapters/store/sqlite"
	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/application/queue"
	appsync "github.com/jbctechsolutions/yardsync/internal/application/sync"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
)

// stubRemote satisfies the remote port for queue construction. Service
// tests run the orchestrator in local-only mode, so it is never called.
type stubRemote struct{}

func (s *stubRemote) Fetch(ctx context.Context) (*yard.Document, string, error) {
	return yard.EmptyDocument(), "", nil
}

func (s *stubRemote) Write(ctx context.Context, doc *yard.Document, hash string) (string, error) {
	return hash, nil
}

func (s *stubRemote) TestConnection(ctx context.Context) error { return nil }

func newTestService(t *testing.T) *Service {
	t.Helper()

	conn, err := sqlite.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewConnection() error = %v", err)
	}
	if err := conn.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := conn.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}

	cache := sqlite.NewCacheRepository(db, nil)
	q := queue.New(sqlite.NewQueueRepository(db), cache, &stubRemote{}, nil, queue.DefaultConfig())
	orch := appsync.New(cache, q, nil, nil, appsync.DefaultConfig())
	return NewService(orch)
}

func TestService_Add(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, err := svc.Add(ctx, AddInput{
		SupplierName: "Acme Grains",
		Product:      "maize",
		Quantity:     30,
		Unit:         "t",
		TruckPlate:   "GR-123-AB",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if truck.ID == "" {
		t.Error("Add() did not assign an ID")
	}
	if truck.Status != yard.TruckPending {
		t.Errorf("Status = %q, want %q", truck.Status, yard.TruckPending)
	}
	if len(truck.StatusHistory) != 1 {
		t.Errorf("StatusHistory length = %d, want 1", len(truck.StatusHistory))
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != truck.ID {
		t.Errorf("List() = %+v, want the added truck", list)
	}
}

func TestService_Add_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input AddInput
		want  error
	}{
		{"missing supplier", AddInput{Product: "maize", Quantity: 1}, errors.ErrSupplierRequired},
		{"missing product", AddInput{SupplierName: "Acme", Quantity: 1}, errors.ErrProductRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tt.input)
			if !errors.Is(err, tt.want) {
				t.Errorf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("invalid adds persisted %d trucks", len(list))
	}
}

func TestService_BulkAdd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entries := []ports.ParsedEntry{
		{Name: "Acme", Product: "maize", Quantity: 30, Unit: "t", TruckPlate: "GR-1"},
		{Name: "Duro", Product: "wheat", Quantity: 25, Unit: "t", TruckPlate: "GR-2"},
	}

	added, err := svc.BulkAdd(ctx, entries)
	if err != nil {
		t.Fatalf("BulkAdd() error = %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("BulkAdd() added %d trucks, want 2", len(added))
	}
	if added[0].ID == added[1].ID {
		t.Error("BulkAdd() reused an ID")
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List() returned %d trucks, want 2", len(list))
	}
}

func TestService_ScaleIn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, err := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	scaled, err := svc.ScaleIn(ctx, truck.ID, "WB-2026-001")
	if err != nil {
		t.Fatalf("ScaleIn() error = %v", err)
	}
	if scaled.Status != yard.TruckScaledIn {
		t.Errorf("Status = %q, want %q", scaled.Status, yard.TruckScaledIn)
	}
	if scaled.Waybill != "WB-2026-001" {
		t.Errorf("Waybill = %q, want WB-2026-001", scaled.Waybill)
	}
	if len(scaled.StatusHistory) != 2 {
		t.Fatalf("StatusHistory length = %d, want 2", len(scaled.StatusHistory))
	}
	if got := scaled.StatusHistory[1].Detail["waybill"]; got != "WB-2026-001" {
		t.Errorf("history detail waybill = %q, want WB-2026-001", got)
	}
}

func TestService_Offload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})

	// Offloading straight from the gate is not allowed.
	if _, err := svc.Offload(ctx, truck.ID); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Offload() from pending error = %v, want %v", err, errors.ErrInvalidTransition)
	}

	if _, err := svc.ScaleIn(ctx, truck.ID, "WB-1"); err != nil {
		t.Fatalf("ScaleIn() error = %v", err)
	}
	done, err := svc.Offload(ctx, truck.ID)
	if err != nil {
		t.Fatalf("Offload() error = %v", err)
	}
	if done.Status != yard.TruckOffloaded {
		t.Errorf("Status = %q, want %q", done.Status, yard.TruckOffloaded)
	}

	// Terminal: nothing moves out of offloaded.
	if _, err := svc.Reject(ctx, truck.ID, "late"); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Reject() after offload error = %v, want %v", err, errors.ErrInvalidTransition)
	}
}

func TestService_RejectAndRecover(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})

	rejected, err := svc.Reject(ctx, truck.ID, "moisture too high")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.Status != yard.TruckRejected {
		t.Errorf("Status = %q, want %q", rejected.Status, yard.TruckRejected)
	}
	if got := rejected.StatusHistory[1].Detail["reason"]; got != "moisture too high" {
		t.Errorf("history detail reason = %q", got)
	}

	// A rejected truck may come back to the scale.
	recovered, err := svc.ScaleIn(ctx, truck.ID, "WB-2")
	if err != nil {
		t.Fatalf("ScaleIn() after reject error = %v", err)
	}
	if recovered.Status != yard.TruckScaledIn {
		t.Errorf("Status = %q, want %q", recovered.Status, yard.TruckScaledIn)
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})

	qty := 32.5
	plate := "GR-999-XY"
	updated, err := svc.Update(ctx, truck.ID, UpdateInput{Quantity: &qty, TruckPlate: &plate})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Quantity != 32.5 {
		t.Errorf("Quantity = %v, want 32.5", updated.Quantity)
	}
	if updated.TruckPlate != "GR-999-XY" {
		t.Errorf("TruckPlate = %q, want GR-999-XY", updated.TruckPlate)
	}
	if updated.SupplierName != "Acme" {
		t.Errorf("SupplierName changed to %q", updated.SupplierName)
	}
	if !updated.UpdatedAt.After(truck.UpdatedAt) && !updated.UpdatedAt.Equal(truck.UpdatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	empty := ""
	if _, err := svc.Update(ctx, truck.ID, UpdateInput{SupplierName: &empty}); !errors.Is(err, errors.ErrSupplierRequired) {
		t.Errorf("Update() clearing supplier error = %v, want %v", err, errors.ErrSupplierRequired)
	}
}

func TestService_Update_NotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Update(ctx, "missing", UpdateInput{}); !errors.Is(err, errors.ErrTruckNotFound) {
		t.Errorf("Update() error = %v, want %v", err, errors.ErrTruckNotFound)
	}
}

func TestService_Delete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})

	if err := svc.Delete(ctx, truck.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get(ctx, truck.ID); !errors.Is(err, errors.ErrTruckNotFound) {
		t.Errorf("Get() after delete error = %v, want %v", err, errors.ErrTruckNotFound)
	}
	if err := svc.Delete(ctx, truck.ID); !errors.Is(err, errors.ErrTruckNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, errors.ErrTruckNotFound)
	}
}

func TestService_Reset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})
	svc.Add(ctx, AddInput{SupplierName: "Duro", Product: "wheat", Quantity: 20})

	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	list, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() after reset returned %d trucks, want 0", len(list))
	}
}

func TestService_Get(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})

	got, err := svc.Get(ctx, truck.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != truck.ID || got.SupplierName != "Acme" {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, errors.ErrTruckNotFound) {
		t.Errorf("Get(missing) error = %v, want %v", err, errors.ErrTruckNotFound)
	}
}

func TestService_HistoryTimestampsAdvance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	truck, _ := svc.Add(ctx, AddInput{SupplierName: "Acme", Product: "maize", Quantity: 30})
	time.Sleep(5 * time.Millisecond)
	scaled, err := svc.ScaleIn(ctx, truck.ID, "WB-1")
	if err != nil {
		t.Fatalf("ScaleIn() error = %v", err)
	}
	if !scaled.StatusHistory[1].Timestamp.After(scaled.StatusHistory[0].Timestamp) {
		t.Error("history timestamps did not advance")
	}
}
