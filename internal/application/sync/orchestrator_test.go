package sync

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	storesqlite "github.com/jbctechsolutions/yardsync/internal/adapters/store/sqlite"
	"github.com/jbctechsolutions/yardsync/internal/application/queue"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
)

// fakeRemote serves a scripted document for orchestrator tests.
type fakeRemote struct {
	mu          sync.Mutex
	doc         *yard.Document
	hash        string
	fetchErr    error
	writes      int
	lastWritten *yard.Document
}

func (f *fakeRemote) Fetch(ctx context.Context) (*yard.Document, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, "", f.fetchErr
	}
	if f.doc == nil {
		return yard.EmptyDocument(), "", nil
	}
	return f.doc.Clone(), f.hash, nil
}

func (f *fakeRemote) Write(ctx context.Context, doc *yard.Document, hash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.lastWritten = doc.Clone()
	return "written", nil
}

func (f *fakeRemote) TestConnection(ctx context.Context) error { return nil }

func (f *fakeRemote) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

type fixture struct {
	orch   *Orchestrator
	cache  *storesqlite.CacheRepository
	qstore *storesqlite.QueueRepository
	remote *fakeRemote
}

func newFixture(t *testing.T, remote *fakeRemote, cfg Config) *fixture {
	t.Helper()
	conn, err := storesqlite.NewConnection(filepath.Join(t.TempDir(), "test.db"))
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

	cache := storesqlite.NewCacheRepository(db, nil)
	qstore := storesqlite.NewQueueRepository(db)

	var remotePort *fakeRemote
	if remote != nil {
		remotePort = remote
	}

	q := queue.New(qstore, cache, remoteOrNil(remotePort), nil, queue.DefaultConfig())

	var orch *Orchestrator
	if remotePort != nil {
		orch = New(cache, q, remotePort, nil, cfg)
	} else {
		orch = New(cache, q, nil, nil, cfg)
	}
	return &fixture{orch: orch, cache: cache, qstore: qstore, remote: remotePort}
}

// remoteOrNil avoids handing a typed-nil interface to the queue.
func remoteOrNil(f *fakeRemote) *fakeRemote {
	if f == nil {
		return &fakeRemote{}
	}
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMergeBias(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		remoteDelta time.Duration
		wantRemote  bool
	}{
		{"remote newer within tolerance keeps local", 500 * time.Millisecond, false},
		{"remote newer beyond tolerance adopts remote", 1500 * time.Millisecond, true},
		{"remote older keeps local", -2 * time.Second, false},
		{"identical timestamps keep local", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			localTruck := yard.NewTruck("t-1", "Local Supplier", "maize", 30, "GR-1", base)
			localTruck.UpdatedAt = base

			remoteTruck := localTruck.Clone()
			remoteTruck.SupplierName = "Remote Supplier"
			remoteTruck.UpdatedAt = base.Add(tt.remoteDelta)

			remoteDoc := yard.EmptyDocument()
			remoteDoc.UpsertTruck(*remoteTruck)
			remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

			fx := newFixture(t, remote, DefaultConfig())
			ctx := context.Background()

			localDoc := yard.EmptyDocument()
			localDoc.UpsertTruck(*localTruck)
			if err := fx.cache.Save(ctx, localDoc); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			if err := fx.orch.syncOnce(ctx, "test"); err != nil {
				t.Fatalf("syncOnce() error = %v", err)
			}

			got := fx.cache.Load(ctx).FindTruck("t-1")
			if got == nil {
				t.Fatal("truck vanished during merge")
			}
			wantName := "Local Supplier"
			if tt.wantRemote {
				wantName = "Remote Supplier"
			}
			if got.SupplierName != wantName {
				t.Errorf("supplier = %q, want %q", got.SupplierName, wantName)
			}
		})
	}
}

func TestMerge_AdoptsUnknownRemoteRecords(t *testing.T) {
	now := time.Now().UTC()
	remoteDoc := yard.EmptyDocument()
	remoteDoc.UpsertTruck(*yard.NewTruck("t-new", "Fresh", "rice", 10, "GR-9", now))
	remoteDoc.UpsertLoading(*yard.NewLoading("l-new", "Duro", "flour", 5, "GT-3", now))
	remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}

	local := fx.cache.Load(ctx)
	if local.FindTruck("t-new") == nil {
		t.Error("unknown remote truck should be adopted")
	}
	if local.FindLoading("l-new") == nil {
		t.Error("unknown remote loading should be adopted")
	}
}

func TestMerge_PendingDeletionShield(t *testing.T) {
	now := time.Now().UTC()
	remoteDoc := yard.EmptyDocument()
	remoteDoc.UpsertTruck(*yard.NewTruck("t-gone", "Acme", "maize", 30, "GR-1", now))
	remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	// Deleted locally, deletion not yet confirmed remotely.
	if err := fx.cache.MarkPendingDeletion(ctx, "t-gone"); err != nil {
		t.Fatalf("MarkPendingDeletion() error = %v", err)
	}

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}

	if fx.cache.Load(ctx).FindTruck("t-gone") != nil {
		t.Error("poll must not resurrect a record awaiting deletion")
	}
}

func TestMerge_PendingChangeShield(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	localTruck := yard.NewTruck("t-1", "Local Edit", "maize", 30, "GR-1", base)
	remoteTruck := localTruck.Clone()
	remoteTruck.SupplierName = "Remote Edit"
	remoteTruck.UpdatedAt = base.Add(time.Hour) // Far newer, would normally win

	remoteDoc := yard.EmptyDocument()
	remoteDoc.UpsertTruck(*remoteTruck)
	remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	localDoc := yard.EmptyDocument()
	localDoc.UpsertTruck(*localTruck)
	fx.cache.Save(ctx, localDoc)
	fx.cache.MarkPendingChange(ctx, "t-1", "truck")

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}

	got := fx.cache.Load(ctx).FindTruck("t-1")
	if got.SupplierName != "Local Edit" {
		t.Errorf("supplier = %q, pending local edit must win", got.SupplierName)
	}
}

func TestLoadData_RetentionPurge(t *testing.T) {
	remote := &fakeRemote{}
	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	old := time.Now().UTC().Add(-73 * time.Hour)
	fresh := time.Now().UTC().Add(-time.Hour)

	doc := yard.EmptyDocument()
	doc.UpsertTruck(*yard.NewTruck("t-old", "Acme", "maize", 30, "GR-1", old))
	doc.UpsertTruck(*yard.NewTruck("t-new", "Beta", "rice", 15, "GR-2", fresh))
	fx.cache.Save(ctx, doc)

	got, err := fx.orch.LoadData(ctx)
	if err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}

	if got.FindTruck("t-old") != nil {
		t.Error("expired record should be purged before returning")
	}
	if got.FindTruck("t-new") == nil {
		t.Error("recent record should survive")
	}

	// The purge is pushed to the remote as a document update.
	waitFor(t, "purge write", func() bool { return remote.writeCount() >= 1 })
	remote.mu.Lock()
	defer remote.mu.Unlock()
	if remote.lastWritten.FindTruck("t-old") != nil {
		t.Error("pushed document should not contain the purged record")
	}
}

func TestLoadData_SweepsStaleMarkers(t *testing.T) {
	fx := newFixture(t, nil, DefaultConfig())
	ctx := context.Background()

	// A marker older than the staleness window, inserted as if a crash
	// left it behind.
	fx.cache.MarkPendingChange(ctx, "t-1", "truck")

	cfg := DefaultConfig()
	cfg.StalenessWindow = time.Nanosecond
	fx.orch.config = cfg

	time.Sleep(time.Millisecond)
	if _, err := fx.orch.LoadData(ctx); err != nil {
		t.Fatalf("LoadData() error = %v", err)
	}

	if pending, _ := fx.cache.IsPendingChange(ctx, "t-1"); pending {
		t.Error("stale pending marker should be swept on load")
	}
}

func TestMutate_QueuesAndShields(t *testing.T) {
	remote := &fakeRemote{}
	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	err := fx.orch.Mutate(ctx, operation.KindCreate, operation.RecordTruck, "t-1", func(doc *yard.Document) error {
		doc.UpsertTruck(*yard.NewTruck("t-1", "Acme", "maize", 30, "GR-1", now))
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if fx.cache.Load(ctx).FindTruck("t-1") == nil {
		t.Error("mutation should apply to the cache synchronously")
	}

	// The push happens in the background; once confirmed the marker clears.
	waitFor(t, "mutation push", func() bool { return remote.writeCount() >= 1 })
	waitFor(t, "marker clear", func() bool {
		pending, _ := fx.cache.IsPendingChange(ctx, "t-1")
		return !pending
	})
}

func TestMutate_ApplyErrorAborts(t *testing.T) {
	fx := newFixture(t, &fakeRemote{}, DefaultConfig())
	ctx := context.Background()

	wantErr := errors.NewError(errors.CodeValidation, "bad transition", errors.ErrInvalidTransition)
	err := fx.orch.Mutate(ctx, operation.KindUpdate, operation.RecordTruck, "t-1", func(doc *yard.Document) error {
		return wantErr
	})
	if !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("Mutate() = %v, want the apply error", err)
	}

	count, _ := fx.qstore.CountActive(ctx)
	if count != 0 {
		t.Errorf("failed mutation should queue nothing, got %d", count)
	}
}

func TestLocalOnlyMode(t *testing.T) {
	fx := newFixture(t, nil, DefaultConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	err := fx.orch.Mutate(ctx, operation.KindCreate, operation.RecordTruck, "t-1", func(doc *yard.Document) error {
		doc.UpsertTruck(*yard.NewTruck("t-1", "Acme", "maize", 30, "GR-1", now))
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if fx.cache.Load(ctx).FindTruck("t-1") == nil {
		t.Error("local-only mutation should still persist")
	}
	count, _ := fx.qstore.CountActive(ctx)
	if count != 0 {
		t.Errorf("local-only mode should queue nothing, got %d", count)
	}

	if err := fx.orch.ForceSync(ctx); !errors.Is(err, errors.ErrRemoteNotConfigured) {
		t.Errorf("ForceSync() = %v, want ErrRemoteNotConfigured", err)
	}

	status, err := fx.orch.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.IsOnline {
		t.Error("local-only mode should report offline")
	}
}

func TestStatus(t *testing.T) {
	remote := &fakeRemote{hash: "h1"}
	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	status, err := fx.orch.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !status.IsOnline {
		t.Error("configured remote should start online")
	}
	if status.PendingOperations != 0 || status.HasConflicts {
		t.Errorf("fresh status = %+v, want clean", status)
	}

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}
	status, _ = fx.orch.Status(ctx)
	if status.LastSyncTime.IsZero() {
		t.Error("LastSyncTime should be set after a sync")
	}
}

func TestSubscribe_NotifiedOnAdoption(t *testing.T) {
	now := time.Now().UTC()
	remoteDoc := yard.EmptyDocument()
	remoteDoc.UpsertTruck(*yard.NewTruck("t-1", "Acme", "maize", 30, "GR-1", now))
	remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	notified := make(chan struct{}, 1)
	unsubscribe := fx.orch.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not notified after remote adoption")
	}

	// After unsubscribe, a further adoption does not notify.
	unsubscribe()
	remote.mu.Lock()
	fresh := yard.NewTruck("t-2", "Beta", "rice", 10, "GR-2", now.Add(time.Minute))
	remote.doc.UpsertTruck(*fresh)
	remote.mu.Unlock()

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("second syncOnce() error = %v", err)
	}
	select {
	case <-notified:
		t.Error("unsubscribed callback should not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSyncOnce_TimestampAdvanceIsPersisted(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// The remote document carries no record the merge would adopt, only
	// a newer document timestamp (another client ran a purge).
	remoteDoc := yard.EmptyDocument()
	remoteDoc.Touch(base.Add(time.Hour))
	remote := &fakeRemote{doc: remoteDoc, hash: "h1"}

	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	localDoc := yard.EmptyDocument()
	localDoc.Touch(base)
	if err := fx.cache.Save(ctx, localDoc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	notified := make(chan struct{}, 1)
	unsubscribe := fx.orch.Subscribe(func() {
		select {
		case notified <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	if err := fx.orch.syncOnce(ctx, "test"); err != nil {
		t.Fatalf("syncOnce() error = %v", err)
	}

	got := fx.cache.Load(ctx)
	if !got.LastModified.Equal(base.Add(time.Hour)) {
		t.Errorf("LastModified = %v, want the remote timestamp %v", got.LastModified, base.Add(time.Hour))
	}

	select {
	case <-notified:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber should be notified when the remote timestamp advances")
	}
}

func TestSyncOnce_NetworkErrorGoesOffline(t *testing.T) {
	remote := &fakeRemote{fetchErr: errors.NewError(errors.CodeNetwork, "dial timeout", nil)}
	fx := newFixture(t, remote, DefaultConfig())
	ctx := context.Background()

	if err := fx.orch.syncOnce(ctx, "test"); err == nil {
		t.Fatal("expected fetch error to propagate")
	}

	status, _ := fx.orch.Status(ctx)
	if status.IsOnline {
		t.Error("network failure should flip status to offline")
	}

	// Connectivity regained: back online after a successful sync.
	remote.mu.Lock()
	remote.fetchErr = nil
	remote.mu.Unlock()

	fx.orch.HandleConnectivityChange(ctx, true)
	waitFor(t, "back online", func() bool {
		status, _ := fx.orch.Status(ctx)
		return status.IsOnline
	})
}
