// Package sync coordinates the cached document, the operation queue,
// and the remote store. Reads come from the cache immediately; remote
// state arrives in the background and is merged with a bias toward
// local, in-flight work.
package sync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/yardsync/internal/application/ports"
	"github.com/jbctechsolutions/yardsync/internal/application/queue"
	"github.com/jbctechsolutions/yardsync/internal/domain/errors"
	"github.com/jbctechsolutions/yardsync/internal/domain/operation"
	"github.com/jbctechsolutions/yardsync/internal/domain/yard"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/tracing"
)

// Config holds sync policy parameters.
type Config struct {
	PollInterval    time.Duration // How often remote state is fetched
	MergeTolerance  time.Duration // Remote must be newer by more than this to win
	StalenessWindow time.Duration // Pending-change markers older than this are swept
	RetentionPeriod time.Duration // Records older than this are purged
}

// DefaultConfig returns the standard sync policy.
func DefaultConfig() Config {
	return Config{
		PollInterval:    20 * time.Second,
		MergeTolerance:  time.Second,
		StalenessWindow: 5 * time.Minute,
		RetentionPeriod: 72 * time.Hour,
	}
}

// Status is a snapshot of the synchronization state for UIs.
type Status struct {
	IsOnline          bool
	IsSyncing         bool
	PendingOperations int
	LastSyncTime      time.Time
	HasConflicts      bool
	Conflicts         []*operation.Conflict
}

// Orchestrator owns the local-first read/write path. All methods are
// safe for concurrent use.
type Orchestrator struct {
	cache  ports.LocalCachePort
	queue  *queue.Queue
	remote ports.RemoteStorePort // nil when no remote is configured
	logger *logging.Logger
	tracer *tracing.Tracer
	config Config

	mu          sync.Mutex
	isSyncing   bool
	isOnline    bool
	lastSync    time.Time
	subscribers map[int]func()
	nextSubID   int
}

// New creates an orchestrator. remote may be nil; the store then works
// purely locally and mutations are not queued.
func New(cache ports.LocalCachePort, q *queue.Queue, remote ports.RemoteStorePort, logger *logging.Logger, cfg Config) *Orchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Second
	}
	if cfg.MergeTolerance <= 0 {
		cfg.MergeTolerance = time.Second
	}
	if cfg.StalenessWindow <= 0 {
		cfg.StalenessWindow = 5 * time.Minute
	}
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = 72 * time.Hour
	}
	return &Orchestrator{
		cache:       cache,
		queue:       q,
		remote:      remote,
		logger:      logger,
		tracer:      tracing.Default(),
		config:      cfg,
		isOnline:    remote != nil,
		subscribers: make(map[int]func()),
	}
}

// LoadData returns the current local view immediately. Stale pending
// markers are swept and expired records purged first; remote state is
// fetched and merged in the background, with failures swallowed.
func (o *Orchestrator) LoadData(ctx context.Context) (*yard.Document, error) {
	if _, err := o.cache.SweepStale(ctx, o.config.StalenessWindow); err != nil {
		o.logger.WarnContext(ctx, "staleness sweep failed", "error", err.Error())
	}

	doc := o.cache.Load(ctx)

	now := time.Now().UTC()
	cutoff := now.Add(-o.config.RetentionPeriod)
	if pruned := doc.PruneOlderThan(cutoff); pruned > 0 {
		logging.LogRetentionPurge(ctx, o.logger, pruned, cutoff)
		doc.Touch(now)
		if err := o.cache.Save(ctx, doc); err != nil {
			return nil, err
		}
		if o.remote != nil {
			// The purge must reach other clients too.
			if _, err := o.queue.Enqueue(ctx, operation.KindUpdate, operation.RecordDocument, "", nil); err != nil {
				o.logger.WarnContext(ctx, "could not queue retention purge", "error", err.Error())
			}
			go o.drainAsync(context.WithoutCancel(ctx))
		}
	}

	if o.remote != nil {
		go func(bg context.Context) {
			if err := o.syncOnce(bg, "load"); err != nil {
				logging.LogSyncFailed(bg, o.logger, "load", err, 0)
			}
		}(context.WithoutCancel(ctx))
	}

	return doc, nil
}

// Mutate applies a change to the cached document, shields it with
// pending markers, and queues the push. Every public mutation funnels
// through here.
func (o *Orchestrator) Mutate(ctx context.Context, kind operation.Kind, recordKind operation.RecordKind, entityID string, apply func(*yard.Document) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	doc := o.cache.Load(ctx)
	if err := apply(doc); err != nil {
		return err
	}
	doc.Touch(time.Now().UTC())

	if err := o.cache.Save(ctx, doc); err != nil {
		return err
	}

	if o.remote == nil {
		// Local-only mode: the change is saved but nothing is queued.
		return nil
	}

	switch kind {
	case operation.KindDelete:
		if err := o.cache.MarkPendingDeletion(ctx, entityID); err != nil {
			o.logger.WarnContext(ctx, "could not mark pending deletion", "error", err.Error())
		}
	case operation.KindCreate, operation.KindUpdate:
		if entityID != "" {
			if err := o.cache.MarkPendingChange(ctx, entityID, string(recordKind)); err != nil {
				o.logger.WarnContext(ctx, "could not mark pending change", "error", err.Error())
			}
		}
	}

	payload := snapshotPayload(doc, recordKind, entityID)
	if _, err := o.queue.Enqueue(ctx, kind, recordKind, entityID, payload); err != nil {
		return err
	}

	go o.drainAsync(context.WithoutCancel(ctx))
	return nil
}

// snapshotPayload captures the record state at enqueue time for
// inspection and conflict reporting.
func snapshotPayload(doc *yard.Document, recordKind operation.RecordKind, entityID string) json.RawMessage {
	if entityID == "" {
		return nil
	}
	switch recordKind {
	case operation.RecordTruck:
		if t := doc.FindTruck(entityID); t != nil {
			if raw, err := json.Marshal(t); err == nil {
				return raw
			}
		}
	case operation.RecordLoading:
		if l := doc.FindLoading(entityID); l != nil {
			if raw, err := json.Marshal(l); err == nil {
				return raw
			}
		}
	}
	return nil
}

// ForceSync fetches and merges remote state, then drains the queue.
func (o *Orchestrator) ForceSync(ctx context.Context) error {
	if o.remote == nil {
		return errors.NewError(errors.CodeConfiguration, "no remote store configured", errors.ErrRemoteNotConfigured)
	}
	if err := o.syncOnce(ctx, "manual"); err != nil {
		return err
	}
	return o.queue.Drain(ctx)
}

// syncOnce fetches the remote document and merges it into the cache.
// Overlapping syncs collapse into one.
func (o *Orchestrator) syncOnce(ctx context.Context, trigger string) error {
	o.mu.Lock()
	if o.isSyncing {
		o.mu.Unlock()
		return nil
	}
	o.isSyncing = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.isSyncing = false
		o.mu.Unlock()
	}()

	started := time.Now()
	ctx = logging.WithSyncCycle(ctx, uuid.New().String())
	ctx, span := o.tracer.StartSyncSpan(ctx, trigger)
	logging.LogSyncStart(ctx, o.logger, trigger)

	remoteDoc, hash, err := o.remote.Fetch(ctx)
	if err != nil {
		o.setOnline(ctx, !errors.IsNetwork(err))
		span.EndWithError(err)
		return err
	}
	o.setOnline(ctx, true)
	o.queue.SetRemoteHash(hash)
	span.SetRemoteHash(hash)

	o.mu.Lock()
	defer o.mu.Unlock()

	local := o.cache.Load(ctx)
	prevModified := local.LastModified
	adopted, skipped := o.merge(ctx, local, remoteDoc)
	// A bare timestamp advance still counts as remote change: it must
	// be persisted and announced even when no record was adopted.
	changed := adopted > 0 || local.LastModified.After(prevModified)
	if changed {
		if err := o.cache.Save(ctx, local); err != nil {
			span.EndWithError(err)
			return err
		}
	}

	o.lastSync = time.Now().UTC()
	span.SetMergeCounts(adopted, skipped)
	span.End()
	logging.LogSyncComplete(ctx, o.logger, trigger, adopted, skipped, time.Since(started))

	if changed {
		o.notifyLocked()
	}
	return nil
}

// merge folds remote records into the local document. Local wins for
// anything shielded by a pending marker, and for near-simultaneous
// edits within the merge tolerance. Returns adopted and skipped counts.
func (o *Orchestrator) merge(ctx context.Context, local, remote *yard.Document) (adopted, skipped int) {
	tolerance := o.config.MergeTolerance

	for i := range remote.Trucks {
		rt := &remote.Trucks[i]
		if o.shielded(ctx, rt.ID) {
			skipped++
			continue
		}
		lt := local.FindTruck(rt.ID)
		if lt == nil {
			local.UpsertTruck(*rt.Clone())
			adopted++
			continue
		}
		if rt.EffectiveTime().After(lt.EffectiveTime().Add(tolerance)) {
			local.UpsertTruck(*rt.Clone())
			adopted++
		} else {
			skipped++
		}
	}

	for i := range remote.Loadings {
		rl := &remote.Loadings[i]
		if o.shielded(ctx, rl.ID) {
			skipped++
			continue
		}
		ll := local.FindLoading(rl.ID)
		if ll == nil {
			local.UpsertLoading(*rl.Clone())
			adopted++
			continue
		}
		if rl.EffectiveTime().After(ll.EffectiveTime().Add(tolerance)) {
			local.UpsertLoading(*rl.Clone())
			adopted++
		} else {
			skipped++
		}
	}

	if remote.LastModified.After(local.LastModified) {
		local.LastModified = remote.LastModified
	}
	return adopted, skipped
}

// shielded reports whether a record has in-flight local intent that a
// remote merge must not overwrite.
func (o *Orchestrator) shielded(ctx context.Context, entityID string) bool {
	if deleted, _ := o.cache.IsPendingDeletion(ctx, entityID); deleted {
		return true
	}
	if pending, _ := o.cache.IsPendingChange(ctx, entityID); pending {
		return true
	}
	return false
}

// Run polls the remote store until the context ends.
func (o *Orchestrator) Run(ctx context.Context) {
	if o.remote == nil {
		return
	}

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.syncOnce(ctx, "poll"); err != nil && ctx.Err() == nil {
				logging.LogSyncFailed(ctx, o.logger, "poll", err, 0)
			}
		}
	}
}

// HandleConnectivityChange is wired to the connectivity monitor.
// Regaining the connection triggers a sync and a drain.
func (o *Orchestrator) HandleConnectivityChange(ctx context.Context, online bool) {
	o.mu.Lock()
	was := o.isOnline
	o.isOnline = online
	o.mu.Unlock()

	if was != online {
		logging.LogConnectivityChange(ctx, o.logger, online)
	}
	if online && !was && o.remote != nil {
		go func(bg context.Context) {
			if err := o.syncOnce(bg, "reconnect"); err != nil {
				logging.LogSyncFailed(bg, o.logger, "reconnect", err, 0)
			}
			o.drainAsync(bg)
		}(context.WithoutCancel(ctx))
	}
}

// Subscribe registers a callback invoked after remote changes are
// merged. The returned function unsubscribes.
func (o *Orchestrator) Subscribe(fn func()) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSubID
	o.nextSubID++
	o.subscribers[id] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subscribers, id)
	}
}

// notifyLocked invokes subscribers. Callers hold o.mu.
func (o *Orchestrator) notifyLocked() {
	for _, fn := range o.subscribers {
		go fn()
	}
}

// Status returns a snapshot of the sync state.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	pending, err := o.queue.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	conflicts, err := o.queue.Conflicts(ctx)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return &Status{
		IsOnline:          o.isOnline && o.remote != nil,
		IsSyncing:         o.isSyncing,
		PendingOperations: pending,
		LastSyncTime:      o.lastSync,
		HasConflicts:      len(conflicts) > 0,
		Conflicts:         conflicts,
	}, nil
}

// ResolveConflict settles an escalated conflict and, for keep_local,
// immediately retries the push.
func (o *Orchestrator) ResolveConflict(ctx context.Context, operationID string, resolution operation.Resolution) error {
	if err := o.queue.ResolveConflict(ctx, operationID, resolution); err != nil {
		return err
	}
	if resolution == operation.ResolutionKeepLocal {
		go o.drainAsync(context.WithoutCancel(ctx))
	} else if o.remote != nil {
		go func(bg context.Context) {
			if err := o.syncOnce(bg, "resolution"); err != nil {
				logging.LogSyncFailed(bg, o.logger, "resolution", err, 0)
			}
		}(context.WithoutCancel(ctx))
	}
	return nil
}

// setOnline updates connectivity state derived from remote responses.
func (o *Orchestrator) setOnline(ctx context.Context, online bool) {
	o.mu.Lock()
	changed := o.isOnline != online
	o.isOnline = online
	o.mu.Unlock()
	if changed {
		logging.LogConnectivityChange(ctx, o.logger, online)
	}
}

func (o *Orchestrator) drainAsync(ctx context.Context) {
	if err := o.queue.Drain(ctx); err != nil && ctx.Err() == nil {
		o.logger.WarnContext(ctx, "queue drain failed", "error", err.Error())
	}
}
