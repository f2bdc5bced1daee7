package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openpharm/pharmsync/internal/schema"
	"github.com/openpharm/pharmsync/internal/store"
)

// Errors returned by coordinator operations.
var (
	// ErrOffline is returned by ForceSync when the remote store is
	// unreachable according to the connectivity probe.
	ErrOffline = errors.New("remote store is offline")

	// ErrSyncInProgress is returned by ForceSync when a pass is already
	// in flight. Force sync never cancels a running pass.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// RemoteStore is the remote side consumed by the coordinator.
// *remote.Client implements it; tests substitute fakes.
type RemoteStore interface {
	// Apply performs the remote mutation described by a queue entry.
	Apply(ctx context.Context, entry *schema.QueueEntry) error

	// ChangedSince returns remote records updated strictly after since.
	ChangedSince(ctx context.Context, table string, since time.Time) ([]schema.Record, error)

	// Ping probes remote reachability.
	Ping(ctx context.Context) error
}

// Config holds coordinator configuration.
type Config struct {
	// PollInterval is how often a sync pass is attempted.
	PollInterval time.Duration

	// ProbeInterval is how often connectivity is probed. The probe runs
	// independently of the sync tick.
	ProbeInterval time.Duration

	// BatchSize is the maximum number of queue entries drained per pass.
	BatchSize int

	// PullEnabled controls whether passes also pull remote changes.
	PullEnabled bool

	// Retention, when positive, purges synced queue entries older than
	// this age at the end of each pass. Zero keeps entries forever.
	Retention time.Duration

	// Logger for coordinator activity.
	Logger *log.Logger

	// OnEvent, when set, receives sync lifecycle events. Called from the
	// coordinator's goroutines; the callback must not block.
	OnEvent func(Event)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:  30 * time.Second,
		ProbeInterval: 10 * time.Second,
		BatchSize:     50,
		PullEnabled:   true,
		Logger:        log.New(os.Stderr, "[syncer] ", log.LstdFlags),
	}
}

// DrainResult summarizes one draining pass.
type DrainResult struct {
	Attempted int `json:"attempted"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
}

// PullResult summarizes one pulling pass.
type PullResult struct {
	Fetched int `json:"fetched"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// Status is the coordinator's observable state, consumed by status
// banners and the dashboard.
type Status struct {
	IsOnline      bool `json:"is_online"`
	IsSyncing     bool `json:"is_syncing"`
	IsInitialized bool `json:"is_initialized"`
}

// Coordinator orchestrates connectivity probing, queue draining and
// remote pulls. All sync state lives on the instance; multiple
// coordinators over separate stores are independent.
type Coordinator struct {
	db     *store.DB
	remote RemoteStore
	config *Config

	online      atomic.Bool
	syncing     atomic.Bool
	initialized atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex // guards cancel
}

// New creates a coordinator over the given local store and remote store.
// If config is nil, DefaultConfig() is used.
func New(db *store.DB, remote RemoteStore, config *Config) (*Coordinator, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[syncer] ", log.LstdFlags)
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 10 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}

	return &Coordinator{
		db:     db,
		remote: remote,
		config: config,
	}, nil
}

// Start begins probing and polling. Blocks until ctx is cancelled.
//
// An initial connectivity probe runs immediately so the first poll tick
// doesn't have to wait a full probe interval to discover the remote.
func (c *Coordinator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.config.Logger.Println("Starting sync coordinator")

	// Sanity-check the local store before declaring ourselves initialized.
	if _, err := c.db.PendingCount(ctx); err != nil {
		cancel()
		return fmt.Errorf("local store not usable: %w", err)
	}
	c.initialized.Store(true)

	c.probe(ctx)

	c.wg.Add(2)
	go c.probeLoop(ctx)
	go c.pollLoop(ctx)

	<-ctx.Done()
	c.wg.Wait()
	c.config.Logger.Println("Sync coordinator stopped")
	return nil
}

// Stop cancels the coordinator's loops. An in-flight pass is allowed to
// finish; no new pass starts.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// Status returns the coordinator's current observable state.
func (c *Coordinator) Status() Status {
	return Status{
		IsOnline:      c.online.Load(),
		IsSyncing:     c.syncing.Load(),
		IsInitialized: c.initialized.Load(),
	}
}

// IsOnline reports the result of the most recent connectivity probe.
func (c *Coordinator) IsOnline() bool {
	return c.online.Load()
}

// ForceSync runs one draining pass immediately, outside the timer.
//
// When the last probe saw the remote offline, one fresh probe runs first;
// only if the remote is still unreachable does the call fail with
// ErrOffline. Fails with ErrSyncInProgress when a pass is already running;
// a running pass is never cancelled or queued behind.
func (c *Coordinator) ForceSync(ctx context.Context) (*DrainResult, error) {
	if !c.online.Load() {
		// Re-probe once: a user-triggered sync right after connectivity
		// returned shouldn't have to wait for the probe ticker.
		c.probe(ctx)
		if !c.online.Load() {
			return nil, ErrOffline
		}
	}

	if !c.syncing.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	return c.Drain(ctx)
}

// probeLoop probes connectivity on a fixed interval, independent of the
// sync tick.
func (c *Coordinator) probeLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

// probe runs one reachability check and records the transition.
// Any probe failure counts as offline - never assume online.
func (c *Coordinator) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, c.config.ProbeInterval)
	defer cancel()

	online := c.remote.Ping(probeCtx) == nil
	was := c.online.Swap(online)
	if was == online {
		return
	}

	if online {
		c.config.Logger.Println("Connectivity regained")
		c.emit(Event{Type: EventOnline, Time: time.Now()})
	} else {
		c.config.Logger.Println("Connectivity lost")
		c.emit(Event{Type: EventOffline, Time: time.Now()})
	}
}

// pollLoop attempts a sync pass on each tick. A tick that finds the
// coordinator offline or already syncing is a no-op.
func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one guarded sync pass.
func (c *Coordinator) tick(ctx context.Context) {
	if !c.online.Load() {
		return
	}
	if !c.syncing.CompareAndSwap(false, true) {
		// A pass is in flight; this tick is dropped, not deferred.
		return
	}
	defer c.syncing.Store(false)

	if _, err := c.Drain(ctx); err != nil {
		c.config.Logger.Printf("Drain pass failed: %v", err)
	}

	if c.config.PullEnabled {
		if _, err := c.Pull(ctx); err != nil {
			c.config.Logger.Printf("Pull pass failed: %v", err)
		}
	}

	if c.config.Retention > 0 {
		cutoff := time.Now().Add(-c.config.Retention)
		n, err := c.db.PurgeSynced(ctx, cutoff)
		if err != nil {
			c.config.Logger.Printf("Queue purge failed: %v", err)
		} else if n > 0 {
			c.config.Logger.Printf("Purged %d synced queue entries", n)
			c.emit(Event{Type: EventQueuePurged, Time: time.Now(), Purged: n})
		}
	}
}

// Drain uploads up to BatchSize pending queue entries, oldest first.
//
// Each entry is applied independently: a remote failure marks the entry
// failed (retry count incremented, still eligible) and the pass moves on
// to the next entry. Local store errors while updating queue state are
// logged and leave the entry pending - never silently dropped.
func (c *Coordinator) Drain(ctx context.Context) (*DrainResult, error) {
	entries, err := c.db.ListPending(ctx, c.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	result := &DrainResult{Attempted: len(entries)}
	if len(entries) == 0 {
		return result, nil
	}

	for _, entry := range entries {
		if err := c.db.MarkSyncing(ctx, entry.ID); err != nil {
			c.config.Logger.Printf("Failed to mark entry %d syncing (left pending): %v", entry.ID, err)
			result.Failed++
			continue
		}

		if err := c.remote.Apply(ctx, entry); err != nil {
			c.config.Logger.Printf("Remote apply failed for %s %s/%s (attempt %d): %v",
				entry.Operation, entry.TableName, entry.RecordID, entry.RetryCount+1, err)
			if err := c.db.MarkFailed(ctx, entry.ID); err != nil {
				c.config.Logger.Printf("Failed to mark entry %d failed: %v", entry.ID, err)
			}
			result.Failed++
			continue
		}

		if err := c.db.MarkSynced(ctx, entry.ID); err != nil {
			// The remote apply is idempotent; the entry stays eligible
			// and will be re-applied on the next pass.
			c.config.Logger.Printf("Failed to mark entry %d synced (still eligible): %v", entry.ID, err)
			result.Failed++
			continue
		}
		result.Applied++
	}

	c.config.Logger.Printf("Drain complete: attempted=%d applied=%d failed=%d",
		result.Attempted, result.Applied, result.Failed)
	c.emit(Event{Type: EventDrainComplete, Time: time.Now(), Drain: result})
	return result, nil
}

// emit delivers an event to the configured callback, if any.
func (c *Coordinator) emit(ev Event) {
	if c.config.OnEvent != nil {
		c.config.OnEvent(ev)
	}
}
