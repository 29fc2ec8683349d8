package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Change is one key mutation observed by the Watcher. Removed changes
// carry no Value.
type Change struct {
	Key     string          `json:"key"`
	Value   json.RawMessage `json:"value,omitempty"`
	Removed bool            `json:"removed,omitempty"`
}

// WatchOptions tunes the watcher behaviour.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 200ms.
	Interval time.Duration
	// Debounce is the quiet period after a change is detected before
	// subscribers are notified. If more changes arrive during the window
	// the timer resets. 0 means fire immediately. Default: 0.
	Debounce time.Duration
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = 200 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls the shared state database for mutations and delivers the
// changed key set to subscribers. Every process that writes the store
// stamps its rows with the global revision counter, so a watcher in any
// other process can recover exactly which keys moved since it last
// looked. Safe for concurrent use.
type Watcher struct {
	store *DB
	opts  WatchOptions

	// rev is the last revision whose changes have been delivered.
	rev atomic.Int64

	mu      sync.Mutex
	nextID  int
	subs    map[int]func([]Change)

	// Counters for observability (exported via Stats).
	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	fires   atomic.Int64
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Notifications   int64 `json:"notifications"`
}

// NewWatcher creates a Watcher over the shared store. Call Run to start
// the poll loop.
func NewWatcher(store *DB, opts WatchOptions) *Watcher {
	opts.defaults()
	return &Watcher{store: store, opts: opts, subs: make(map[int]func([]Change))}
}

// Stats returns the current counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Notifications:   w.fires.Load(),
	}
}

// Rev returns the last delivered revision.
func (w *Watcher) Rev() int64 { return w.rev.Load() }

// Subscribe registers fn to receive change sets. The returned func
// unregisters it. fn runs on the watcher goroutine; a slow subscriber
// delays delivery to the others.
func (w *Watcher) Subscribe(fn func([]Change)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.subs[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Run blocks until ctx is cancelled, polling at opts.Interval. When the
// global revision advances and the debounce window passes without
// further movement, the accumulated change set is delivered to all
// subscribers.
//
// If reading the change set fails the revision is NOT advanced, so the
// read is retried on the next poll cycle.
func (w *Watcher) Run(ctx context.Context) {
	log := w.opts.Logger

	// Seed: changes before the watcher started are not replayed.
	if v, err := w.store.rev(ctx); err != nil {
		log.Warn("store: initial rev check failed", "error", err)
	} else {
		w.rev.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pendingRev := int64(-1)

	log.Debug("store: watcher started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Debug("store: watcher stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.store.rev(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("store: rev check failed", "error", err)
				continue
			}
			if cur <= w.rev.Load() || cur == pendingRev {
				continue
			}
			w.changes.Add(1)
			pendingRev = cur
			if w.opts.Debounce <= 0 {
				w.fire(ctx, log)
				pendingRev = -1
				continue
			}
			// (Re)start the debounce timer only when the rev actually
			// moved again; further movement pushes delivery back.
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("store: change detected, debouncing", "rev", cur)

		case <-debounceCh:
			debounceCh = nil
			if pendingRev >= 0 {
				w.fire(ctx, log)
				pendingRev = -1
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, log *slog.Logger) {
	last := w.rev.Load()

	// Snapshot the rev before reading the change set. Rows stamped after
	// this point stay above cur and are picked up on the next cycle.
	cur, err := w.store.rev(ctx)
	if err != nil {
		w.errors.Add(1)
		log.Warn("store: rev read failed", "error", err)
		return
	}

	changes, err := w.store.changedSince(ctx, last)
	if err != nil {
		w.errors.Add(1)
		log.Warn("store: read change set failed", "error", err, "since_rev", last)
		return
	}
	if len(changes) == 0 {
		w.rev.Store(cur)
		return
	}

	w.mu.Lock()
	subs := make([]func([]Change), 0, len(w.subs))
	for _, fn := range w.subs {
		subs = append(subs, fn)
	}
	w.mu.Unlock()

	for _, fn := range subs {
		fn(changes)
	}
	w.fires.Add(1)
	w.rev.Store(cur)
	log.Debug("store: notified", "keys", len(changes), "rev", cur)
}
