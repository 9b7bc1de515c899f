package watcher

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-server/internal/extract"
	"media-server/internal/index"
	"media-server/internal/logging"
	"media-server/internal/mediatypes"
	"media-server/internal/metrics"
	"media-server/internal/workers"

	"github.com/fsnotify/fsnotify"
)

const (
	// shardBufferSize bounds each worker queue. Deleting a large directory
	// produces a burst of events, so keep headroom.
	shardBufferSize = 4096

	// DefaultDebounce is the quiet period a path must hold before its
	// coalesced event is dispatched. Long enough to ride out a copy in
	// progress, short enough that new files appear promptly.
	DefaultDebounce = 500 * time.Millisecond

	// DefaultSweepInterval is how often the reconciliation sweep runs.
	DefaultSweepInterval = 10 * time.Minute
)

// Config configures a Watcher. Root, Store, and Extractors are required.
type Config struct {
	// Root is the absolute path of the media root.
	Root string
	// Store is the index the watcher keeps current.
	Store *index.Store
	// Extractors supplies metadata extraction per file type.
	Extractors *extract.Registry
	// Debounce is the await-write-finish quiet period; zero selects
	// DefaultDebounce, negative disables debouncing.
	Debounce time.Duration
	// SweepInterval is the reconciliation period; zero selects
	// DefaultSweepInterval, negative disables the sweep.
	SweepInterval time.Duration
	// Workers is the enrichment worker count; zero sizes off the host.
	Workers int
}

// Watcher owns the scan, notification, and enrichment pipeline for one
// media root.
type Watcher struct {
	root       string
	store      *index.Store
	extractors *extract.Registry
	debounce   time.Duration
	sweepEvery time.Duration

	fsw     *fsnotify.Watcher
	mu      sync.Mutex
	watched map[string]struct{}

	shards []chan Event

	pendMu  sync.Mutex
	pending map[string]*pendingEvent

	deferMu  sync.Mutex
	deferred map[string]struct{}

	ready  atomic.Bool
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

type pendingEvent struct {
	kind  EventKind
	timer *time.Timer
}

// New validates cfg and builds a watcher. Call Start to begin processing.
func New(cfg Config) (*Watcher, error) {
	if cfg.Root == "" || cfg.Store == nil || cfg.Extractors == nil {
		return nil, errors.New("watcher: Root, Store, and Extractors are required")
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watcher: stat media root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watcher: media root %s is not a directory", cfg.Root)
	}

	debounce := cfg.Debounce
	switch {
	case debounce == 0:
		debounce = DefaultDebounce
	case debounce < 0:
		debounce = 0
	}
	sweepEvery := cfg.SweepInterval
	switch {
	case sweepEvery == 0:
		sweepEvery = DefaultSweepInterval
	case sweepEvery < 0:
		sweepEvery = 0
	}

	n := cfg.Workers
	if n <= 0 {
		n = workers.ForIO(0)
	}
	shards := make([]chan Event, n)
	for i := range shards {
		shards[i] = make(chan Event, shardBufferSize)
	}

	return &Watcher{
		root:       filepath.Clean(cfg.Root),
		store:      cfg.Store,
		extractors: cfg.Extractors,
		debounce:   debounce,
		sweepEvery: sweepEvery,
		watched:    make(map[string]struct{}),
		shards:     shards,
		pending:    make(map[string]*pendingEvent),
		deferred:   make(map[string]struct{}),
		stop:       make(chan struct{}),
	}, nil
}

// Start launches the workers, the notification loop, the initial scan, and
// the periodic sweep. ctx cancellation has the same effect as Close.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.watchRecursive(w.root); err != nil {
		fsw.Close()
		return fmt.Errorf("watcher: watch %s: %w", w.root, err)
	}

	for i := range w.shards {
		w.wg.Add(1)
		go w.worker(ctx, w.shards[i])
	}

	w.wg.Add(1)
	go w.eventLoop(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.initialScan(ctx)
	}()

	if w.sweepEvery > 0 {
		w.wg.Add(1)
		go w.sweepLoop(ctx)
	}

	logging.Info("Watching %s with %d enrichment workers", w.root, len(w.shards))
	return nil
}

// Close stops the pipeline and waits for in-flight enrichment to finish.
func (w *Watcher) Close() {
	w.once.Do(func() {
		close(w.stop)
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				logging.Warn("failed to close fsnotify watcher: %v", err)
			}
		}
		w.pendMu.Lock()
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.pendMu.Unlock()
	})
	w.wg.Wait()
}

// Ready reports whether the initial scan has completed. The serving layer's
// readiness probe keys off this so listing totals are stable before traffic.
func (w *Watcher) Ready() bool {
	return w.ready.Load()
}

// initialScan drives every existing file through the pipeline. Unreadable
// subtrees are logged and skipped rather than aborting the walk.
func (w *Watcher) initialScan(ctx context.Context) {
	start := time.Now()
	count := 0

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		select {
		case <-w.stop:
			return filepath.SkipAll
		case <-ctx.Done():
			return filepath.SkipAll
		default:
		}

		if walkErr != nil {
			logging.Warn("Scan skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(path) && path != w.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		w.dispatch(Event{Kind: Discovered, Path: path})
		count++
		return nil
	})
	if err != nil {
		logging.Error("Initial scan failed: %v", err)
	}

	metrics.WatcherScanDuration.Observe(time.Since(start).Seconds())
	logging.Info("Initial scan dispatched %d files in %v", count, time.Since(start))
	w.ready.Store(true)
}

// eventLoop consumes raw fsnotify events. It only classifies and schedules;
// all stat/store/extract work happens on the worker shards so a slow
// enrichment never backs up into the kernel's event queue.
func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("fsnotify error: %v", err)
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(ev)
		}
	}
}

func (w *Watcher) handleFsEvent(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if isHidden(path) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Rename delivers the old name; the new name arrives as a
		// separate Create. Model both as remove-then-discover.
		w.cancelPending(path)
		w.unwatchSubtree(path)
		w.dispatch(Event{Kind: Removed, Path: path})

	case ev.Op&fsnotify.Create != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			// A created or moved-in directory needs a watch plus a
			// manual walk; its contents predate the watch.
			if err := w.watchRecursive(path); err != nil {
				logging.Warn("failed to watch new directory %s: %v", path, err)
			}
			w.scanSubtree(path)
			return
		}
		w.schedule(path, Discovered)

	case ev.Op&fsnotify.Write != 0:
		w.schedule(path, Changed)
	}
}

// scanSubtree dispatches Discovered for every file under dir.
func (w *Watcher) scanSubtree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		if isHidden(path) {
			return nil
		}
		w.schedule(path, Discovered)
		return nil
	})
	if err != nil {
		logging.Warn("failed to scan %s: %v", dir, err)
	}
}

// schedule arms or extends the await-write-finish timer for path. The event
// dispatches once the path has been quiet for the debounce period; a later
// Changed does not downgrade an armed Discovered.
func (w *Watcher) schedule(path string, kind EventKind) {
	if w.debounce <= 0 {
		w.dispatch(Event{Kind: kind, Path: path})
		return
	}

	w.pendMu.Lock()
	defer w.pendMu.Unlock()

	if p, ok := w.pending[path]; ok {
		if p.kind != Discovered {
			p.kind = kind
		}
		p.timer.Reset(w.debounce)
		return
	}

	p := &pendingEvent{kind: kind}
	p.timer = time.AfterFunc(w.debounce, func() {
		w.pendMu.Lock()
		kind := p.kind
		delete(w.pending, path)
		w.pendMu.Unlock()

		select {
		case <-w.stop:
		default:
			w.dispatch(Event{Kind: kind, Path: path})
		}
	})
	w.pending[path] = p
}

func (w *Watcher) cancelPending(path string) {
	w.pendMu.Lock()
	defer w.pendMu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// dispatch routes an event to its shard. Sharding by path hash keeps all
// events for one path on one worker, preserving per-path order. dispatch
// never blocks its caller (the fsnotify loop runs through here): when a
// shard's buffer is full the path is parked for the next sweep, which
// re-derives the right action from a fresh stat.
func (w *Watcher) dispatch(ev Event) {
	metrics.WatcherEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	h := fnv.New32a()
	h.Write([]byte(ev.Path))
	shard := w.shards[h.Sum32()%uint32(len(w.shards))]

	select {
	case shard <- ev:
		metrics.WatcherQueueDepth.Inc()
	case <-w.stop:
	default:
		w.deferMu.Lock()
		w.deferred[ev.Path] = struct{}{}
		w.deferMu.Unlock()
		metrics.WatcherEventsDeferred.Inc()
		logging.Warn("Enrichment queue full, deferring %s to the next sweep", ev.Path)
	}
}

func (w *Watcher) worker(ctx context.Context, shard chan Event) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case ev := <-shard:
			metrics.WatcherQueueDepth.Dec()
			w.process(ctx, ev)
		}
	}
}

// process performs the I/O around the pure reducer: stat and current-record
// lookup in, store writes and extraction out.
func (w *Watcher) process(ctx context.Context, ev Event) {
	rel, err := w.relPath(ev.Path)
	if err != nil {
		logging.Warn("Ignoring event outside media root: %s", ev.Path)
		return
	}

	if ev.Kind == Removed {
		// The path may have been a directory; clear any records beneath
		// it too. Both deletes are idempotent.
		if err := w.store.Remove(ctx, rel); err != nil {
			logging.Error("failed to remove record %s: %v", rel, err)
		}
		if err := w.store.RemoveDir(ctx, rel); err != nil {
			logging.Error("failed to remove records under %s: %v", rel, err)
		}
		return
	}

	info, err := os.Stat(ev.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// Gone between event and processing.
			if err := w.store.Remove(ctx, rel); err != nil {
				logging.Error("failed to remove record %s: %v", rel, err)
			}
			return
		}
		logging.Warn("failed to stat %s: %v", ev.Path, err)
		return
	}
	if info.IsDir() {
		return
	}

	rec, err := w.store.Get(ctx, rel)
	if err != nil && !errors.Is(err, index.ErrNotFound) {
		logging.Error("failed to load record %s: %v", rel, err)
		return
	}

	switch reduce(rec, ev, info.Size(), info.ModTime()) {
	case ActionIndex:
		if err := w.indexFile(ctx, rel, ev.Path, info, rec == nil); err != nil {
			logging.Error("failed to index %s: %v", rel, err)
		}
	case ActionEnrich:
		w.enrich(ctx, rel, ev.Path, info)
	case ActionRemove:
		if err := w.store.Remove(ctx, rel); err != nil {
			logging.Error("failed to remove record %s: %v", rel, err)
		}
	}
}

// indexFile writes the stat-derived fields, then attempts metadata
// extraction. Extraction failure leaves the record queryable with stat
// fields only; the sweep retries it later.
func (w *Watcher) indexFile(ctx context.Context, rel, absPath string, info fs.FileInfo, isNew bool) error {
	rec := &index.FileRecord{
		Path:         rel,
		Directory:    relDir(rel),
		Name:         filepath.Base(rel),
		Size:         info.Size(),
		MimeType:     mediatypes.MimeOf(mediatypes.Ext(rel)),
		DateModified: info.ModTime(),
	}
	if isNew {
		// Best effort; most filesystems don't expose birth time.
		rec.DateCreated = info.ModTime()
	}

	if err := w.store.Upsert(ctx, rec); err != nil {
		return err
	}
	if !isNew {
		// The previous contents' metadata no longer describes the file, and
		// the upsert alone would keep the old enrichment stamp. Clearing both
		// keeps the path on the sweep's retry list if extraction fails below.
		if err := w.store.ResetEnrichment(ctx, rel); err != nil {
			return err
		}
	}

	w.enrich(ctx, rel, absPath, info)
	return nil
}

func (w *Watcher) enrich(ctx context.Context, rel, absPath string, info fs.FileInfo) {
	meta, err := w.extractors.Extract(ctx, absPath, info)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			metrics.WatcherEnrichmentsTotal.WithLabelValues("unsupported").Inc()
			return
		}
		metrics.WatcherEnrichmentsTotal.WithLabelValues("failure").Inc()
		logging.Warn("metadata extraction failed for %s: %v", rel, err)
		return
	}

	if err := w.store.MergeMetadata(ctx, rel, meta, time.Now()); err != nil {
		metrics.WatcherEnrichmentsTotal.WithLabelValues("failure").Inc()
		logging.Error("failed to merge metadata for %s: %v", rel, err)
		return
	}
	metrics.WatcherEnrichmentsTotal.WithLabelValues("success").Inc()
}

// sweepLoop periodically reconciles index and filesystem: records whose file
// vanished without an event are removed, and records still missing extracted
// metadata are retried.
func (w *Watcher) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	w.redispatchDeferred()

	paths, err := w.store.Paths(ctx)
	if err != nil {
		logging.Error("sweep: failed to list paths: %v", err)
		return
	}
	removed := 0
	for _, rel := range paths {
		if _, err := os.Stat(filepath.Join(w.root, filepath.FromSlash(rel))); os.IsNotExist(err) {
			w.dispatch(Event{Kind: Removed, Path: filepath.Join(w.root, filepath.FromSlash(rel))})
			removed++
		}
	}

	unenriched, err := w.store.UnenrichedPaths(ctx)
	if err != nil {
		logging.Error("sweep: failed to list unenriched paths: %v", err)
		return
	}
	for _, rel := range unenriched {
		w.dispatch(Event{Kind: Changed, Path: filepath.Join(w.root, filepath.FromSlash(rel))})
	}

	if removed > 0 || len(unenriched) > 0 {
		logging.Debug("Sweep queued %d removals, %d enrichment retries", removed, len(unenriched))
	}
}

// redispatchDeferred replays paths parked by dispatch when their shard was
// full. Changed is the right replay kind for any of them: process re-stats
// the path and derives index, enrich, or remove from what it finds. A shard
// still full just parks the path again.
func (w *Watcher) redispatchDeferred() {
	w.deferMu.Lock()
	paths := make([]string, 0, len(w.deferred))
	for p := range w.deferred {
		paths = append(paths, p)
	}
	clear(w.deferred)
	w.deferMu.Unlock()

	for _, p := range paths {
		w.dispatch(Event{Kind: Changed, Path: p})
	}
	if len(paths) > 0 {
		logging.Debug("Sweep replayed %d deferred events", len(paths))
	}
}

// watchRecursive adds fsnotify watches for dir and every subdirectory.
func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Watch skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if isHidden(path) && path != root {
			return filepath.SkipDir
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		if _, exists := w.watched[path]; !exists {
			if err := w.fsw.Add(path); err != nil {
				logging.Warn("failed to watch %s: %v", path, err)
				return nil
			}
			w.watched[path] = struct{}{}
			logging.Debug("Watching directory %s", path)
		}
		return nil
	})
}

// unwatchSubtree drops bookkeeping for a removed directory. The kernel drops
// the actual watches itself; this keeps the map from leaking.
func (w *Watcher) unwatchSubtree(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prefix := path + string(os.PathSeparator)
	for p := range w.watched {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(w.watched, p)
		}
	}
}

// relPath converts an absolute path inside the media root to the
// slash-separated relative form records are keyed by.
func (w *Watcher) relPath(absPath string) (string, error) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s outside media root", absPath)
	}
	return filepath.ToSlash(rel), nil
}

func relDir(rel string) string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		return ""
	}
	return dir
}

func isHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}
