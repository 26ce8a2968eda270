// Package watcher monitors a root's subtree for source-file changes
// and routes them to the owning package's Indexer (spec §4.I).
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wenkaifan0720/ctx/internal/indexer"
	"github.com/wenkaifan0720/ctx/internal/logging"
)

// DebounceWindow coalesces events for the same path (spec §4.I: "the
// last state wins").
const DebounceWindow = 200 * time.Millisecond

var prunedDirNames = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"build": true, "dist": true, "__pycache__": true, ".ctx": true,
}

// Route associates one locally owned package's root with its Indexer,
// so the watcher can forward a changed path to the right per-package
// orchestrator.
type Route struct {
	Root    string
	Indexer *indexer.Indexer
}

// Watcher watches one opened root's entire subtree and dispatches
// create/modify/delete events to the deepest-matching package route.
type Watcher struct {
	root   string
	logger *logging.Logger

	mu     sync.RWMutex
	routes []Route

	dependencyLockFile string
	onDependencyStale  func()

	fsWatcher *fsnotify.Watcher

	debMu     sync.Mutex
	pending   map[string]struct{}
	debouncer *Debouncer

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Watcher rooted at root. dependencyLockFile, when
// non-empty, names the language binding's dependency-lock file (e.g.
// go.sum, package-lock.json); a change to it marks dependencies stale
// instead of being routed to any package (spec §4.I). debounce <= 0
// falls back to DebounceWindow, the project's configured
// CTX_WATCH_DEBOUNCE_MS override otherwise.
func New(root string, logger *logging.Logger, dependencyLockFile string, onDependencyStale func(), debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DebounceWindow
	}
	return &Watcher{
		root:               root,
		logger:             logger,
		dependencyLockFile: dependencyLockFile,
		onDependencyStale:  onDependencyStale,
		pending:            make(map[string]struct{}),
		debouncer:          NewDebouncer(debounce),
	}
}

// SetRoutes replaces the set of package routes the watcher dispatches
// to. ctxcore.Open calls it once, with the packages discovered at open.
func (w *Watcher) SetRoutes(routes []Route) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.routes = append([]Route(nil), routes...)
}

// Start begins watching in a background goroutine. Cancel via Stop.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fw

	if err := addWatchRecursive(fw, w.root); err != nil {
		w.logger.Warn("failed to watch root recursively", map[string]interface{}{
			"root": w.root, "error": err.Error(),
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx)
	return nil
}

// Stop tears down the watcher, discarding any pending debounced event.
func (w *Watcher) Stop() {
	w.debouncer.Cancel()
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	if w.done != nil {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// handleEvent coalesces the event into the debounce window. A rename
// is treated as delete(old)+create(new) simply by letting fsnotify's
// separate Rename/Create events for the two paths flow through
// independently (spec §4.I).
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}

	w.debMu.Lock()
	w.pending[event.Name] = struct{}{}
	w.debMu.Unlock()
	w.debouncer.Trigger(w.flush)
}

func (w *Watcher) flush() {
	w.debMu.Lock()
	paths := w.pending
	w.pending = make(map[string]struct{})
	w.debMu.Unlock()

	for path := range paths {
		w.dispatch(path)
	}
}

func (w *Watcher) dispatch(path string) {
	if w.dependencyLockFile != "" && filepath.Base(path) == w.dependencyLockFile {
		if w.onDependencyStale != nil {
			w.onDependencyStale()
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		w.routeRemove(path)
		return
	}
	if info.IsDir() {
		_ = addWatchRecursive(w.fsWatcher, path)
		return
	}
	w.routeUpdate(path)
}

func (w *Watcher) routeUpdate(path string) {
	route, ok := w.matchRoute(path)
	if !ok {
		return
	}
	if err := route.Indexer.UpdateFile(context.Background(), path); err != nil {
		w.logger.Warn("failed to route file update", map[string]interface{}{
			"path": path, "error": err.Error(),
		})
	}
}

func (w *Watcher) routeRemove(path string) {
	route, ok := w.matchRoute(path)
	if !ok {
		return
	}
	route.Indexer.RemoveFile(path)
}

// matchRoute finds the deepest package root that is a prefix of path
// (spec §4.I: "identify the deepest package whose root is a prefix of
// path; if none, drop").
func (w *Watcher) matchRoute(path string) (Route, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	best := -1
	var bestRoute Route
	found := false
	for _, r := range w.routes {
		if !strings.HasPrefix(path, r.Root) {
			continue
		}
		if len(r.Root) > best {
			best, bestRoute, found = len(r.Root), r, true
		}
	}
	return bestRoute, found
}

// addWatchRecursive adds root and every non-pruned subdirectory to the
// fsnotify watcher.
func addWatchRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if prunedDirNames[info.Name()] {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
