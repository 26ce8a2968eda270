// Package ctxcore wires components A through I behind one façade: the
// Context the spec calls out as "open a root, get a queryable SQL view
// of every package under it, stay current as files change" (spec
// §4.J).
package ctxcore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wenkaifan0720/ctx/internal/cache"
	"github.com/wenkaifan0720/ctx/internal/config"
	"github.com/wenkaifan0720/ctx/internal/discovery"
	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
	"github.com/wenkaifan0720/ctx/internal/indexer"
	"github.com/wenkaifan0720/ctx/internal/logging"
	"github.com/wenkaifan0720/ctx/internal/produce"
	"github.com/wenkaifan0720/ctx/internal/projection"
	"github.com/wenkaifan0720/ctx/internal/registry"
	"github.com/wenkaifan0720/ctx/internal/scip"
	"github.com/wenkaifan0720/ctx/internal/scipindex"
	"github.com/wenkaifan0720/ctx/internal/sqlexec"
	"github.com/wenkaifan0720/ctx/internal/watcher"
)

// disposeGrace bounds how long dispose waits for in-flight indexer
// work before dropping it (spec §5: "2-second grace window").
const disposeGrace = 2 * time.Second

// LanguageBinding names one external SCIP producer the core can route
// discovered packages to. The core has no opinion on languages; a
// binding is supplied entirely by the caller (spec §1: "depends on
// SCIP bytes obtained through a LanguageBinding record, not on any
// particular indexer").
type LanguageBinding struct {
	Marker             discovery.Marker
	Producer           indexer.Producer
	DependencyLockFile string // e.g. "go.sum", "package-lock.json"; "" if none
}

// BindingsFromConfig builds LanguageBindings from a project's
// <root>/.ctx/config.json registrations, wiring each to a
// SubprocessProducer (spec §9: "the core depends only on this
// record; no language code lives in the core").
func BindingsFromConfig(cfgBindings []config.BindingConfig) []LanguageBinding {
	out := make([]LanguageBinding, 0, len(cfgBindings))
	for _, b := range cfgBindings {
		out = append(out, LanguageBinding{
			Marker:             discovery.Marker{FileName: b.MarkerFile, Language: b.Language},
			Producer:           produce.NewSubprocessProducer(b.Command, b.Args, b.Extensions),
			DependencyLockFile: b.DependencyLockFile,
		})
	}
	return out
}

// OpenOptions configures Open.
type OpenOptions struct {
	Bindings         []LanguageBinding
	Watch            bool
	UseCache         bool
	LoadDependencies bool
	Logger           *logging.Logger // optional; defaults to a logger built from the root's logging config
}

// Context is one opened root: its discovered packages, their
// indexers, the registry aggregating them, the SQL projection, and
// (optionally) the file watcher keeping all of it current.
type Context struct {
	root   string
	cfg    *config.Config
	logger *logging.Logger

	registry *registry.Registry
	db       *projection.DB
	watcher  *watcher.Watcher

	bindings map[string]LanguageBinding // language -> binding, for refresh

	mu       sync.Mutex // serializes rebuild_sql_index calls
	indexers []namedIndexer
	locks    []*cache.Lock

	updates chan Update
}

type namedIndexer struct {
	pkg discovery.Package
	ix  *indexer.Indexer
}

// Update is one event on the façade's merged broadcast stream.
type Update struct {
	PackageRoot string
	indexer.Update
}

// Open discovers every package under root matching a supplied binding,
// opens its indexer, assembles the registry, and (if opts.Watch) starts
// watching the subtree. It also performs one initial rebuild_sql_index
// so the SQL store reflects the opened state immediately.
func Open(root string, opts OpenOptions) (*Context, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to load configuration", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(logging.Config{
			Format: logging.Format(cfg.Logging.Format),
			Level:  logging.LogLevel(cfg.Logging.Level),
		})
	}

	markers := make([]discovery.Marker, 0, len(opts.Bindings))
	bindingByLanguage := make(map[string]LanguageBinding, len(opts.Bindings))
	for _, b := range opts.Bindings {
		markers = append(markers, b.Marker)
		bindingByLanguage[b.Marker.Language] = b
	}

	packages, err := discovery.Discover(root, discovery.Options{Markers: markers})
	if err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "package discovery failed", err)
	}

	reg := registry.New(root)

	c := &Context{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		bindings: bindingByLanguage,
		updates:  make(chan Update, 256),
	}

	for _, pkg := range packages {
		binding, ok := resolveBinding(pkg, bindingByLanguage)
		if !ok {
			logger.Warn("no language binding for discovered package", map[string]interface{}{
				"path": pkg.Path, "name": pkg.Name,
			})
			continue
		}

		lock, err := cache.AcquireLock(cache.Dir(pkg.Path))
		if err != nil {
			logger.Warn("failed to acquire cache lock, skipping package", map[string]interface{}{
				"path": pkg.Path, "error": err.Error(),
			})
			continue
		}
		c.locks = append(c.locks, lock)

		ix := indexer.New(pkg.Path, binding.Producer, indexer.Options{
			UseCache:       opts.UseCache,
			CacheIdleDelay: time.Duration(cfg.CacheIdleSaveMs) * time.Millisecond,
		})
		if err := ix.Open(context.Background()); err != nil {
			return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to open indexer for "+pkg.Path, err)
		}

		reg.AddLocal(pkg, ix.Index)
		c.indexers = append(c.indexers, namedIndexer{pkg: pkg, ix: ix})
		go c.relayUpdates(pkg, ix)
	}

	cacheRoot, err := cfg.CacheRoot()
	if err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to resolve cache root", err)
	}
	if opts.LoadDependencies {
		if err := c.loadExternalIndexes(cacheRoot); err != nil {
			logger.Warn("failed to load dependency indexes", map[string]interface{}{"error": err.Error()})
		}
	}

	db, err := projection.Open(filepath.Join(root, ".ctx"), logger)
	if err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to open SQL projection", err)
	}
	c.db = db

	if err := c.RebuildSQLIndex(); err != nil {
		return nil, err
	}

	if opts.Watch {
		w := watcher.New(root, logger, primaryLockFile(opts.Bindings), func() {
			reg.DependenciesStale = true
			token := uuid.NewString()
			logger.Info("dependencies may be stale", map[string]interface{}{"token": token})
		}, time.Duration(cfg.WatchDebounceMs)*time.Millisecond)
		routes := make([]watcher.Route, 0, len(c.indexers))
		for _, ni := range c.indexers {
			routes = append(routes, watcher.Route{Root: ni.pkg.Path, Indexer: ni.ix})
		}
		w.SetRoutes(routes)
		if err := w.Start(); err != nil {
			return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to start watcher", err)
		}
		c.watcher = w
	}

	return c, nil
}

// resolveBinding matches a discovered package to the binding whose
// marker file is present in the package's root.
func resolveBinding(pkg discovery.Package, bindings map[string]LanguageBinding) (LanguageBinding, bool) {
	for _, b := range bindings {
		if markerPresent(pkg.Path, b.Marker.FileName) {
			return b, true
		}
	}
	return LanguageBinding{}, false
}

func markerPresent(dir, fileName string) bool {
	_, err := os.Stat(filepath.Join(dir, fileName))
	return err == nil
}

// primaryLockFile picks the first non-empty dependency lock file among
// the bindings. It is the only lock file the watcher matches; lock
// files named by later bindings do not mark dependencies stale.
func primaryLockFile(bindings []LanguageBinding) string {
	for _, b := range bindings {
		if b.DependencyLockFile != "" {
			return b.DependencyLockFile
		}
	}
	return ""
}

func (c *Context) relayUpdates(pkg discovery.Package, ix *indexer.Indexer) {
	for u := range ix.Subscribe() {
		select {
		case c.updates <- Update{PackageRoot: pkg.Path, Update: u}:
		default: // non-blocking broadcast; slow consumers drop updates (spec §4.E)
		}
		c.autoRebuild()
	}
}

// autoRebuild triggers rebuild_sql_index after any update, as spec
// §4.J requires ("triggered automatically after any update").
func (c *Context) autoRebuild() {
	if err := c.RebuildSQLIndex(); err != nil {
		c.logger.Error("automatic SQL rebuild failed", map[string]interface{}{"error": err.Error()})
	}
}

// Updates exposes the merged broadcast stream across every indexer.
func (c *Context) Updates() <-chan Update {
	return c.updates
}

// SQL runs a read-only query against the projection (spec §4.H).
func (c *Context) SQL(query string, params ...interface{}) (*sqlexec.Result, error) {
	return sqlexec.ExecuteWithCap(c.db.Conn(), c.cfg.RowCap, query, params...)
}

// RebuildSQLIndex re-materializes the three-table projection from
// every registered index. Safe to call directly; also invoked
// automatically after each update.
func (c *Context) RebuildSQLIndex() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Rebuild(c.registry)
}

// RefreshFile re-indexes one file through its owning package's
// indexer, exactly as the watcher would.
func (c *Context) RefreshFile(path string) error {
	for _, ni := range c.indexers {
		if filepathHasPrefix(path, ni.pkg.Path) {
			if err := ni.ix.UpdateFile(context.Background(), path); err != nil {
				return err
			}
			return c.RebuildSQLIndex()
		}
	}
	return fmt.Errorf("no package owns %s", path)
}

// RefreshAll re-runs Open on every local package's indexer (which
// reuses its cache when UseCache was set) and rebuilds the projection.
func (c *Context) RefreshAll() error {
	for _, ni := range c.indexers {
		if err := ni.ix.Open(context.Background()); err != nil {
			return err
		}
	}
	return c.RebuildSQLIndex()
}

// LoadDependencies (re)loads external SDK/framework/hosted/git indexes
// and clears the registry's DependenciesStale flag (spec §4.I: "an
// explicit refresh is required to reload external indexes").
func (c *Context) LoadDependencies() error {
	cacheRoot, err := c.cfg.CacheRoot()
	if err != nil {
		return err
	}
	if err := c.loadExternalIndexes(cacheRoot); err != nil {
		return err
	}
	c.registry.DependenciesStale = false
	return c.RebuildSQLIndex()
}

// loadExternalIndexes is a documented extension point: ctx ships no
// dependency resolver of its own (spec §1's scope is SCIP ingestion,
// not package management), so a real binding supplies external caches
// by calling AttachExternalCache directly. Absent that, this is a
// no-op.
func (c *Context) loadExternalIndexes(cacheRoot string) error {
	_ = cacheRoot
	return nil
}

// AttachExternalCache loads a previously cached external index (SDK,
// framework, hosted, or git dependency) from disk and attaches it to
// the registry read-only.
func (c *Context) AttachExternalCache(origin cache.Origin, key string) error {
	dir := cache.ExternalDir(c.rootCacheDir(), origin, key)
	docs, err := cache.LoadExternal(dir)
	if err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to load external cache "+key, err)
	}
	idx := newExternalIndex(docs)
	c.registry.AttachExternal(origin, idx)
	return c.RebuildSQLIndex()
}

func (c *Context) rootCacheDir() string {
	root, err := c.cfg.CacheRoot()
	if err != nil {
		return filepath.Join(c.root, ".ctx")
	}
	return root
}

// Stats reports aggregate counts across every locally owned package.
func (c *Context) Stats() registry.Stats {
	return c.registry.Stats()
}

// Dispose stops the watcher, lets in-flight indexer work finish inside
// a grace window, flushes every indexer's pending cache save, releases
// cache locks, and closes the SQL connection (spec §4.J, §5).
func (c *Context) Dispose() {
	if c.watcher != nil {
		c.watcher.Stop()
	}

	done := make(chan struct{})
	go func() {
		for _, ni := range c.indexers {
			ni.ix.Close()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(disposeGrace):
		c.logger.Warn("dispose grace window expired with indexer work still pending", nil)
	}

	for _, l := range c.locks {
		l.Release()
	}
	if c.db != nil {
		c.db.Close()
	}
}

// newExternalIndex builds a read-only in-memory index from a loaded
// external cache's documents, for AttachExternalCache.
func newExternalIndex(docs []scip.Document) *scipindex.Index {
	idx := scipindex.New()
	for _, doc := range docs {
		idx.UpdateDocument(doc)
	}
	return idx
}

func filepathHasPrefix(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !hasDotDotPrefix(rel)
}

func hasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}
