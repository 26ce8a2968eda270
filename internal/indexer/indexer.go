// Package indexer implements the per-package orchestrator: initial
// index construction from cache plus upstream SCIP production,
// incremental single-file updates, and debounced cache persistence
// (spec §4.E).
package indexer

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wenkaifan0720/ctx/internal/cache"
	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
	"github.com/wenkaifan0720/ctx/internal/scip"
	"github.com/wenkaifan0720/ctx/internal/scipindex"
)

// Producer is the narrow upstream collaborator spec §1 calls
// `produce_scip(package_root) -> bytes`: a language-specific SCIP
// indexer binary or library, supplied externally.
type Producer interface {
	ProduceFile(ctx context.Context, packageRoot, relativePath string) ([]byte, error)
	Extensions() []string
}

// UpdateKind distinguishes the three broadcast event shapes spec §4.E
// names.
type UpdateKind string

const (
	UpdateInitial UpdateKind = "initial"
	UpdateFile    UpdateKind = "file_updated"
	UpdateError   UpdateKind = "index_error"
)

// Update is one event on an Indexer's broadcast stream.
type Update struct {
	Kind        UpdateKind
	Path        string
	FileCount   int
	SymbolCount int
	Message     string
}

const (
	retryBaseDelay = 100 * time.Millisecond
	retryMaxAttempts = 3
)

// Options configures an Indexer.
type Options struct {
	UseCache        bool
	CacheIdleDelay  time.Duration // default 500ms per spec §4.E
	WorkerCount     int           // default num_cpus
}

// Indexer owns one package's ScipIndex, its on-disk cache, and a
// bounded broadcast stream of update events.
type Indexer struct {
	root     string
	producer Producer
	opts     Options

	Index *scipindex.Index

	mu          sync.Mutex
	fileHashes  map[string]string
	cacheDir    string
	cacheDirty  bool
	saveTimer   *time.Timer

	subsMu sync.Mutex
	subs   []chan Update
}

// New constructs an Indexer rooted at packageRoot.
func New(packageRoot string, producer Producer, opts Options) *Indexer {
	if opts.CacheIdleDelay == 0 {
		opts.CacheIdleDelay = 500 * time.Millisecond
	}
	if opts.WorkerCount == 0 {
		opts.WorkerCount = runtime.NumCPU()
	}
	return &Indexer{
		root:       packageRoot,
		producer:   producer,
		opts:       opts,
		Index:      scipindex.New(),
		fileHashes: make(map[string]string),
		cacheDir:   cache.Dir(packageRoot),
	}
}

// Subscribe registers a new receiver on the broadcast stream. Callers
// must drain it; Indexer sends are non-blocking and drop updates for
// slow subscribers rather than stall indexing.
func (ix *Indexer) Subscribe() <-chan Update {
	ch := make(chan Update, 64)
	ix.subsMu.Lock()
	ix.subs = append(ix.subs, ch)
	ix.subsMu.Unlock()
	return ch
}

func (ix *Indexer) publish(u Update) {
	ix.subsMu.Lock()
	defer ix.subsMu.Unlock()
	for _, ch := range ix.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Open runs the seven-step open protocol from spec §4.E: load cache,
// enumerate files, reindex what's stale or new, drop what's gone,
// save, and emit InitialIndexUpdate.
func (ix *Indexer) Open(ctx context.Context) error {
	enumerated, err := ix.enumerateFiles()
	if err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to enumerate source files", err)
	}

	var toReindex, toRemove []string
	if ix.opts.UseCache {
		result, err := cache.Load(ix.cacheDir, enumerated)
		if err != nil {
			return err
		}
		for _, doc := range result.Documents {
			abs := doc.RelativePath
			if hash, herr := cache.HashFile(abs); herr == nil {
				ix.fileHashes[abs] = hash
			}
			if rel, rerr := filepath.Rel(ix.root, abs); rerr == nil {
				doc.RelativePath = rel
			}
			ix.Index.UpdateDocument(doc)
		}
		toReindex = result.Stale
		toRemove = result.Removed
	} else {
		toReindex = enumerated
	}

	sort.Strings(toReindex)
	if err := ix.reindexFiles(ctx, toReindex); err != nil {
		return err
	}
	for _, path := range toRemove {
		rel, rerr := filepath.Rel(ix.root, path)
		if rerr != nil {
			rel = path
		}
		ix.Index.RemoveDocument(rel)
		ix.mu.Lock()
		delete(ix.fileHashes, path)
		ix.mu.Unlock()
	}

	if err := ix.saveCacheNow(); err != nil {
		return err
	}

	stats := ix.Index.Stats()
	ix.publish(Update{Kind: UpdateInitial, FileCount: stats.Files, SymbolCount: stats.Symbols})
	return nil
}

func (ix *Indexer) enumerateFiles() ([]string, error) {
	exts := make(map[string]bool)
	for _, e := range ix.producer.Extensions() {
		exts[e] = true
	}
	return walkSourceFiles(ix.root, exts)
}

// reindexFiles re-produces SCIP for each stale/new path, bounded by a
// worker pool sized to opts.WorkerCount (spec §5: "parallelize per-file
// SCIP production across CPU cores using a bounded worker pool").
func (ix *Indexer) reindexFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.WorkerCount)

	var mu sync.Mutex
	var firstErr error

	for _, p := range paths {
		path := p
		g.Go(func() error {
			doc, err := ix.produceAndDecode(gctx, path)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				ix.publish(Update{Kind: UpdateError, Path: path, Message: err.Error()})
				return nil // per-file errors are contained, not fatal (spec §7)
			}
			ix.Index.UpdateDocument(*doc)
			if hash, herr := cache.HashFile(path); herr == nil {
				ix.mu.Lock()
				ix.fileHashes[path] = hash
				ix.mu.Unlock()
			}
			return nil
		})
	}

	return g.Wait()
}

// produceAndDecode calls the upstream producer with retry-with-backoff
// for transient I/O failures (spec §7: base 100ms, max 3 attempts).
func (ix *Indexer) produceAndDecode(ctx context.Context, path string) (*scip.Document, error) {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		rel = path
	}

	var lastErr error
	for attempt := 0; attempt < retryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		data, err := ix.producer.ProduceFile(ctx, ix.root, rel)
		if err != nil {
			lastErr = ctxerrors.Wrap(ctxerrors.ErrTransientIO, "SCIP production failed for "+rel, err)
			continue
		}

		doc, err := scip.DecodeDocument(data)
		if err != nil {
			return nil, ctxerrors.Wrap(ctxerrors.ErrScipProduction, "failed to decode SCIP output for "+rel, err)
		}
		doc.RelativePath = rel
		return doc, nil
	}
	return nil, lastErr
}

// UpdateFile implements incremental single-file re-indexing (spec
// §4.E). A hash match is a no-op; otherwise the document is replaced
// and the cache save is debounced to the configured idle window.
func (ix *Indexer) UpdateFile(ctx context.Context, path string) error {
	hash, err := cache.HashFile(path)
	if err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrTransientIO, "failed to hash "+path, err)
	}

	ix.mu.Lock()
	unchanged := ix.fileHashes[path] == hash
	ix.mu.Unlock()
	if unchanged {
		return nil
	}

	doc, err := ix.produceAndDecode(ctx, path)
	if err != nil {
		ix.publish(Update{Kind: UpdateError, Path: path, Message: err.Error()})
		return nil
	}

	ix.Index.UpdateDocument(*doc)
	ix.mu.Lock()
	ix.fileHashes[path] = hash
	ix.mu.Unlock()

	ix.scheduleSave()
	ix.publish(Update{Kind: UpdateFile, Path: path})
	return nil
}

// RemoveFile retracts a deleted file's contributions immediately.
func (ix *Indexer) RemoveFile(path string) {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		rel = path
	}
	ix.Index.RemoveDocument(rel)
	ix.mu.Lock()
	delete(ix.fileHashes, path)
	ix.mu.Unlock()
	ix.scheduleSave()
	ix.publish(Update{Kind: UpdateFile, Path: path})
}

// scheduleSave debounces a cache save to opts.CacheIdleDelay after the
// last mutation (spec §4.E: "debounce and save cache after an idle
// window of ~500 ms").
func (ix *Indexer) scheduleSave() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.cacheDirty = true
	if ix.saveTimer != nil {
		ix.saveTimer.Stop()
	}
	ix.saveTimer = time.AfterFunc(ix.opts.CacheIdleDelay, func() {
		_ = ix.saveCacheNow()
	})
}

func (ix *Indexer) saveCacheNow() error {
	ix.mu.Lock()
	ix.cacheDirty = false
	ix.mu.Unlock()
	docs := ix.Index.Documents()
	for i := range docs {
		docs[i].RelativePath = filepath.Join(ix.root, docs[i].RelativePath)
	}
	return cache.Save(ix.cacheDir, docs)
}

// Close flushes any pending cache save. It is infallible to the
// caller (spec §7: shutdown errors are logged, never returned).
func (ix *Indexer) Close() {
	ix.mu.Lock()
	dirty := ix.cacheDirty
	if ix.saveTimer != nil {
		ix.saveTimer.Stop()
	}
	ix.mu.Unlock()
	if dirty {
		_ = ix.saveCacheNow()
	}
}
