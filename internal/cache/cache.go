// Package cache durably serializes a package's ScipIndex plus a
// manifest of per-file content hashes, so a cold start can skip
// re-indexing files that haven't changed (spec §4.C).
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
	"github.com/wenkaifan0720/ctx/internal/scip"
)

// SchemaVersion and IndexerVersion are the compiled-in constants
// checked against a loaded manifest. Either mismatching forces a full
// rebuild (spec §4.C) — this is an expected event after an upgrade,
// not a user-facing error.
const (
	SchemaVersion  = 1
	IndexerVersion = "ctx-indexer/1"
)

const (
	indexFileName    = "index.scip.gob"
	manifestFileName = "manifest.json"
)

// Manifest maps each tracked file to the SHA-256 of its last-indexed
// contents, plus the version stamps used to detect skew.
type Manifest struct {
	SchemaVersion  int               `json:"schemaVersion"`
	IndexerVersion string            `json:"indexerVersion"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	Hashes         map[string]string `json:"hashes"`
}

// LoadResult is what Load returns: the rebuilt index, and the paths
// that need re-indexing or removal before the package is considered
// up to date.
type LoadResult struct {
	Documents []scip.Document
	Stale     []string
	Removed   []string
}

// Dir returns <packageRoot>/.ctx, the on-disk location for a local
// package's cache (spec §4.C).
func Dir(packageRoot string) string {
	return filepath.Join(packageRoot, ".ctx")
}

// HashFile computes the SHA-256 of a file's contents, hex-encoded.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Load reads the manifest and serialized documents under dir. A
// missing cache, a version mismatch, or a corrupt manifest are all
// reported as a cold start (no documents, every enumerated path
// listed under Stale) rather than surfaced as an error — cache
// invalidation is silent by design (spec §7).
func Load(dir string, enumeratedFiles []string) (*LoadResult, error) {
	manifest, err := readManifest(dir)
	if err != nil || manifest == nil {
		return &LoadResult{Stale: append([]string(nil), enumeratedFiles...)}, nil
	}

	if manifest.SchemaVersion != SchemaVersion || manifest.IndexerVersion != IndexerVersion {
		return &LoadResult{Stale: append([]string(nil), enumeratedFiles...)}, nil
	}

	docs, err := readDocuments(dir)
	if err != nil {
		return &LoadResult{Stale: append([]string(nil), enumeratedFiles...)}, nil
	}

	docByPath := make(map[string]scip.Document, len(docs))
	for _, d := range docs {
		docByPath[d.RelativePath] = d
	}

	enumerated := make(map[string]struct{}, len(enumeratedFiles))
	for _, f := range enumeratedFiles {
		enumerated[f] = struct{}{}
	}

	result := &LoadResult{}
	for path, hash := range manifest.Hashes {
		if _, present := enumerated[path]; !present {
			result.Removed = append(result.Removed, path)
			continue
		}
		currentHash, err := HashFile(path)
		if err != nil || currentHash != hash {
			result.Stale = append(result.Stale, path)
			continue
		}
		if doc, ok := docByPath[path]; ok {
			result.Documents = append(result.Documents, doc)
		} else {
			result.Stale = append(result.Stale, path)
		}
	}

	for _, f := range enumeratedFiles {
		if _, tracked := manifest.Hashes[f]; !tracked {
			result.Stale = append(result.Stale, f)
		}
	}

	sort.Strings(result.Stale)
	sort.Strings(result.Removed)
	sort.Slice(result.Documents, func(i, j int) bool {
		return result.Documents[i].RelativePath < result.Documents[j].RelativePath
	})
	return result, nil
}

// Save atomically writes the full set of documents and a fresh
// manifest to dir: serialize to a tempfile, then rename, so a crash
// mid-write never leaves a half-written cache (spec §4.C).
func Save(dir string, docs []scip.Document) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrConfiguration, "failed to create cache directory", err)
	}

	hashes := make(map[string]string, len(docs))
	for _, d := range docs {
		hash, err := HashFile(d.RelativePath)
		if err != nil {
			continue // file vanished between index and save; next load re-stales it
		}
		hashes[d.RelativePath] = hash
	}

	manifest := Manifest{
		SchemaVersion:  SchemaVersion,
		IndexerVersion: IndexerVersion,
		GeneratedAt:    time.Now(),
		Hashes:         hashes,
	}

	if err := writeAtomic(filepath.Join(dir, indexFileName), func(w *bytes.Buffer) error {
		return gob.NewEncoder(w).Encode(docs)
	}); err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrTransientIO, "failed to save index cache", err)
	}

	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrTransientIO, "failed to marshal cache manifest", err)
	}
	if err := writeAtomic(filepath.Join(dir, manifestFileName), func(w *bytes.Buffer) error {
		_, err := w.Write(body)
		return err
	}); err != nil {
		return ctxerrors.Wrap(ctxerrors.ErrTransientIO, "failed to save cache manifest", err)
	}

	return nil
}

func writeAtomic(path string, encode func(w *bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := encode(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// LoadExternal reads a shared external package's cached documents
// verbatim, with no hash reconciliation against a local source tree —
// external caches (sdk/framework/hosted/git) are read-only snapshots,
// not re-scanned on every open (spec §4.C, §4.F).
func LoadExternal(dir string) ([]scip.Document, error) {
	manifest, err := readManifest(dir)
	if err != nil || manifest == nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrCacheInvalidation, "no external cache found at "+dir, err)
	}
	if manifest.SchemaVersion != SchemaVersion {
		return nil, ctxerrors.New(ctxerrors.ErrCacheInvalidation, "external cache schema version mismatch at "+dir)
	}
	return readDocuments(dir)
}

func readManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("corrupt cache manifest: %w", err)
	}
	return &m, nil
}

func readDocuments(dir string) ([]scip.Document, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, err
	}
	var docs []scip.Document
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&docs); err != nil {
		return nil, fmt.Errorf("corrupt index cache: %w", err)
	}
	return docs, nil
}
