// Package discovery locates packages under a root by walking the
// directory tree breadth-first and matching externally supplied
// marker files (spec §4.D) — ctx itself has no opinion on what a
// "package" looks like in any particular language.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
)

// defaultPrunedDirs are always skipped regardless of binding, on top
// of whatever cache directories the binding itself names.
var defaultPrunedDirs = map[string]bool{
	".git":         true,
	"build":        true,
	"node_modules": true,
}

// Package is one discovered package: a human-readable name and its
// root directory (the discovery root joined with any subdirectories,
// not made relative to it).
type Package struct {
	Name string
	Path string
}

// Marker names one file whose presence in a directory identifies it
// as a package root (e.g. "go.mod" for Go, "package.json" for
// npm/TypeScript), and the name of the language it stands for.
type Marker struct {
	FileName string
	Language string
}

// Options configures one discovery run.
type Options struct {
	Markers    []Marker
	PrunedDirs []string // additional directory names to prune, e.g. vendor caches
}

// Discover walks root breadth-first, descending into every directory
// except pruned ones, and returns one Package per directory containing
// a marker file. Discovery does not descend into a discovered
// package's own subdirectories — nested manifests name nested
// packages, not the same one twice.
//
// The result is idempotent and path-sorted for determinism (spec
// §4.D): running Discover twice against an unchanged tree yields the
// same slice.
func Discover(root string, opts Options) ([]Package, error) {
	pruned := map[string]bool{}
	for k, v := range defaultPrunedDirs {
		pruned[k] = v
	}
	for _, d := range opts.PrunedDirs {
		pruned[d] = true
	}

	var packages []Package
	type queued struct{ dir string }
	queue := []queued{{dir: root}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur.dir)
		if err != nil {
			continue // unreadable directory: skip, don't fail the whole walk
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		if matchesMarker(entries, opts.Markers) {
			rel, err := filepath.Rel(root, cur.dir)
			if err != nil {
				rel = cur.dir
			}
			packages = append(packages, Package{
				Name: packageName(cur.dir, rel),
				Path: cur.dir,
			})
			continue // don't descend into a discovered package's subtree
		}

		var subdirs []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if pruned[e.Name()] {
				continue
			}
			subdirs = append(subdirs, filepath.Join(cur.dir, e.Name()))
		}
		sort.Strings(subdirs)
		for _, sd := range subdirs {
			queue = append(queue, queued{dir: sd})
		}
	}

	sort.Slice(packages, func(i, j int) bool { return packages[i].Path < packages[j].Path })
	return packages, nil
}

func matchesMarker(entries []os.DirEntry, markers []Marker) bool {
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, m := range markers {
			if e.Name() == m.FileName {
				return true
			}
		}
	}
	return false
}

func packageName(dir, rel string) string {
	if rel == "." || rel == "" {
		return filepath.Base(dir)
	}
	return filepath.Base(rel)
}
