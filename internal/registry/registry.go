// Package registry aggregates many ScipIndex instances — the packages
// discovered locally under a root plus whatever external indexes
// (SDK, framework, hosted, git) have been attached — behind one
// logical "definition/references/callers" contract (spec §4.F).
package registry

import (
	"sort"
	"strings"

	"github.com/wenkaifan0720/ctx/internal/cache"
	"github.com/wenkaifan0720/ctx/internal/discovery"
	"github.com/wenkaifan0720/ctx/internal/scip"
	"github.com/wenkaifan0720/ctx/internal/scipindex"
)

// externalOrder is the stable probing order for attached external
// indexes, per spec §4.F.
var externalOrder = []cache.Origin{cache.OriginSDK, cache.OriginFramework, cache.OriginHosted, cache.OriginGit}

// LocalPackage is one locally owned package: its discovery metadata
// plus its live index.
type LocalPackage struct {
	Package discovery.Package
	Index   *scipindex.Index
}

// Registry owns every local package's index (in discovery order) and
// holds read-only references to shared external indexes, tagged by
// origin. It never mutates an external index.
type Registry struct {
	RootPath string

	local    []LocalPackage
	external map[cache.Origin][]*scipindex.Index

	// DependenciesStale is set by the watcher when a dependency-lock
	// file changes; cleared only by an explicit LoadDependencies/refresh
	// (spec §4.I: "not handled by the watcher itself").
	DependenciesStale bool
}

// New constructs an empty Registry rooted at rootPath.
func New(rootPath string) *Registry {
	return &Registry{
		RootPath: rootPath,
		external: make(map[cache.Origin][]*scipindex.Index),
	}
}

// AddLocal registers a locally owned package in discovery order.
func (r *Registry) AddLocal(pkg discovery.Package, idx *scipindex.Index) {
	r.local = append(r.local, LocalPackage{Package: pkg, Index: idx})
}

// AttachExternal registers a shared, read-only external index under an
// origin category.
func (r *Registry) AttachExternal(origin cache.Origin, idx *scipindex.Index) {
	r.external[origin] = append(r.external[origin], idx)
}

// allIndexesInOrder returns every index this registry can consult,
// local packages first (in discovery order), then externals in the
// fixed sdk/framework/hosted/git order (spec §4.F).
func (r *Registry) allIndexesInOrder() []*scipindex.Index {
	out := make([]*scipindex.Index, 0, len(r.local))
	for _, lp := range r.local {
		out = append(out, lp.Index)
	}
	for _, origin := range externalOrder {
		out = append(out, r.external[origin]...)
	}
	return out
}

// GetSymbol probes local packages first, then externals in stable
// order, returning the first match.
func (r *Registry) GetSymbol(id string) (scip.SymbolInfo, bool) {
	for _, idx := range r.allIndexesInOrder() {
		if sym, ok := idx.GetSymbol(id); ok {
			return sym, true
		}
	}
	return scip.SymbolInfo{}, false
}

// FindDefinition returns the definition for id; local definitions
// always win over external ones regardless of discovery order (spec
// §4.F).
func (r *Registry) FindDefinition(id string) (scip.OccurrenceInfo, bool) {
	for _, lp := range r.local {
		if occ, ok := lp.Index.FindDefinition(id); ok {
			return occ, true
		}
	}
	for _, origin := range externalOrder {
		for _, idx := range r.external[origin] {
			if occ, ok := idx.FindDefinition(id); ok {
				return occ, true
			}
		}
	}
	return scip.OccurrenceInfo{}, false
}

// TaggedOccurrence pairs an occurrence with the root of the index that
// produced it, so a caller can resolve the file path unambiguously
// across packages (spec §4.F: "results are tagged with their source
// root").
type TaggedOccurrence struct {
	Occurrence scip.OccurrenceInfo
	SourceRoot string
}

// FindAllReferences unions references across every attached index.
func (r *Registry) FindAllReferences(id string) []TaggedOccurrence {
	var out []TaggedOccurrence
	for _, lp := range r.local {
		for _, occ := range lp.Index.FindReferences(id) {
			out = append(out, TaggedOccurrence{Occurrence: occ, SourceRoot: lp.Package.Path})
		}
	}
	for _, origin := range externalOrder {
		for _, idx := range r.external[origin] {
			for _, occ := range idx.FindReferences(id) {
				out = append(out, TaggedOccurrence{Occurrence: occ, SourceRoot: string(origin)})
			}
		}
	}
	return out
}

// FindSymbols unions find_symbols results across every index,
// de-duplicated by symbol ID.
func (r *Registry) FindSymbols(pattern string) []scip.SymbolInfo {
	seen := make(map[string]struct{})
	var out []scip.SymbolInfo
	for _, idx := range r.allIndexesInOrder() {
		for _, sym := range idx.FindSymbols(pattern) {
			if _, dup := seen[sym.Symbol]; dup {
				continue
			}
			seen[sym.Symbol] = struct{}{}
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// resolveNameToIDs finds every symbol ID matching name exactly
// (case-insensitive), across every attached index — the first step of
// the two-step name-based lookups.
func (r *Registry) resolveNameToIDs(name string) []string {
	lname := strings.ToLower(name)
	seen := make(map[string]struct{})
	var ids []string
	for _, idx := range r.allIndexesInOrder() {
		for _, sym := range idx.FindSymbols(name) {
			if strings.ToLower(sym.Name) != lname {
				continue
			}
			if _, dup := seen[sym.Symbol]; dup {
				continue
			}
			seen[sym.Symbol] = struct{}{}
			ids = append(ids, sym.Symbol)
		}
	}
	return ids
}

// FindAllCallersByName resolves name to symbol IDs in every index,
// then aggregates callers across every index (spec §4.F).
func (r *Registry) FindAllCallersByName(name string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range r.resolveNameToIDs(name) {
		for _, idx := range r.allIndexesInOrder() {
			for _, caller := range idx.CallersOf(id) {
				if _, dup := seen[caller]; dup {
					continue
				}
				seen[caller] = struct{}{}
				out = append(out, caller)
			}
		}
	}
	sort.Strings(out)
	return out
}

// FindAllReferencesByName resolves name to symbol IDs (optionally
// filtered by kind), then aggregates references across every index.
func (r *Registry) FindAllReferencesByName(name string, kind *scip.Kind) []TaggedOccurrence {
	var out []TaggedOccurrence
	for _, id := range r.resolveNameToIDs(name) {
		if kind != nil {
			sym, ok := r.GetSymbol(id)
			if !ok || sym.Kind != *kind {
				continue
			}
		}
		out = append(out, r.FindAllReferences(id)...)
	}
	return out
}

// Stats aggregates file/symbol/occurrence/relationship counts across
// every local package, for the façade's stats() operation.
type Stats struct {
	Files         int
	Symbols       int
	Occurrences   int
	Relationships int
	Packages      int
}

// Stats sums local-package stats (external indexes aren't counted —
// they're shared, not owned).
func (r *Registry) Stats() Stats {
	var s Stats
	s.Packages = len(r.local)
	for _, lp := range r.local {
		st := lp.Index.Stats()
		s.Files += st.Files
		s.Symbols += st.Symbols
		s.Occurrences += st.Occurrences
		s.Relationships += st.Relationships
	}
	return s
}

// LocalPackages exposes the registry's owned packages in discovery
// order, for projection and diagnostics.
func (r *Registry) LocalPackages() []LocalPackage {
	return append([]LocalPackage(nil), r.local...)
}

// Indexes exposes every index this registry consults, local packages
// first then externals in stable order — the enumeration the
// projection's rebuild algorithm walks (spec §4.G: "for each
// SymbolInfo from every index").
func (r *Registry) Indexes() []*scipindex.Index {
	return r.allIndexesInOrder()
}
