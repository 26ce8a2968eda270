// Package scipindex maintains the mutable, per-package in-memory
// index over a set of SCIP documents: symbols, occurrences, and the
// derived lookup maps that give O(1) access by ID, by file, and by
// lowercase name prefix.
package scipindex

import (
	"sort"
	"strings"
	"sync"

	"github.com/wenkaifan0720/ctx/internal/scip"
)

// Stats summarizes the current contents of an Index.
type Stats struct {
	Files         int
	Symbols       int
	Occurrences   int
	Relationships int
}

// fileEntry tracks which symbols and occurrences a single document
// contributed, so update_document/remove_document can surgically
// retract exactly that document's contributions.
type fileEntry struct {
	doc            scip.Document
	symbolIDs      []string
	occurrenceRefs []string // symbol IDs that gained a non-def occurrence from this file
}

// Index is a single package's ScipIndex: a set of documents plus the
// derived maps spec §3/§4.B describe. The zero value is not usable;
// construct with New.
type Index struct {
	mu sync.RWMutex

	files map[string]*fileEntry // relative_path -> contribution record

	symbolsByID         map[string]scip.SymbolInfo
	occurrencesBySymbol map[string][]scip.OccurrenceInfo // non-definitions only
	definitionsBySymbol map[string]scip.OccurrenceInfo
	symbolsByFile       map[string][]string // relative_path -> symbol IDs defined there
	nameIndex           map[string]map[string]struct{}

	// relationships mirrors each SymbolInfo's Relationships slice so
	// supertypes_of/subtypes_of/calls_of can walk edges without
	// re-scanning every symbol.
	relationshipsFrom map[string][]scip.Relationship
	relationshipsTo   map[string][]string // target -> from-symbol IDs with IsImplementation
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		files:               make(map[string]*fileEntry),
		symbolsByID:         make(map[string]scip.SymbolInfo),
		occurrencesBySymbol: make(map[string][]scip.OccurrenceInfo),
		definitionsBySymbol: make(map[string]scip.OccurrenceInfo),
		symbolsByFile:       make(map[string][]string),
		nameIndex:           make(map[string]map[string]struct{}),
		relationshipsFrom:   make(map[string][]scip.Relationship),
		relationshipsTo:     make(map[string][]string),
	}
}

// UpdateDocument replaces any existing document with the same
// RelativePath. The retraction of the old document's contributions and
// the insertion of the new one happen under a single write lock so
// readers never observe a partially-replaced document (spec §4.B).
func (idx *Index) UpdateDocument(doc scip.Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.retractLocked(doc.RelativePath)
	idx.insertLocked(doc)
}

// RemoveDocument retracts a document's contributions without
// inserting a replacement.
func (idx *Index) RemoveDocument(relativePath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.retractLocked(relativePath)
}

func (idx *Index) retractLocked(relativePath string) {
	entry, ok := idx.files[relativePath]
	if !ok {
		return
	}

	for _, id := range entry.symbolIDs {
		sym, exists := idx.symbolsByID[id]
		if exists && sym.File == relativePath {
			delete(idx.symbolsByID, id)
			idx.removeFromNameIndex(sym.Name, id)
			idx.removeRelationshipsLocked(id)
		}
		if def, exists := idx.definitionsBySymbol[id]; exists && def.File == relativePath {
			delete(idx.definitionsBySymbol, id)
		}
	}

	for symID, occs := range idx.occurrencesBySymbol {
		filtered := occs[:0:0]
		for _, o := range occs {
			if o.File != relativePath {
				filtered = append(filtered, o)
			}
		}
		if len(filtered) == 0 {
			delete(idx.occurrencesBySymbol, symID)
		} else {
			idx.occurrencesBySymbol[symID] = filtered
		}
	}

	delete(idx.symbolsByFile, relativePath)
	delete(idx.files, relativePath)
}

func (idx *Index) insertLocked(doc scip.Document) {
	entry := &fileEntry{doc: doc}
	symIDs := make([]string, 0, len(doc.Symbols))

	for _, sym := range doc.Symbols {
		sym.File = doc.RelativePath
		idx.symbolsByID[sym.Symbol] = sym
		idx.addToNameIndex(sym.Name, sym.Symbol)
		symIDs = append(symIDs, sym.Symbol)

		if len(sym.Relationships) > 0 {
			idx.relationshipsFrom[sym.Symbol] = append([]scip.Relationship(nil), sym.Relationships...)
			for _, rel := range sym.Relationships {
				if rel.IsImplementation {
					idx.relationshipsTo[rel.TargetSymbol] = append(idx.relationshipsTo[rel.TargetSymbol], sym.Symbol)
				}
			}
		}
	}

	idx.symbolsByFile[doc.RelativePath] = symIDs
	entry.symbolIDs = symIDs

	for _, occ := range doc.Occurrences {
		occ.File = doc.RelativePath
		if occ.IsDefinition {
			// "If upstream emits two, the later wins and the earlier is
			// dropped" (spec §3) — later occurrences in document order
			// simply overwrite.
			idx.definitionsBySymbol[occ.Symbol] = occ
		} else {
			idx.occurrencesBySymbol[occ.Symbol] = append(idx.occurrencesBySymbol[occ.Symbol], occ)
		}
	}

	idx.files[doc.RelativePath] = entry
}

func (idx *Index) removeRelationshipsLocked(symbolID string) {
	if rels, ok := idx.relationshipsFrom[symbolID]; ok {
		for _, rel := range rels {
			if rel.IsImplementation {
				idx.relationshipsTo[rel.TargetSymbol] = removeString(idx.relationshipsTo[rel.TargetSymbol], symbolID)
			}
		}
		delete(idx.relationshipsFrom, symbolID)
	}
}

func removeString(list []string, s string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func (idx *Index) addToNameIndex(name, symbolID string) {
	key := strings.ToLower(name)
	set, ok := idx.nameIndex[key]
	if !ok {
		set = make(map[string]struct{})
		idx.nameIndex[key] = set
	}
	set[symbolID] = struct{}{}
}

func (idx *Index) removeFromNameIndex(name, symbolID string) {
	key := strings.ToLower(name)
	set, ok := idx.nameIndex[key]
	if !ok {
		return
	}
	delete(set, symbolID)
	if len(set) == 0 {
		delete(idx.nameIndex, key)
	}
}

// GetSymbol returns the SymbolInfo for an ID, or false if not present.
func (idx *Index) GetSymbol(id string) (scip.SymbolInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	sym, ok := idx.symbolsByID[id]
	return sym, ok
}

// FindDefinition returns the definition occurrence for a symbol, if any.
func (idx *Index) FindDefinition(id string) (scip.OccurrenceInfo, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	occ, ok := idx.definitionsBySymbol[id]
	return occ, ok
}

// FindReferences returns all non-definition occurrences of a symbol.
func (idx *Index) FindReferences(id string) []scip.OccurrenceInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	occs := idx.occurrencesBySymbol[id]
	out := make([]scip.OccurrenceInfo, len(occs))
	copy(out, occs)
	return out
}

// MembersOf returns symbols whose container prefix equals id — i.e.
// symbols declared inside the type/namespace named by id.
func (idx *Index) MembersOf(id string) []scip.SymbolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []scip.SymbolInfo
	for _, sym := range idx.symbolsByID {
		if sym.Symbol != id && scip.ParseIdentifier(sym.Symbol).ContainerID() == id {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// SupertypesOf walks is_implementation relationships forward: symbols
// that id implements/extends.
func (idx *Index) SupertypesOf(id string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	for _, rel := range idx.relationshipsFrom[id] {
		if rel.IsImplementation {
			out = append(out, rel.TargetSymbol)
		}
	}
	return out
}

// SubtypesOf walks is_implementation relationships backward: symbols
// that implement/extend id.
func (idx *Index) SubtypesOf(id string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := append([]string(nil), idx.relationshipsTo[id]...)
	return out
}

// AllSymbols returns every symbol currently indexed.
func (idx *Index) AllSymbols() []scip.SymbolInfo {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]scip.SymbolInfo, 0, len(idx.symbolsByID))
	for _, sym := range idx.symbolsByID {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Files returns the relative paths of every document currently held.
func (idx *Index) Files() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, 0, len(idx.files))
	for path := range idx.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// DocumentsInFolder returns every document whose relative path is
// under the given folder prefix.
func (idx *Index) DocumentsInFolder(folder string) []scip.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	folder = strings.TrimSuffix(folder, "/")
	var out []scip.Document
	for path, entry := range idx.files {
		if folder == "" || strings.HasPrefix(path, folder+"/") || path == folder {
			out = append(out, entry.doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}

// Stats reports aggregate counts for the façade's stats() operation.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	occCount := len(idx.definitionsBySymbol)
	for _, occs := range idx.occurrencesBySymbol {
		occCount += len(occs)
	}
	relCount := 0
	for _, rels := range idx.relationshipsFrom {
		relCount += len(rels)
	}

	return Stats{
		Files:         len(idx.files),
		Symbols:       len(idx.symbolsByID),
		Occurrences:   occCount,
		Relationships: relCount,
	}
}

// Documents returns every document currently held, path-sorted, for
// use by the projection and cache layers.
func (idx *Index) Documents() []scip.Document {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]scip.Document, 0, len(idx.files))
	for _, entry := range idx.files {
		out = append(out, entry.doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelativePath < out[j].RelativePath })
	return out
}
