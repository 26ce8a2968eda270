package scipindex

import (
	"sort"
	"strings"

	"github.com/wenkaifan0720/ctx/internal/scip"
)

// DefaultMaxFunctionLines bounds a definition's inferred body when its
// occurrence carries no EnclosingEndLine — most indexers only populate
// that field for multi-line definitions, so the in-memory call graph
// needs a fallback to avoid unbounded lookahead.
const DefaultMaxFunctionLines = 500

type funcRange struct {
	symbol string
	start  int
	end    int
}

// buildFunctionRanges orders a document's definitions by start line
// and infers each one's ending line: EnclosingEndLine if present,
// otherwise the next definition's start line, otherwise
// DefaultMaxFunctionLines past its own start.
func buildFunctionRanges(doc scip.Document) []funcRange {
	var defs []funcRange
	for _, occ := range doc.Occurrences {
		if !occ.IsDefinition || !isCallableSymbol(occ.Symbol) {
			continue
		}
		defs = append(defs, funcRange{symbol: occ.Symbol, start: occ.Range.StartLine})
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].start < defs[j].start })

	enclosing := make(map[string]int)
	for _, occ := range doc.Occurrences {
		if occ.IsDefinition && occ.EnclosingEndLine != nil {
			enclosing[occ.Symbol] = *occ.EnclosingEndLine
		}
	}

	for i := range defs {
		if end, ok := enclosing[defs[i].symbol]; ok {
			defs[i].end = end
			continue
		}
		if i+1 < len(defs) {
			defs[i].end = defs[i+1].start
		} else {
			defs[i].end = defs[i].start + DefaultMaxFunctionLines
		}
	}
	return defs
}

// isCallableSymbol reports whether a symbol ID looks like a function
// or method definition, using the same descriptor-suffix heuristic as
// the identifier parser since not every upstream indexer populates
// SymbolInfo.Kind reliably.
func isCallableSymbol(symbolID string) bool {
	return scip.ParseIdentifier(symbolID).IsMethod()
}

// enclosingDefinition returns the innermost range containing line: the
// containing range with the latest start line, narrowing on end line
// when two ranges start on the same line, and breaking a genuine exact
// tie ([start,end] equal) toward the leftmost (first-encountered)
// definition, as spec §4.G requires for call-graph synthesis.
func enclosingDefinition(ranges []funcRange, line int) (string, bool) {
	best := ""
	bestStart := -1
	bestEnd := -1
	found := false
	for _, r := range ranges {
		if line < r.start || line > r.end {
			continue
		}
		switch {
		case !found:
			best, bestStart, bestEnd, found = r.symbol, r.start, r.end, true
		case r.start > bestStart:
			best, bestStart, bestEnd = r.symbol, r.start, r.end
		case r.start == bestStart && r.end < bestEnd:
			best, bestEnd = r.symbol, r.end
		}
	}
	return best, found
}

// CallsOf returns the symbol IDs referenced within id's inferred body
// (see buildFunctionRanges), including references that fall inside
// definitions nested in that body. The SQL projection's call-graph
// synthesis uses only EnclosingEndLine and credits each reference to
// its innermost definition, so its results can differ from these.
func (idx *Index) CallsOf(id string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	def, ok := idx.definitionsBySymbol[id]
	if !ok {
		return nil
	}
	entry, ok := idx.files[def.File]
	if !ok {
		return nil
	}

	ranges := buildFunctionRanges(entry.doc)
	var target *funcRange
	for i := range ranges {
		if ranges[i].symbol == id {
			target = &ranges[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, occ := range entry.doc.Occurrences {
		if occ.IsDefinition || occ.Symbol == id {
			continue
		}
		if occ.Range.StartLine < target.start || occ.Range.StartLine > target.end {
			continue
		}
		if _, dup := seen[occ.Symbol]; dup {
			continue
		}
		seen[occ.Symbol] = struct{}{}
		out = append(out, occ.Symbol)
	}
	return out
}

// CallersOf returns every definition whose inferred body contains a
// reference to id.
func (idx *Index) CallersOf(id string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, entry := range idx.files {
		ranges := buildFunctionRanges(entry.doc)
		if len(ranges) == 0 {
			continue
		}
		for _, occ := range entry.doc.Occurrences {
			if occ.IsDefinition || occ.Symbol != id {
				continue
			}
			caller, found := enclosingDefinition(ranges, occ.Range.StartLine)
			if !found || caller == id {
				continue
			}
			if _, dup := seen[caller]; dup {
				continue
			}
			seen[caller] = struct{}{}
			out = append(out, caller)
		}
	}
	return out
}

// FindSymbols implements the pattern syntax from spec §4.B: plain
// substring (case-insensitive), `*` glob, or `/regex/`.
func (idx *Index) FindSymbols(pattern string) []scip.SymbolInfo {
	matcher := compilePattern(pattern)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []scip.SymbolInfo
	for name, ids := range idx.nameIndex {
		if !matcher(name) {
			continue
		}
		for id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, idx.symbolsByID[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// compilePattern turns a find_symbols pattern string into a predicate
// over lowercase names. `/foo/` is a regular expression, a pattern
// containing `*` is a glob, anything else is a case-insensitive
// substring match.
func compilePattern(pattern string) func(name string) bool {
	if len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		if re, err := compileRegex(pattern[1 : len(pattern)-1]); err == nil {
			return func(name string) bool { return re.MatchString(name) }
		}
		return func(string) bool { return false }
	}

	if strings.Contains(pattern, "*") {
		if re, err := compileGlob(pattern); err == nil {
			return func(name string) bool { return re.MatchString(name) }
		}
		return func(string) bool { return false }
	}

	needle := strings.ToLower(pattern)
	return func(name string) bool { return strings.Contains(name, needle) }
}
