package registry

import (
	"testing"

	"github.com/wenkaifan0720/ctx/internal/cache"
	"github.com/wenkaifan0720/ctx/internal/discovery"
	"github.com/wenkaifan0720/ctx/internal/scip"
	"github.com/wenkaifan0720/ctx/internal/scipindex"
)

func docWithDef(path, symbolID, name string, line int) scip.Document {
	return scip.Document{
		RelativePath: path,
		Language:     "go",
		Symbols: []scip.SymbolInfo{
			{Symbol: symbolID, Name: name, Kind: scip.KindFunction},
		},
		Occurrences: []scip.OccurrenceInfo{
			{Symbol: symbolID, Range: scip.Range{StartLine: line, EndLine: line}, IsDefinition: true},
		},
	}
}

func TestGetSymbol_LocalBeforeExternal(t *testing.T) {
	r := New("/root")

	local := scipindex.New()
	local.UpdateDocument(docWithDef("a.go", "local a.go/Foo().", "Foo", 1))
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, local)

	external := scipindex.New()
	external.UpdateDocument(docWithDef("b.go", "local a.go/Foo().", "Foo", 9))
	r.AttachExternal(cache.OriginSDK, external)

	sym, ok := r.GetSymbol("local a.go/Foo().")
	if !ok {
		t.Fatal("expected symbol to resolve")
	}
	if sym.Name != "Foo" {
		t.Fatalf("got %+v", sym)
	}
}

func TestFindDefinition_LocalWinsOverExternal(t *testing.T) {
	r := New("/root")

	const id = "local a.go/Shared()."
	local := scipindex.New()
	local.UpdateDocument(docWithDef("local.go", id, "shared", 5))
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, local)

	external := scipindex.New()
	external.UpdateDocument(docWithDef("vendor.go", id, "shared", 50))
	r.AttachExternal(cache.OriginGit, external)

	occ, ok := r.FindDefinition(id)
	if !ok {
		t.Fatal("expected a definition")
	}
	if occ.File != "local.go" {
		t.Fatalf("FindDefinition returned external definition, want local: %+v", occ)
	}
}

func TestFindAllReferences_TaggedBySourceRoot(t *testing.T) {
	r := New("/root")
	const id = "local a.go/Shared()."

	local := scipindex.New()
	local.UpdateDocument(scip.Document{
		RelativePath: "a.go",
		Occurrences: []scip.OccurrenceInfo{
			{Symbol: id, Range: scip.Range{StartLine: 2}, IsDefinition: false},
		},
	})
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, local)

	external := scipindex.New()
	external.UpdateDocument(scip.Document{
		RelativePath: "vendor.go",
		Occurrences: []scip.OccurrenceInfo{
			{Symbol: id, Range: scip.Range{StartLine: 8}, IsDefinition: false},
		},
	})
	r.AttachExternal(cache.OriginHosted, external)

	refs := r.FindAllReferences(id)
	if len(refs) != 2 {
		t.Fatalf("FindAllReferences = %d results, want 2", len(refs))
	}

	var roots []string
	for _, ref := range refs {
		roots = append(roots, ref.SourceRoot)
	}
	wantLocal, wantExternal := false, false
	for _, root := range roots {
		if root == "/root/a" {
			wantLocal = true
		}
		if root == "hosted" {
			wantExternal = true
		}
	}
	if !wantLocal || !wantExternal {
		t.Fatalf("roots = %v, want one local and one hosted tag", roots)
	}
}

func TestFindSymbols_DedupedAcrossIndexes(t *testing.T) {
	r := New("/root")
	const id = "local a.go/Widget#"

	a := scipindex.New()
	a.UpdateDocument(docWithDef("a.go", id, "Widget", 1))
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, a)

	b := scipindex.New()
	b.UpdateDocument(docWithDef("a.go", id, "Widget", 1))
	r.AddLocal(discovery.Package{Name: "b", Path: "/root/b"}, b)

	syms := r.FindSymbols("Widget")
	if len(syms) != 1 {
		t.Fatalf("FindSymbols = %d, want deduplicated to 1: %+v", len(syms), syms)
	}
}

func TestFindAllCallersByName_ResolvesThenAggregates(t *testing.T) {
	r := New("/root")

	idx := scipindex.New()
	idx.UpdateDocument(scip.Document{
		RelativePath: "a.go",
		Symbols: []scip.SymbolInfo{
			{Symbol: "local a.go/Caller().", Name: "Caller", Kind: scip.KindFunction},
			{Symbol: "local a.go/Target().", Name: "Target", Kind: scip.KindFunction},
		},
		Occurrences: []scip.OccurrenceInfo{
			{Symbol: "local a.go/Caller().", Range: scip.Range{StartLine: 0, EndLine: 0}, IsDefinition: true},
			{Symbol: "local a.go/Target().", Range: scip.Range{StartLine: 5, EndLine: 5}, IsDefinition: true},
			{Symbol: "local a.go/Target().", Range: scip.Range{StartLine: 1}, IsDefinition: false},
		},
	})
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, idx)

	callers := r.FindAllCallersByName("Target")
	if len(callers) != 1 || callers[0] != "local a.go/Caller()." {
		t.Fatalf("FindAllCallersByName = %v", callers)
	}
}

func TestStats_OnlyCountsLocalPackages(t *testing.T) {
	r := New("/root")

	local := scipindex.New()
	local.UpdateDocument(docWithDef("a.go", "local a.go/Foo().", "Foo", 1))
	r.AddLocal(discovery.Package{Name: "a", Path: "/root/a"}, local)

	external := scipindex.New()
	external.UpdateDocument(docWithDef("b.go", "local b.go/Bar().", "Bar", 1))
	r.AttachExternal(cache.OriginFramework, external)

	stats := r.Stats()
	if stats.Packages != 1 || stats.Symbols != 1 {
		t.Fatalf("Stats = %+v, want only local package counted", stats)
	}
}
