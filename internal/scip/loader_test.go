package scip

import (
	"testing"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

func TestDecodeDocument_DefinitionAndReference(t *testing.T) {
	pbDoc := &scippb.Document{
		RelativePath: "widget.go",
		Language:     "go",
		Symbols: []*scippb.SymbolInformation{
			{
				Symbol:      "scip-go gomod widget v1.0.0 `widget`/Handle().",
				DisplayName: "Handle",
			},
		},
		Occurrences: []*scippb.Occurrence{
			{
				Range:       []int32{10, 5, 10, 11},
				Symbol:      "scip-go gomod widget v1.0.0 `widget`/Handle().",
				SymbolRoles: SymbolRoleDefinition,
				EnclosingRange: []int32{10, 0, 20, 1},
			},
			{
				Range:  []int32{30, 2, 30, 8},
				Symbol: "scip-go gomod widget v1.0.0 `widget`/Handle().",
			},
		},
	}

	data, err := proto.Marshal(pbDoc)
	if err != nil {
		t.Fatalf("proto.Marshal: %v", err)
	}

	doc, err := DecodeDocument(data)
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}

	if doc.RelativePath != "widget.go" {
		t.Fatalf("RelativePath = %q", doc.RelativePath)
	}
	if len(doc.Symbols) != 1 {
		t.Fatalf("len(Symbols) = %d, want 1", len(doc.Symbols))
	}
	if doc.Symbols[0].Name != "Handle" {
		t.Fatalf("Name = %q, want Handle", doc.Symbols[0].Name)
	}

	if len(doc.Occurrences) != 2 {
		t.Fatalf("len(Occurrences) = %d, want 2", len(doc.Occurrences))
	}
	def := doc.Occurrences[0]
	if !def.IsDefinition {
		t.Fatalf("expected first occurrence to be a definition")
	}
	if def.EnclosingEndLine == nil || *def.EnclosingEndLine != 20 {
		t.Fatalf("EnclosingEndLine = %v, want 20", def.EnclosingEndLine)
	}
	ref := doc.Occurrences[1]
	if ref.IsDefinition {
		t.Fatalf("expected second occurrence to be a reference")
	}
	if ref.Range.StartLine != 30 || ref.Range.EndColumn != 8 {
		t.Fatalf("unexpected range: %+v", ref.Range)
	}
}

func TestDecodeDocument_InvalidBytes(t *testing.T) {
	if _, err := DecodeDocument([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("expected an error decoding garbage bytes")
	}
}

func TestRangeFromInts(t *testing.T) {
	r := rangeFromInts([]int32{3, 4, 9})
	if r.StartLine != 3 || r.EndLine != 3 || r.StartColumn != 4 || r.EndColumn != 9 {
		t.Fatalf("single-line range decoded wrong: %+v", r)
	}

	r4 := rangeFromInts([]int32{3, 4, 5, 6})
	if r4.StartLine != 3 || r4.EndLine != 5 || r4.StartColumn != 4 || r4.EndColumn != 6 {
		t.Fatalf("multi-line range decoded wrong: %+v", r4)
	}
}
