package scip

import (
	"fmt"
	"os"

	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

// DecodeDocument parses one protobuf-encoded SCIP Document — the unit
// an upstream indexer's `produce_scip(package_root)` call returns per
// file — into the in-memory Document shape the rest of ctx consumes.
func DecodeDocument(data []byte) (*Document, error) {
	var doc scippb.Document
	if err := proto.Unmarshal(data, &doc); err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrScipProduction, "failed to decode SCIP document", err)
	}
	return convertDocument(&doc), nil
}

// DecodeIndex parses a full protobuf-encoded scip.Index (a
// metadata header plus every document), as produced by bundling an
// entire package's SCIP output into one file. Used by tooling that
// wants to seed a package from an indexer binary's single output file
// rather than one document at a time.
func DecodeIndex(data []byte) ([]*Document, error) {
	var idx scippb.Index
	if err := proto.Unmarshal(data, &idx); err != nil {
		return nil, ctxerrors.Wrap(ctxerrors.ErrScipProduction, "failed to decode SCIP index", err)
	}
	docs := make([]*Document, len(idx.Documents))
	for i, d := range idx.Documents {
		docs[i] = convertDocument(d)
	}
	return docs, nil
}

// LoadIndexFile reads and decodes a scip.Index from disk.
func LoadIndexFile(path string) ([]*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ctxerrors.Wrap(ctxerrors.ErrConfiguration, fmt.Sprintf("SCIP index not found at %s", path), err)
		}
		return nil, ctxerrors.Wrap(ctxerrors.ErrTransientIO, fmt.Sprintf("failed to read SCIP index at %s", path), err)
	}
	return DecodeIndex(data)
}

func convertDocument(doc *scippb.Document) *Document {
	symbols := make([]SymbolInfo, len(doc.Symbols))
	for i, sym := range doc.Symbols {
		symbols[i] = convertSymbolInformation(sym, doc.RelativePath)
	}

	occurrences := make([]OccurrenceInfo, len(doc.Occurrences))
	for i, occ := range doc.Occurrences {
		occurrences[i] = convertOccurrence(occ, doc.RelativePath)
	}

	return &Document{
		RelativePath: doc.RelativePath,
		Language:     doc.Language,
		Symbols:      symbols,
		Occurrences:  occurrences,
	}
}

func convertSymbolInformation(sym *scippb.SymbolInformation, file string) SymbolInfo {
	rels := make([]Relationship, len(sym.Relationships))
	for i, r := range sym.Relationships {
		rels[i] = Relationship{
			TargetSymbol:     r.Symbol,
			IsImplementation: r.IsImplementation,
			IsTypeDefinition: r.IsTypeDefinition,
			IsReference:      r.IsReference,
		}
	}

	ident := ParseIdentifier(sym.Symbol)
	name := sym.DisplayName
	if name == "" {
		name = ident.Name()
	}

	return SymbolInfo{
		Symbol:        sym.Symbol,
		Name:          name,
		Kind:          mapKind(sym, ident),
		DisplayName:   sym.DisplayName,
		Documentation: append([]string(nil), sym.Documentation...),
		File:          file,
		Relationships: rels,
	}
}

// SymbolRoleDefinition is the SCIP symbol-role bit marking an
// occurrence as a definition (scip.proto's SymbolRole.Definition = 1).
const SymbolRoleDefinition int32 = 1

func convertOccurrence(occ *scippb.Occurrence, file string) OccurrenceInfo {
	rng := rangeFromInts(occ.Range)
	isDef := occ.SymbolRoles&SymbolRoleDefinition != 0

	var enclosingEnd *int
	if isDef && len(occ.EnclosingRange) > 0 {
		enclosing := rangeFromInts(occ.EnclosingRange)
		v := enclosing.EndLine
		enclosingEnd = &v
	}

	return OccurrenceInfo{
		Symbol:           occ.Symbol,
		File:             file,
		Range:            rng,
		IsDefinition:     isDef,
		EnclosingEndLine: enclosingEnd,
	}
}

// rangeFromInts decodes SCIP's variable-length range encoding: either
// [startLine, startCol, endCol] (single-line) or
// [startLine, startCol, endLine, endCol].
func rangeFromInts(r []int32) Range {
	switch len(r) {
	case 3:
		return Range{StartLine: int(r[0]), StartColumn: int(r[1]), EndLine: int(r[0]), EndColumn: int(r[2])}
	case 4:
		return Range{StartLine: int(r[0]), StartColumn: int(r[1]), EndLine: int(r[2]), EndColumn: int(r[3])}
	default:
		return Range{}
	}
}

// scipKind mirrors the numeric values of SCIP's SymbolInformation.Kind
// enum (scip.proto). Indexers disagree on how faithfully they populate
// this field, so it is consulted only as a hint; descriptor sniffing
// via Identifier is the fallback of record.
type scipKind = int32

const (
	scipKindClass       scipKind = 5
	scipKindTrait       scipKind = 7
	scipKindMethod      scipKind = 9
	scipKindMacro       scipKind = 10
	scipKindParameter   scipKind = 12
	scipKindField       scipKind = 16
	scipKindInterface   scipKind = 17
	scipKindFunction    scipKind = 18
	scipKindVariable    scipKind = 19
	scipKindProperty    scipKind = 27
	scipKindEnum        scipKind = 28
	scipKindEnumMember  scipKind = 29
	scipKindStruct      scipKind = 30
	scipKindConstructor scipKind = 33
)

// mapKind normalizes a SCIP protobuf Kind plus the parsed identifier
// into ctx's closed Kind enumeration. Indexers that don't populate
// Kind reliably (scip-go notably leaves it unspecified for most
// symbols) fall back to descriptor sniffing.
func mapKind(sym *scippb.SymbolInformation, ident *Identifier) Kind {
	switch int32(sym.Kind) {
	case scipKindClass, scipKindStruct:
		return KindClass
	case scipKindMethod:
		return KindMethod
	case scipKindFunction, scipKindMacro:
		return KindFunction
	case scipKindField:
		return KindField
	case scipKindConstructor:
		return KindConstructor
	case scipKindEnum:
		return KindEnum
	case scipKindEnumMember:
		return KindEnumMember
	case scipKindInterface, scipKindTrait:
		return KindInterface
	case scipKindVariable:
		return KindVariable
	case scipKindProperty:
		return KindProperty
	case scipKindParameter:
		return KindParameter
	}

	switch {
	case ident.IsConstructor():
		return KindConstructor
	case ident.IsGetter():
		return KindGetter
	case ident.IsSetter():
		return KindSetter
	case ident.IsMethod():
		return KindMethod
	case ident.IsType():
		return KindClass
	}
	return KindUnspecified
}
