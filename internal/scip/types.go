// Package scip holds typed, in-memory structures for SCIP documents,
// symbols, occurrences, and relationships, and the protobuf decoding
// that produces them.
package scip

// Kind is the closed enumeration of symbol kinds the projection and
// index understand. Upstream SCIP kinds that don't map cleanly are
// normalized to KindUnspecified rather than rejected.
type Kind string

const (
	KindClass       Kind = "class"
	KindMethod      Kind = "method"
	KindFunction    Kind = "function"
	KindField       Kind = "field"
	KindConstructor Kind = "constructor"
	KindEnum        Kind = "enum"
	KindEnumMember  Kind = "enum_member"
	KindInterface   Kind = "interface"
	KindVariable    Kind = "variable"
	KindProperty    Kind = "property"
	KindParameter   Kind = "parameter"
	KindMixin       Kind = "mixin"
	KindExtension   Kind = "extension"
	KindGetter      Kind = "getter"
	KindSetter      Kind = "setter"
	KindTypeAlias   Kind = "typealias"
	KindUnspecified Kind = "unspecified"
)

// RelationshipKind classifies an edge between two symbols.
type RelationshipKind string

const (
	RelImplements     RelationshipKind = "implements"
	RelTypeDefinition RelationshipKind = "type_definition"
	RelReferences     RelationshipKind = "references"
	RelCalls          RelationshipKind = "calls"
)

// Relationship is one directed edge from a SymbolInfo to another
// symbol, as emitted by the upstream indexer (SCIP's per-symbol
// relationship flags) or synthesized by the projection (calls).
type Relationship struct {
	TargetSymbol     string
	IsImplementation bool
	IsTypeDefinition bool
	IsReference      bool
}

// SymbolInfo describes one symbol: a declaration site plus whatever
// the upstream indexer knows about it. File is empty for symbols that
// live outside this document (external dependencies).
type SymbolInfo struct {
	Symbol        string
	Name          string
	Kind          Kind
	DisplayName   string
	Documentation []string
	File          string
	Language      string
	Relationships []Relationship
}

// Range is a zero-indexed, end-exclusive span, matching SCIP's own
// range semantics.
type Range struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// OccurrenceInfo is one mention of a symbol at a location: either its
// definition or a use of it.
type OccurrenceInfo struct {
	Symbol           string
	File             string
	Range            Range
	IsDefinition     bool
	EnclosingEndLine *int
}

// Document is the atomic unit of incremental indexing: everything the
// upstream indexer produced for one source file.
type Document struct {
	RelativePath string
	Language     string
	Symbols      []SymbolInfo
	Occurrences  []OccurrenceInfo
}
