package projection

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/wenkaifan0720/ctx/internal/registry"
	"github.com/wenkaifan0720/ctx/internal/scip"
	"github.com/wenkaifan0720/ctx/internal/scipindex"
)

// Rebuild re-materializes the entire three-table projection from every
// index the registry consults, inside one transaction. It implements
// the "full transactional DELETE-then-reinsert" rebuild policy (spec
// §4.G): simpler and always correct, at the cost of redoing work an
// incremental per-file variant could skip.
func (db *DB) Rebuild(reg *registry.Registry) error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := clearTables(tx); err != nil {
			return err
		}

		indexes := reg.Indexes()
		for _, idx := range indexes {
			if err := insertSymbols(tx, idx); err != nil {
				return err
			}
		}
		for _, idx := range indexes {
			if err := insertOccurrences(tx, idx); err != nil {
				return err
			}
		}
		for _, idx := range indexes {
			if err := synthesizeCallGraph(tx, idx); err != nil {
				return err
			}
		}
		return nil
	})
}

func clearTables(tx *sql.Tx) error {
	for _, table := range []string{"relationships", "occurrences", "symbols"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// insertSymbols projects every symbol an index holds, parsing its ID
// for name/package/version/container_id and recording its declared
// relationship flags (spec §4.G step 1).
func insertSymbols(tx *sql.Tx, idx *scipindex.Index) error {
	for _, sym := range idx.AllSymbols() {
		ident := scip.ParseIdentifier(sym.Symbol)
		name := ident.Name()
		if name == "" {
			name = sym.Symbol
		}

		var pkg, version, container sql.NullString
		if ident.Package != "" {
			pkg = sql.NullString{String: ident.Package, Valid: true}
		}
		if ident.Version != "" {
			version = sql.NullString{String: ident.Version, Valid: true}
		}
		if c := ident.ContainerID(); c != "" {
			container = sql.NullString{String: c, Valid: true}
		}

		var file sql.NullString
		if sym.File != "" {
			file = sql.NullString{String: sym.File, Valid: true}
		}

		_, err := tx.Exec(`
			INSERT OR REPLACE INTO symbols
				(scip_id, name, kind, file, line, column_num, package, version,
				 container_id, display_name, documentation, language)
			VALUES (?, ?, ?, ?,
				(SELECT line FROM symbols WHERE scip_id = ?),
				(SELECT column_num FROM symbols WHERE scip_id = ?),
				?, ?, ?, ?, ?, ?)`,
			sym.Symbol, name, string(sym.Kind), file,
			sym.Symbol, sym.Symbol,
			pkg, version, container, sym.DisplayName,
			strings.Join(sym.Documentation, "\n"), sym.Language)
		if err != nil {
			return fmt.Errorf("failed to insert symbol %s: %w", sym.Symbol, err)
		}

		for _, rel := range sym.Relationships {
			kind, ok := relationshipKind(rel)
			if !ok {
				continue
			}
			if _, err := tx.Exec(`
				INSERT OR IGNORE INTO relationships (from_symbol, to_symbol, kind)
				VALUES (?, ?, ?)`, sym.Symbol, rel.TargetSymbol, kind); err != nil {
				return fmt.Errorf("failed to insert relationship from %s: %w", sym.Symbol, err)
			}
		}
	}
	return nil
}

func relationshipKind(rel scip.Relationship) (string, bool) {
	switch {
	case rel.IsImplementation:
		return string(scip.RelImplements), true
	case rel.IsTypeDefinition:
		return string(scip.RelTypeDefinition), true
	case rel.IsReference:
		return string(scip.RelReferences), true
	default:
		return "", false
	}
}

// insertOccurrences projects every occurrence an index holds and
// backfills a definition's line/column onto its symbols row (spec
// §4.G step 2).
func insertOccurrences(tx *sql.Tx, idx *scipindex.Index) error {
	for _, doc := range idx.Documents() {
		for _, occ := range doc.Occurrences {
			var enclosing sql.NullInt64
			if occ.EnclosingEndLine != nil {
				enclosing = sql.NullInt64{Int64: int64(*occ.EnclosingEndLine), Valid: true}
			}
			isDef := 0
			if occ.IsDefinition {
				isDef = 1
			}

			_, err := tx.Exec(`
				INSERT INTO occurrences
					(symbol_id, file, line, column_num, end_line, end_column, is_definition, enclosing_end_line)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				occ.Symbol, occ.File, occ.Range.StartLine, occ.Range.StartColumn,
				occ.Range.EndLine, occ.Range.EndColumn, isDef, enclosing)
			if err != nil {
				return fmt.Errorf("failed to insert occurrence for %s: %w", occ.Symbol, err)
			}

			if occ.IsDefinition {
				if _, err := tx.Exec(`
					UPDATE symbols SET line = ?, column_num = ?
					WHERE scip_id = ? AND line IS NULL`,
					occ.Range.StartLine, occ.Range.StartColumn, occ.Symbol); err != nil {
					return fmt.Errorf("failed to backfill definition location for %s: %w", occ.Symbol, err)
				}
			}
		}
	}
	return nil
}

// synthesizeCallGraph mirrors internal/scipindex's in-memory
// enclosing-definition heuristic: for each reference at line L, find
// the innermost definition whose range contains L (leftmost on ties)
// and record a `calls` edge (spec §4.G step 3). Definitions lacking an
// enclosing range contribute no edges.
func synthesizeCallGraph(tx *sql.Tx, idx *scipindex.Index) error {
	for _, doc := range idx.Documents() {
		ranges := documentFunctionRanges(doc)
		if len(ranges) == 0 {
			continue
		}
		for _, occ := range doc.Occurrences {
			if occ.IsDefinition {
				continue
			}
			caller, found := innermostDefinition(ranges, occ.Range.StartLine)
			if !found || caller == occ.Symbol {
				continue
			}
			if _, err := tx.Exec(`
				INSERT OR IGNORE INTO relationships (from_symbol, to_symbol, kind)
				VALUES (?, ?, ?)`, caller, occ.Symbol, string(scip.RelCalls)); err != nil {
				return fmt.Errorf("failed to insert call edge %s->%s: %w", caller, occ.Symbol, err)
			}
		}
	}
	return nil
}

type funcSpan struct {
	symbol string
	start  int
	end    int
}

// documentFunctionRanges orders a document's definitions by start line
// and keeps only those carrying an EnclosingEndLine — the projection's
// call graph, unlike the in-memory index's, does not fall back to a
// synthetic max-lines bound, since the materialized schema should only
// record edges upstream actually bounded.
func documentFunctionRanges(doc scip.Document) []funcSpan {
	var spans []funcSpan
	for _, occ := range doc.Occurrences {
		if !occ.IsDefinition || occ.EnclosingEndLine == nil {
			continue
		}
		spans = append(spans, funcSpan{symbol: occ.Symbol, start: occ.Range.StartLine, end: *occ.EnclosingEndLine})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// innermostDefinition returns the containing span with the latest
// start line (the innermost one), narrowing on end line when two spans
// start on the same line, and breaking a genuine exact tie toward the
// leftmost (first-encountered) definition.
func innermostDefinition(spans []funcSpan, line int) (string, bool) {
	best := ""
	bestStart := -1
	bestEnd := -1
	found := false
	for _, s := range spans {
		if line < s.start || line > s.end {
			continue
		}
		switch {
		case !found:
			best, bestStart, bestEnd, found = s.symbol, s.start, s.end, true
		case s.start > bestStart:
			best, bestStart, bestEnd = s.symbol, s.start, s.end
		case s.start == bestStart && s.end < bestEnd:
			best, bestEnd = s.symbol, s.end
		}
	}
	return best, found
}
