// Package sqlexec runs read-only SQL against the projection database
// and shapes the result for display (spec §4.H).
package sqlexec

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	ctxerrors "github.com/wenkaifan0720/ctx/internal/errors"
)

// RowCap is the hard maximum number of rows returned by one query.
const RowCap = 10000

// Result is the shape returned to every caller of Execute: columns,
// rows keyed by column name, and the metadata needed to report
// truncation and timing.
type Result struct {
	Columns     []string
	Rows        []map[string]interface{}
	TotalRows   int
	Truncated   bool
	QueryTimeMs int64
}

var allowedFirstTokens = map[string]bool{
	"SELECT":  true,
	"WITH":    true,
	"EXPLAIN": true,
}

// Execute validates query is a read-only statement, runs it with
// params bound positionally, and caps the result at RowCap rows.
func Execute(conn *sql.DB, query string, params ...interface{}) (*Result, error) {
	return ExecuteWithCap(conn, RowCap, query, params...)
}

// ExecuteWithCap is Execute with an explicit row cap, letting a caller
// honor a project's configured CTX_ROW_CAP override instead of the
// package default (spec §9 environment variables).
func ExecuteWithCap(conn *sql.DB, rowCap int, query string, params ...interface{}) (*Result, error) {
	if rowCap <= 0 {
		rowCap = RowCap
	}

	if err := validateReadOnly(query); err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := conn.Query(query, params...)
	if err != nil {
		return nil, ctxerrors.NewSQLError("query execution failed", query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, ctxerrors.NewSQLError("failed to read result columns", query, err)
	}

	result := &Result{Columns: columns}
	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		count++
		if count > rowCap {
			result.Truncated = true
			continue
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, ctxerrors.NewSQLError("failed to scan result row", query, err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ctxerrors.NewSQLError("error iterating result rows", query, err)
	}

	result.TotalRows = count
	result.QueryTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// validateReadOnly enforces the SELECT/WITH/EXPLAIN-only contract.
func validateReadOnly(query string) error {
	trimmed := strings.TrimSpace(query)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return ctxerrors.NewSQLError("empty query", query, nil)
	}
	first := strings.ToUpper(fields[0])
	if !allowedFirstTokens[first] {
		snippet := trimmed
		if len(snippet) > 50 {
			snippet = snippet[:50]
		}
		return ctxerrors.NewSQLError(
			fmt.Sprintf("only SELECT, WITH, or EXPLAIN statements are allowed, got %q", snippet), query, nil)
	}
	return nil
}

// normalizeValue maps driver values onto the canonical set spec §4.H
// names (integer, real, text, null, blob). Every []byte from the
// driver is returned as a string: TEXT columns come back as []byte
// too, and BLOB values are not told apart from them.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
