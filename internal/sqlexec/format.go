package sqlexec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// verticalWidthThreshold and verticalRowThreshold gate the Markdown
// formatter's switch to a vertical "one row per block" layout (spec
// §4.H): used when the combined column widths exceed 120 characters
// and the result has at most 20 rows.
const (
	verticalWidthThreshold = 120
	verticalRowThreshold   = 20
)

// FormatMarkdown renders a Result as either a pipe table or, when the
// table would be too wide to read, a vertical block layout.
func FormatMarkdown(r *Result) string {
	if len(r.Columns) == 0 {
		return "(no columns)\n"
	}

	widths := columnWidths(r)
	totalWidth := 0
	for _, w := range widths {
		totalWidth += w
	}

	if totalWidth > verticalWidthThreshold && len(r.Rows) <= verticalRowThreshold {
		return formatVertical(r)
	}
	return formatTable(r)
}

func columnWidths(r *Result) map[string]int {
	widths := make(map[string]int, len(r.Columns))
	for _, col := range r.Columns {
		widths[col] = len(col)
	}
	for _, row := range r.Rows {
		for _, col := range r.Columns {
			if l := len(cellText(row[col])); l > widths[col] {
				widths[col] = l
			}
		}
	}
	return widths
}

func formatTable(r *Result) string {
	var b strings.Builder

	b.WriteString("| ")
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteString(" |\n|")
	for range r.Columns {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, row := range r.Rows {
		b.WriteString("| ")
		cells := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			cells[i] = cellText(row[col])
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")
	}

	if r.Truncated {
		fmt.Fprintf(&b, "\n_truncated at %d rows_\n", len(r.Rows))
	}
	return b.String()
}

func formatVertical(r *Result) string {
	var b strings.Builder
	for i, row := range r.Rows {
		fmt.Fprintf(&b, "-- row %d --\n", i+1)
		for _, col := range r.Columns {
			fmt.Fprintf(&b, "%s: %s\n", col, cellText(row[col]))
		}
		b.WriteString("\n")
	}
	if r.Truncated {
		fmt.Fprintf(&b, "_truncated at %d rows_\n", len(r.Rows))
	}
	return b.String()
}

func cellText(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// FormatJSON renders a Result as the JSON document spec §4.H names.
func FormatJSON(r *Result) (string, error) {
	doc := struct {
		Columns     []string                 `json:"columns"`
		Rows        []map[string]interface{} `json:"rows"`
		TotalRows   int                       `json:"total_rows"`
		Truncated   bool                      `json:"truncated"`
		QueryTimeMs int64                     `json:"query_time_ms"`
	}{
		Columns:     r.Columns,
		Rows:        r.Rows,
		TotalRows:   r.TotalRows,
		Truncated:   r.Truncated,
		QueryTimeMs: r.QueryTimeMs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
