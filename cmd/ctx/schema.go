package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wenkaifan0720/ctx/internal/projection"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the SQL schema and example queries",
	RunE:  runSchema,
}

const exampleQueries = `
-- Example queries --

-- Find a symbol by name
SELECT * FROM symbols WHERE name = 'Widget';

-- Find every reference to a symbol
SELECT * FROM occurrences WHERE symbol_id = ? AND is_definition = 0;

-- Callers of a function (via the synthesized 'calls' relationship)
SELECT s.name FROM relationships r
  JOIN symbols s ON s.scip_id = r.from_symbol
  WHERE r.to_symbol = ? AND r.kind = 'calls';

-- Members of a type
SELECT * FROM symbols WHERE container_id = ?;

-- Implementations of an interface
SELECT s.name FROM relationships r
  JOIN symbols s ON s.scip_id = r.from_symbol
  WHERE r.to_symbol = ? AND r.kind = 'implements';
`

func runSchema(cmd *cobra.Command, args []string) error {
	fmt.Print(projection.SchemaSQL)
	fmt.Print(exampleQueries)
	return nil
}
