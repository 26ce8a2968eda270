// Package projection materializes a Registry's symbols, occurrences,
// and relationships into a queryable SQLite schema (spec §4.G).
package projection

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/wenkaifan0720/ctx/internal/logging"
)

// DB wraps a SQLite connection holding the three-table projection.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
}

// Open opens (creating if necessary) the projection database at
// <cacheRoot>/index.db and initializes its schema.
func Open(cacheRoot string, logger *logging.Logger) (*DB, error) {
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	dbPath := filepath.Join(cacheRoot, "index.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open projection database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Conn returns the underlying *sql.DB for read-only query execution
// (internal/sqlexec consumes this directly).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on any error or panic.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback projection transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit projection transaction: %w", err)
	}
	return nil
}

// SchemaSQL is the three-table projection's fixed schema (spec §4.G),
// exported so callers (the schema CLI command, tests) have one source
// of truth for it.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS symbols (
	scip_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	kind TEXT NOT NULL,
	file TEXT,
	line INTEGER,
	column_num INTEGER,
	package TEXT,
	version TEXT,
	container_id TEXT,
	display_name TEXT,
	documentation TEXT,
	language TEXT
);

CREATE TABLE IF NOT EXISTS occurrences (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol_id TEXT NOT NULL,
	file TEXT NOT NULL,
	line INTEGER NOT NULL,
	column_num INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	end_column INTEGER NOT NULL,
	is_definition INTEGER NOT NULL CHECK(is_definition IN (0, 1)),
	enclosing_end_line INTEGER
);

CREATE TABLE IF NOT EXISTS relationships (
	from_symbol TEXT NOT NULL,
	to_symbol TEXT NOT NULL,
	kind TEXT NOT NULL,
	PRIMARY KEY (from_symbol, to_symbol, kind)
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file);
CREATE INDEX IF NOT EXISTS idx_symbols_container_id ON symbols(container_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_symbol_id ON occurrences(symbol_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_file ON occurrences(file);
CREATE INDEX IF NOT EXISTS idx_occurrences_is_definition ON occurrences(is_definition);
CREATE INDEX IF NOT EXISTS idx_relationships_from_symbol ON relationships(from_symbol);
CREATE INDEX IF NOT EXISTS idx_relationships_to_symbol ON relationships(to_symbol);
CREATE INDEX IF NOT EXISTS idx_relationships_kind ON relationships(kind);
`

func (db *DB) initSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(SchemaSQL); err != nil {
			return fmt.Errorf("failed to initialize projection schema: %w", err)
		}
		return nil
	})
}
