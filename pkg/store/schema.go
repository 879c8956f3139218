package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	statements := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// internTableNames lists every grow-only string-interning table: all
// share the (id, value unique) shape.
var internTableNames = []string{
	"streams",
	"descs",
	"exception_types",
	"exception_subtypes",
	"classifications",
	"templates",
	"hash_strings",
	"result_strings",
	"modules",
	"functions",
}

func createSchema(ctx context.Context, db *sql.DB) error {
	var statements []string
	for _, name := range internTableNames {
		statements = append(statements, fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, value TEXT NOT NULL UNIQUE)`, name))
	}

	statements = append(statements,
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			stream_id INTEGER NOT NULL REFERENCES streams(id),
			producer_ack_id INTEGER NOT NULL,
			result_string_id INTEGER NOT NULL REFERENCES result_strings(id),
			crash_id INTEGER REFERENCES crashes(id)
		)`,
		`CREATE TABLE IF NOT EXISTS crashes (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			hash_string_id INTEGER REFERENCES hash_strings(id),
			short_desc_id INTEGER REFERENCES descs(id),
			exception_type_id INTEGER REFERENCES exception_types(id),
			exception_subtype_id INTEGER REFERENCES exception_subtypes(id),
			classification_id INTEGER REFERENCES classifications(id),
			template_id INTEGER REFERENCES templates(id),
			stream_id INTEGER REFERENCES streams(id),
			raw_crash_file TEXT NOT NULL,
			raw_debug_detail TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stacktraces (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			ordinal INTEGER NOT NULL,
			raw_text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loaded_modules (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			module_id INTEGER NOT NULL REFERENCES modules(id),
			base_address TEXT NOT NULL,
			syms_loaded INTEGER NOT NULL,
			size TEXT,
			timestamp TEXT,
			version TEXT,
			checksum TEXT,
			UNIQUE(module_id, checksum)
		)`,
		`CREATE TABLE IF NOT EXISTS stackframes (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			ordinal INTEGER NOT NULL,
			module_id INTEGER REFERENCES modules(id),
			function_id INTEGER REFERENCES functions(id),
			offset TEXT,
			raw_text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS register_dumps (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			name TEXT NOT NULL,
			value INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS disasm (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			ordinal INTEGER NOT NULL,
			raw_text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS diffs (
			id INTEGER PRIMARY KEY,
			crash_id INTEGER NOT NULL REFERENCES crashes(id),
			template_id INTEGER REFERENCES templates(id),
			diff_text TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crashes_hash ON crashes(hash_string_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_stream ON results(stream_id)`,
		`CREATE INDEX IF NOT EXISTS idx_stackframes_crash ON stackframes(crash_id)`,
	)

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: apply schema statement %q: %w", stmt, err)
		}
	}
	return nil
}
