// Package store implements the content-addressed result store: a SQLite
// database of interned, deduplicated crash facts plus three directories
// of raw on-disk payloads.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// Store owns the database handle and the crashfiles/crashdata/templates
// directory layout.
type Store struct {
	db            *sql.DB
	crashfilesDir string
	crashdataDir  string
	templatesDir  string
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// ensures the three content directories exist.
func Open(ctx context.Context, dbPath, crashfilesDir, crashdataDir, templatesDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}
	for _, dir := range []string{crashfilesDir, crashdataDir, templatesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", dir, err)
		}
	}

	db, err := openSQLite(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:            db,
		crashfilesDir: crashfilesDir,
		crashdataDir:  crashdataDir,
		templatesDir:  templatesDir,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) crashfilePath(crashID int64) string {
	return filepath.Join(s.crashfilesDir, fmt.Sprintf("%d.raw", crashID))
}

func (s *Store) crashdataPath(crashID int64) string {
	return filepath.Join(s.crashdataDir, fmt.Sprintf("%d.txt", crashID))
}

// TemplatePath returns the on-disk path a template's seed bytes would be
// written to, for callers populating the templates directory directly.
func (s *Store) TemplatePath(templateID int64) string {
	return filepath.Join(s.templatesDir, fmt.Sprintf("%d.raw", templateID))
}
