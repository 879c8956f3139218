package store

import (
	"context"
	"fmt"
)

// CrashSummary is a denormalized, read-only view of one crash row joined
// against its interned string tables, for the `store` CLI subcommands and any
// other reporting surface.
type CrashSummary struct {
	ID               int64
	Timestamp        int64
	Hash             string
	ShortDesc        string
	ExceptionType    string
	ExceptionSubtype string
	Classification   string
	Stream           string
}

// CrashesByHash returns every crash sharing the same interned hash
// string, most recent first. Used to group recurring crashes.
func (s *Store) CrashesByHash(ctx context.Context, hash string) ([]CrashSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.timestamp, h.value, d.value, et.value, es.value, cl.value, st.value
		FROM crashes c
		JOIN hash_strings h ON h.id = c.hash_string_id
		JOIN descs d ON d.id = c.short_desc_id
		JOIN exception_types et ON et.id = c.exception_type_id
		JOIN exception_subtypes es ON es.id = c.exception_subtype_id
		JOIN classifications cl ON cl.id = c.classification_id
		JOIN streams st ON st.id = c.stream_id
		WHERE h.value = ?
		ORDER BY c.timestamp DESC`, hash)
	if err != nil {
		return nil, fmt.Errorf("store: query crashes by hash: %w", err)
	}
	defer rows.Close()

	return scanCrashSummaries(rows)
}

// RecentCrashes returns the most recent crashes across every stream.
func (s *Store) RecentCrashes(ctx context.Context, limit int) ([]CrashSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.timestamp, h.value, d.value, et.value, es.value, cl.value, st.value
		FROM crashes c
		JOIN hash_strings h ON h.id = c.hash_string_id
		JOIN descs d ON d.id = c.short_desc_id
		JOIN exception_types et ON et.id = c.exception_type_id
		JOIN exception_subtypes es ON es.id = c.exception_subtype_id
		JOIN classifications cl ON cl.id = c.classification_id
		JOIN streams st ON st.id = c.stream_id
		ORDER BY c.timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query recent crashes: %w", err)
	}
	defer rows.Close()

	return scanCrashSummaries(rows)
}

// DistinctHashCount returns the number of unique crash signatures seen, a
// cheap triage signal for how many distinct bugs a fuzzing run has found.
func (s *Store) DistinctHashCount(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT hash_string_id) FROM crashes`)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count distinct hashes: %w", err)
	}
	return n, nil
}

func scanCrashSummaries(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]CrashSummary, error) {
	var out []CrashSummary
	for rows.Next() {
		var c CrashSummary
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.Hash, &c.ShortDesc,
			&c.ExceptionType, &c.ExceptionSubtype, &c.Classification, &c.Stream); err != nil {
			return nil, fmt.Errorf("store: scan crash summary: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate crash summaries: %w", err)
	}
	return out, nil
}
