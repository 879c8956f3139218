package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// execer is satisfied by both *sql.DB and *sql.Tx, so internID works
// inside or outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// internID implements id_for_string(table, s): return the existing id for
// s in table if present, else insert and return the new id. Concurrent
// inserters race on the UNIQUE(value) constraint; the loser reads back
// the winner's row instead of failing.
func internID(ctx context.Context, ex execer, table, value string) (int64, error) {
	var id int64
	row := ex.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE value = ?", table), value)
	err := row.Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: lookup %s: %w", table, err)
	}

	res, err := ex.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s(value) VALUES (?)", table), value)
	if err != nil {
		if isUniqueViolation(err) {
			row := ex.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE value = ?", table), value)
			if scanErr := row.Scan(&id); scanErr == nil {
				return id, nil
			}
		}
		return 0, fmt.Errorf("store: insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
