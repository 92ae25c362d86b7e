package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ftsSources maps each full-text table to the statement that refills it
// from its source table.
var ftsSources = []struct {
	table, source, refill string
}{
	{"pages_fts", "pages", `INSERT INTO pages_fts (rowid, title, url, text) SELECT rowid, title, full_url, text FROM pages`},
	{"annotations_fts", "annotations", `INSERT INTO annotations_fts (rowid, body, comment) SELECT rowid, body, comment FROM annotations`},
}

// IntegrityCheck runs SQLite's integrity check and, when deep is set,
// verifies that the full-text tables are intact and in sync with their
// source tables.
func (s *Store) IntegrityCheck(ctx context.Context, deep bool) error {
	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return fmt.Errorf("running integrity check: %w", err)
	}
	var problems []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			s.closeRows(rows)
			return fmt.Errorf("reading integrity check: %w", err)
		}
		if line != "ok" {
			problems = append(problems, line)
		}
	}
	err = rows.Err()
	s.closeRows(rows)
	if err != nil {
		return fmt.Errorf("reading integrity check: %w", err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("integrity check failed: %s", strings.Join(problems, "; "))
	}
	if !deep {
		return nil
	}

	for _, fts := range ftsSources {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES ('integrity-check')", fts.table, fts.table)); err != nil {
			return fmt.Errorf("%s integrity check: %w", fts.table, err)
		}
		var missing int
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT (SELECT COUNT(*) FROM %s) - (SELECT COUNT(*) FROM %s)
		`, fts.source, fts.table)).Scan(&missing)
		if err != nil {
			return fmt.Errorf("comparing %s with %s: %w", fts.table, fts.source, err)
		}
		if missing != 0 {
			return fmt.Errorf("%s is out of sync with %s (%d rows differ)", fts.table, fts.source, missing)
		}
	}
	return nil
}

// RebuildFullText refills the full-text tables from their source tables.
func (s *Store) RebuildFullText(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, fts := range ftsSources {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+fts.table); err != nil {
				return fmt.Errorf("clearing %s: %w", fts.table, err)
			}
			if _, err := tx.ExecContext(ctx, fts.refill); err != nil {
				return fmt.Errorf("refilling %s: %w", fts.table, err)
			}
		}
		s.logger.Infof("Rebuilt full-text indexes")
		return nil
	})
}

// Analyze refreshes the query planner statistics.
func (s *Store) Analyze(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "ANALYZE"); err != nil {
		return fmt.Errorf("analyzing database: %w", err)
	}
	return nil
}

// Vacuum rewrites the database file, reclaiming free pages.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("vacuuming database: %w", err)
	}
	return nil
}
