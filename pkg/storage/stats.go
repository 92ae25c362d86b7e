package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
)

// Stats summarizes the contents of the database.
type Stats struct {
	Pages       int    `json:"pages"`
	Visits      int    `json:"visits"`
	Bookmarks   int    `json:"bookmarks"`
	Annotations int    `json:"annotations"`
	Lists       int    `json:"lists"`
	Oldest      *int64 `json:"oldest_activity,omitempty"`
	Newest      *int64 `json:"newest_activity,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"pages", &stats.Pages},
		{"visits", &stats.Visits},
		{"bookmarks", &stats.Bookmarks},
		{"annotations", &stats.Annotations},
		{"lists", &stats.Lists},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MIN(t), MAX(t) FROM (
			SELECT time AS t FROM visits
			UNION ALL SELECT time FROM bookmarks
			UNION ALL SELECT created_when FROM annotations
		)
	`).Scan(&oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("getting activity range: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = &oldest.Int64
		stats.Newest = &newest.Int64
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return stats, nil
}

// Optimize merges the full-text index segments, refreshes query planner
// statistics and truncates the WAL.
func (s *Store) Optimize(ctx context.Context) error {
	statements := []string{
		"INSERT INTO pages_fts (pages_fts) VALUES ('optimize')",
		"INSERT INTO annotations_fts (annotations_fts) VALUES ('optimize')",
		"PRAGMA optimize",
		"PRAGMA wal_checkpoint(TRUNCATE)",
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running %q: %w", stmt, err)
		}
	}
	return nil
}
