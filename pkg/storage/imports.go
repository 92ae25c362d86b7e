package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LastImport returns the newest activity time recorded for importer name,
// or 0 when it never ran.
func (s *Store) LastImport(ctx context.Context, name string) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT last_activity FROM import_state WHERE name = ?`, name).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loading import state of %s: %w", name, err)
	}
	return last, nil
}

// SetLastImport records the newest activity imported by name.
func (s *Store) SetLastImport(ctx context.Context, name string, lastActivity int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_state (name, last_activity, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			last_activity = MAX(import_state.last_activity, excluded.last_activity),
			updated_at = excluded.updated_at
	`, name, lastActivity, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving import state of %s: %w", name, err)
	}
	return nil
}
