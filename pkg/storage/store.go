// Package storage keeps pages, their activity, annotations and lists in a
// single SQLite database with FTS5 indexes. A Store is the term index,
// activity timeline and page lookup used by the search service.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/margin/pkg/db"
	"github.com/rubiojr/margin/pkg/log"
)

// ErrNotFound is returned when a page, annotation or list does not exist.
var ErrNotFound = errors.New("not found")

// DatabaseFile is the name of the database inside the storage directory.
const DatabaseFile = "margin.db"

// Pragmas applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(30000)",
	"cache_size(-64000)", // 64MB
	"temp_store(memory)",
	"mmap_size(268435456)", // 256MB
	"foreign_keys(1)",
}

func dsn(path string) string {
	q := url.Values{"_pragma": pragmas}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path), RawQuery: q.Encode()}
	return u.String()
}

type Store struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	s, err := OpenWithoutMigrations(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitializeDatabase(ctx, s.db); err != nil {
		_ = s.db.Close()
		return nil, fmt.Errorf("initializing database: %w", err)
	}
	return s, nil
}

// OpenWithoutMigrations opens the database leaving the schema untouched.
// The migrate command uses it to report pending migrations.
func OpenWithoutMigrations(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	sqlDB, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &Store{db: sqlDB, path: path, logger: log.ForService("storage")}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection for migrations.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				s.logger.Warnf("failed to rollback transaction: %v", err)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.Warnf("failed to close rows: %v", err)
	}
}
