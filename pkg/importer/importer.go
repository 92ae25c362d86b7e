// Package importer reads browser history databases into margin.
//
// Browser databases are locked while the browser runs, so each import copies
// the file to a temporary directory and opens the copy read-only.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rubiojr/margin/pkg/config"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/log"
)

// visitBatch is how many visits are written per transaction.
const visitBatch = 1000

// Sink receives imported pages and activity. *storage.Store implements it.
type Sink interface {
	UpsertPage(ctx context.Context, p core.Page) (core.Page, error)
	AddVisits(ctx context.Context, visits []core.Visit) error
	SetBookmark(ctx context.Context, pageID string, t int64) error
}

// Report summarizes one import run.
type Report struct {
	Pages     int
	Visits    int
	Bookmarks int
	Skipped   int
	// Newest is the time of the newest imported activity, or the since
	// value passed to Import when nothing new was found.
	Newest int64
}

// Importer reads one browser profile.
type Importer interface {
	Name() string
	Type() string
	// Import writes activity newer than since (milliseconds) to sink.
	Import(ctx context.Context, sink Sink, since int64) (Report, error)
}

// New returns the importer for a configured browser type.
func New(name string, info config.ImporterInfo) (Importer, error) {
	switch info.Type {
	case config.ImporterChromium:
		return &Chromium{name: name, path: info.Path, logger: log.ForService("importer:" + name)}, nil
	case config.ImporterFirefox:
		return &Firefox{name: name, path: info.Path, logger: log.ForService("importer:" + name)}, nil
	}
	return nil, fmt.Errorf("importer %s: unknown type %q", name, info.Type)
}

// importable reports whether a history URL points to a web page.
func importable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// openCopy copies the database at src into tempDir and opens it read-only.
func openCopy(src, tempDir string, logger *log.Logger) (*sql.DB, error) {
	if _, err := os.Stat(src); err != nil {
		return nil, fmt.Errorf("history database %s: %w", src, err)
	}
	tmpDB := filepath.Join(tempDir, filepath.Base(src))

	sourceFile, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("opening source file: %w", err)
	}
	defer func() {
		if err := sourceFile.Close(); err != nil {
			logger.Warnf("failed to close source file: %v", err)
		}
	}()

	destFile, err := os.Create(tmpDB)
	if err != nil {
		return nil, fmt.Errorf("creating destination file: %w", err)
	}
	defer func() {
		if err := destFile.Close(); err != nil {
			logger.Warnf("failed to close destination file: %v", err)
		}
	}()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return nil, fmt.Errorf("copying %s to %s: %w", src, tmpDB, err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", tmpDB))
	if err != nil {
		return nil, fmt.Errorf("opening database in read-only mode: %w", err)
	}
	return db, nil
}

// withCopy runs fn against a temporary read-only copy of src.
func withCopy(ctx context.Context, src string, logger *log.Logger, tables []string, fn func(db *sql.DB) error) error {
	tempDir, err := os.MkdirTemp("", "margin_import_*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			logger.Warnf("failed to remove temp directory: %v", err)
		}
	}()

	db, err := openCopy(src, tempDir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("failed to close database: %v", err)
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("verifying database connection: %w", err)
	}
	for _, table := range tables {
		var one int
		err := db.QueryRowContext(ctx, "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("table %s not found in %s", table, src)
		}
		if err != nil {
			return fmt.Errorf("checking table %s: %w", table, err)
		}
	}
	return fn(db)
}

// writer deduplicates pages and batches visits for a Sink.
type writer struct {
	sink   Sink
	pages  map[string]string
	visits []core.Visit
	report Report
}

func newWriter(sink Sink, since int64) *writer {
	return &writer{sink: sink, pages: make(map[string]string), report: Report{Newest: since}}
}

// page stores the page for rawURL once per run and returns its id, or ""
// when the URL is skipped.
func (w *writer) page(ctx context.Context, rawURL, title, text string) (string, error) {
	if !importable(rawURL) {
		w.report.Skipped++
		return "", nil
	}
	normalized, err := core.NormalizeURL(rawURL)
	if err != nil {
		w.report.Skipped++
		return "", nil
	}
	if id, ok := w.pages[normalized]; ok {
		return id, nil
	}

	p, err := w.sink.UpsertPage(ctx, core.Page{
		URL:     normalized,
		FullURL: rawURL,
		Title:   strings.TrimSpace(title),
		Text:    strings.TrimSpace(text),
	})
	if err != nil {
		return "", err
	}
	w.pages[normalized] = p.URL
	w.report.Pages++
	return p.URL, nil
}

func (w *writer) visit(ctx context.Context, pageID string, t int64) error {
	w.visits = append(w.visits, core.Visit{PageURL: pageID, Time: t})
	w.report.Visits++
	w.report.Newest = max(w.report.Newest, t)
	if len(w.visits) >= visitBatch {
		return w.flush(ctx)
	}
	return nil
}

func (w *writer) bookmark(ctx context.Context, pageID string, t int64) error {
	if err := w.sink.SetBookmark(ctx, pageID, t); err != nil {
		return err
	}
	w.report.Bookmarks++
	w.report.Newest = max(w.report.Newest, t)
	return nil
}

func (w *writer) flush(ctx context.Context) error {
	if len(w.visits) == 0 {
		return nil
	}
	if err := w.sink.AddVisits(ctx, w.visits); err != nil {
		return err
	}
	w.visits = w.visits[:0]
	return nil
}
