package importer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubiojr/margin/pkg/log"
)

// Firefox imports visits and bookmarks from a places.sqlite database.
// Firefox stores times as microseconds since the Unix epoch.
type Firefox struct {
	name   string
	path   string
	logger *log.Logger
}

func (f *Firefox) Name() string { return f.name }
func (f *Firefox) Type() string { return "firefox" }

func (f *Firefox) Import(ctx context.Context, sink Sink, since int64) (Report, error) {
	f.logger.Debugf("importing Firefox history from %s", f.path)
	w := newWriter(sink, since)

	err := withCopy(ctx, f.path, f.logger, []string{"moz_places", "moz_historyvisits", "moz_bookmarks"}, func(db *sql.DB) error {
		if err := f.importVisits(ctx, db, w, since); err != nil {
			return err
		}
		if err := w.flush(ctx); err != nil {
			return err
		}
		return f.importBookmarks(ctx, db, w, since)
	})
	if err != nil {
		return w.report, fmt.Errorf("importing %s: %w", f.name, err)
	}

	f.logger.Infof("imported %d visits and %d bookmarks of %d pages (%d skipped)",
		w.report.Visits, w.report.Bookmarks, w.report.Pages, w.report.Skipped)
	return w.report, nil
}

func (f *Firefox) importVisits(ctx context.Context, db *sql.DB, w *writer, since int64) error {
	rows, err := db.QueryContext(ctx, `
		SELECT p.url, p.title, p.description, h.visit_date
		FROM moz_places p
		INNER JOIN moz_historyvisits h ON p.id = h.place_id
		WHERE h.visit_date > ?
		ORDER BY h.visit_date
	`, since*1000)
	if err != nil {
		return fmt.Errorf("querying visits: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			f.logger.Warnf("failed to close rows: %v", err)
		}
	}()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rawURL string
		var title, description sql.NullString
		var visitDate int64
		if err := rows.Scan(&rawURL, &title, &description, &visitDate); err != nil {
			return fmt.Errorf("scanning visit: %w", err)
		}

		pageID, err := w.page(ctx, rawURL, title.String, description.String)
		if err != nil {
			return err
		}
		if pageID == "" {
			continue
		}
		if err := w.visit(ctx, pageID, visitDate/1000); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (f *Firefox) importBookmarks(ctx context.Context, db *sql.DB, w *writer, since int64) error {
	// type 1 rows are bookmarks, the rest are folders and separators.
	rows, err := db.QueryContext(ctx, `
		SELECT p.url, COALESCE(b.title, p.title), b.dateAdded
		FROM moz_bookmarks b
		INNER JOIN moz_places p ON p.id = b.fk
		WHERE b.type = 1 AND b.dateAdded > ?
		ORDER BY b.dateAdded
	`, since*1000)
	if err != nil {
		return fmt.Errorf("querying bookmarks: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			f.logger.Warnf("failed to close rows: %v", err)
		}
	}()

	type bookmark struct {
		url, title string
		added      int64
	}
	var bookmarks []bookmark
	for rows.Next() {
		var b bookmark
		var title sql.NullString
		if err := rows.Scan(&b.url, &title, &b.added); err != nil {
			return fmt.Errorf("scanning bookmark: %w", err)
		}
		b.title = title.String
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, b := range bookmarks {
		pageID, err := w.page(ctx, b.url, b.title, "")
		if err != nil {
			return err
		}
		if pageID == "" {
			continue
		}
		if err := w.bookmark(ctx, pageID, b.added/1000); err != nil {
			return err
		}
	}
	return nil
}
