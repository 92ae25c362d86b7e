package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubiojr/margin/pkg/core"
)

// ListEntry is a page or annotation membership in a list. Exactly one of
// PageURL and AnnotationURL is set.
type ListEntry struct {
	ListID        int64  `json:"list_id"`
	PageURL       string `json:"page_url,omitempty"`
	AnnotationURL string `json:"annotation_url,omitempty"`
	CreatedAt     int64  `json:"created_at"`
}

// each runs query and calls scan for every row.
func (s *Store) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer s.closeRows(rows)
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) ForEachPage(ctx context.Context, fn func(core.Page) error) error {
	return s.each(ctx, `
		SELECT id, full_url, full_pdf_url, title, domain, hostname, content_type, fav_icon, text
		FROM pages ORDER BY id
	`, func(rows *sql.Rows) error {
		var p core.Page
		var contentType string
		if err := rows.Scan(&p.URL, &p.FullURL, &p.FullPDFURL, &p.Title, &p.Domain, &p.Hostname, &contentType, &p.FavIcon, &p.Text); err != nil {
			return fmt.Errorf("scanning page: %w", err)
		}
		p.ContentType = core.ContentType(contentType)
		return fn(p)
	})
}

func (s *Store) ForEachVisit(ctx context.Context, fn func(core.Visit) error) error {
	return s.each(ctx, `SELECT page_id, time FROM visits ORDER BY id`, func(rows *sql.Rows) error {
		var v core.Visit
		if err := rows.Scan(&v.PageURL, &v.Time); err != nil {
			return fmt.Errorf("scanning visit: %w", err)
		}
		return fn(v)
	})
}

func (s *Store) ForEachBookmark(ctx context.Context, fn func(core.Bookmark) error) error {
	return s.each(ctx, `SELECT page_id, time FROM bookmarks ORDER BY page_id`, func(rows *sql.Rows) error {
		var b core.Bookmark
		if err := rows.Scan(&b.PageURL, &b.Time); err != nil {
			return fmt.Errorf("scanning bookmark: %w", err)
		}
		return fn(b)
	})
}

func (s *Store) ForEachAnnotation(ctx context.Context, fn func(core.Annotation) error) error {
	return s.each(ctx, `SELECT `+annotationColumnsSQL+` FROM annotations a ORDER BY a.created_when, a.id`,
		func(rows *sql.Rows) error {
			a, err := scanAnnotation(rows)
			if err != nil {
				return fmt.Errorf("scanning annotation: %w", err)
			}
			return fn(a)
		})
}

func (s *Store) ForEachListEntry(ctx context.Context, fn func(ListEntry) error) error {
	return s.each(ctx, `
		SELECT list_id, page_id, '', created_at FROM page_list_entries
		UNION ALL
		SELECT list_id, '', annotation_id, created_at FROM annotation_list_entries
		ORDER BY 1, 2, 3
	`, func(rows *sql.Rows) error {
		var e ListEntry
		if err := rows.Scan(&e.ListID, &e.PageURL, &e.AnnotationURL, &e.CreatedAt); err != nil {
			return fmt.Errorf("scanning list entry: %w", err)
		}
		return fn(e)
	})
}

// RestoreListEntry re-creates a list membership keeping its creation time.
func (s *Store) RestoreListEntry(ctx context.Context, e ListEntry) error {
	var err error
	if e.AnnotationURL != "" {
		_, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO annotation_list_entries (list_id, annotation_id, created_at) VALUES (?, ?, ?)
		`, e.ListID, e.AnnotationURL, e.CreatedAt)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO page_list_entries (list_id, page_id, created_at) VALUES (?, ?, ?)
		`, e.ListID, e.PageURL, e.CreatedAt)
	}
	if err != nil {
		return fmt.Errorf("restoring entry of list %d: %w", e.ListID, mapConstraint(err))
	}
	return nil
}
