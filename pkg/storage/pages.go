package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rubiojr/margin/pkg/core"
)

const upsertPageSQL = `
	INSERT INTO pages (id, full_url, full_pdf_url, title, domain, hostname, content_type, fav_icon, text)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		full_url = excluded.full_url,
		full_pdf_url = CASE WHEN excluded.full_pdf_url != '' THEN excluded.full_pdf_url ELSE pages.full_pdf_url END,
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE pages.title END,
		domain = excluded.domain,
		hostname = excluded.hostname,
		content_type = excluded.content_type,
		fav_icon = CASE WHEN excluded.fav_icon != '' THEN excluded.fav_icon ELSE pages.fav_icon END,
		text = CASE WHEN excluded.text != '' THEN excluded.text ELSE pages.text END
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// fillPage derives the normalized id and the other computed fields of p
// from its full URL when they are missing.
func fillPage(p core.Page) (core.Page, error) {
	raw := p.FullURL
	if raw == "" {
		raw = p.URL
	}
	derived, err := core.NewPage(raw, p.Title)
	if err != nil {
		return p, err
	}
	if p.URL == "" {
		p.URL = derived.URL
	}
	if p.FullURL == "" {
		p.FullURL = raw
	}
	if p.Hostname == "" {
		p.Hostname = derived.Hostname
	}
	if p.Domain == "" {
		p.Domain = derived.Domain
	}
	if p.ContentType == "" {
		p.ContentType = derived.ContentType
	}
	return p, nil
}

func upsertPage(ctx context.Context, ex execer, p core.Page) error {
	_, err := ex.ExecContext(ctx, upsertPageSQL,
		p.URL, p.FullURL, p.FullPDFURL, p.Title, p.Domain, p.Hostname, string(p.ContentType), p.FavIcon, p.Text)
	if err != nil {
		return fmt.Errorf("upserting page %s: %w", p.URL, err)
	}
	return nil
}

// UpsertPage stores p, keeping existing title, text and icon when the new
// values are empty. It returns the page as stored.
func (s *Store) UpsertPage(ctx context.Context, p core.Page) (core.Page, error) {
	p, err := fillPage(p)
	if err != nil {
		return p, fmt.Errorf("preparing page: %w", err)
	}
	if err := upsertPage(ctx, s.db, p); err != nil {
		return p, err
	}
	return p, nil
}

// Page returns the stored page with the given normalized URL.
func (s *Store) Page(ctx context.Context, id string) (core.Page, error) {
	var p core.Page
	var contentType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_url, full_pdf_url, title, domain, hostname, content_type, fav_icon, text
		FROM pages WHERE id = ?
	`, id).Scan(&p.URL, &p.FullURL, &p.FullPDFURL, &p.Title, &p.Domain, &p.Hostname, &contentType, &p.FavIcon, &p.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("loading page %s: %w", id, err)
	}
	p.ContentType = core.ContentType(contentType)
	return p, nil
}

// AddVisit records a visit of page id at t (milliseconds). Duplicate visits
// at the same instant are ignored.
func (s *Store) AddVisit(ctx context.Context, pageID string, t int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO visits (page_id, time) VALUES (?, ?)`, pageID, t)
	if err != nil {
		return fmt.Errorf("adding visit to %s: %w", pageID, err)
	}
	return nil
}

// AddVisits stores many visits in one transaction.
func (s *Store) AddVisits(ctx context.Context, visits []core.Visit) error {
	if len(visits) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO visits (page_id, time) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() {
			if err := stmt.Close(); err != nil {
				s.logger.Warnf("failed to close statement: %v", err)
			}
		}()
		for _, v := range visits {
			if _, err := stmt.ExecContext(ctx, v.PageURL, v.Time); err != nil {
				return fmt.Errorf("adding visit to %s: %w", v.PageURL, err)
			}
		}
		return nil
	})
}

// SetBookmark bookmarks page id at t, replacing an earlier bookmark time.
func (s *Store) SetBookmark(ctx context.Context, pageID string, t int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmarks (page_id, time) VALUES (?, ?)
		ON CONFLICT (page_id) DO UPDATE SET time = excluded.time
	`, pageID, t)
	if err != nil {
		return fmt.Errorf("bookmarking %s: %w", pageID, err)
	}
	return nil
}

func (s *Store) RemoveBookmark(ctx context.Context, pageID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE page_id = ?`, pageID)
	if err != nil {
		return fmt.Errorf("removing bookmark of %s: %w", pageID, err)
	}
	return expectAffected(res, "bookmark "+pageID)
}

// PutAnnotation creates or updates an annotation. A page stub is created
// when the annotated page is not stored yet.
func (s *Store) PutAnnotation(ctx context.Context, a core.Annotation) (core.Annotation, error) {
	if a.URL == "" || a.PageURL == "" {
		return a, fmt.Errorf("annotation requires an id and a page url")
	}
	if !a.PrivacyLevel.Valid() {
		return a, fmt.Errorf("annotation %s: %w", a.URL, core.ErrInvalidPrivacyLevel)
	}
	if a.LastEdited == 0 {
		a.LastEdited = a.CreatedWhen
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stub, err := fillPage(core.Page{URL: a.PageURL, FullURL: "https://" + a.PageURL})
		if err != nil {
			return fmt.Errorf("preparing page for annotation %s: %w", a.URL, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO pages (id, full_url, domain, hostname, content_type)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (id) DO NOTHING
		`, stub.URL, stub.FullURL, stub.Domain, stub.Hostname, string(stub.ContentType)); err != nil {
			return fmt.Errorf("creating page for annotation %s: %w", a.URL, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO annotations (id, page_id, body, comment, privacy_level, created_when, last_edited)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				body = excluded.body,
				comment = excluded.comment,
				privacy_level = excluded.privacy_level,
				last_edited = excluded.last_edited
		`, a.URL, a.PageURL, a.Body, a.Comment, int(a.PrivacyLevel), a.CreatedWhen, a.LastEdited)
		if err != nil {
			return fmt.Errorf("storing annotation %s: %w", a.URL, err)
		}
		return nil
	})
	return a, err
}

func (s *Store) DeleteAnnotation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting annotation %s: %w", id, err)
	}
	return expectAffected(res, "annotation "+id)
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
