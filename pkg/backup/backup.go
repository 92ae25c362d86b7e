// Package backup writes and reads zstd-compressed JSON-lines snapshots of
// a margin database.
//
// A snapshot starts with a header record followed by one record per page,
// visit, bookmark, list, annotation and list entry, in an order that can be
// restored front to back.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/log"
	"github.com/rubiojr/margin/pkg/storage"
)

// FormatVersion is the snapshot format written by Export.
const FormatVersion = 1

// ErrUnsupportedFormat is returned for snapshots written by a newer version.
var ErrUnsupportedFormat = errors.New("unsupported backup format")

const (
	kindHeader     = "header"
	kindPage       = "page"
	kindVisit      = "visit"
	kindBookmark   = "bookmark"
	kindList       = "list"
	kindAnnotation = "annotation"
	kindListEntry  = "list_entry"
)

type record struct {
	Kind       string             `json:"kind"`
	Version    int                `json:"version,omitempty"`
	CreatedAt  int64              `json:"created_at,omitempty"`
	Page       *core.Page         `json:"page,omitempty"`
	Visit      *core.Visit        `json:"visit,omitempty"`
	Bookmark   *core.Bookmark     `json:"bookmark,omitempty"`
	List       *core.List         `json:"list,omitempty"`
	Annotation *core.Annotation   `json:"annotation,omitempty"`
	ListEntry  *storage.ListEntry `json:"list_entry,omitempty"`
}

// Summary counts the records of a snapshot.
type Summary struct {
	Pages       int `json:"pages"`
	Visits      int `json:"visits"`
	Bookmarks   int `json:"bookmarks"`
	Lists       int `json:"lists"`
	Annotations int `json:"annotations"`
	ListEntries int `json:"list_entries"`
}

// Source is what Export reads. *storage.Store implements it.
type Source interface {
	ForEachPage(ctx context.Context, fn func(core.Page) error) error
	ForEachVisit(ctx context.Context, fn func(core.Visit) error) error
	ForEachBookmark(ctx context.Context, fn func(core.Bookmark) error) error
	Lists(ctx context.Context) ([]core.List, error)
	ForEachAnnotation(ctx context.Context, fn func(core.Annotation) error) error
	ForEachListEntry(ctx context.Context, fn func(storage.ListEntry) error) error
}

// Target is what Restore writes to. *storage.Store implements it.
type Target interface {
	UpsertPage(ctx context.Context, p core.Page) (core.Page, error)
	AddVisits(ctx context.Context, visits []core.Visit) error
	SetBookmark(ctx context.Context, pageID string, t int64) error
	RestoreList(ctx context.Context, l core.List) error
	PutAnnotation(ctx context.Context, a core.Annotation) (core.Annotation, error)
	RestoreListEntry(ctx context.Context, e storage.ListEntry) error
}

// Export writes a snapshot of src to w.
func Export(ctx context.Context, src Source, w io.Writer) (Summary, error) {
	var summary Summary
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return summary, fmt.Errorf("creating zstd encoder: %w", err)
	}
	buf := bufio.NewWriter(enc)
	jsonEnc := json.NewEncoder(buf)

	write := func(r record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return jsonEnc.Encode(r)
	}

	err = func() error {
		if err := write(record{Kind: kindHeader, Version: FormatVersion, CreatedAt: time.Now().UnixMilli()}); err != nil {
			return err
		}
		if err := src.ForEachPage(ctx, func(p core.Page) error {
			summary.Pages++
			return write(record{Kind: kindPage, Page: &p})
		}); err != nil {
			return fmt.Errorf("exporting pages: %w", err)
		}
		if err := src.ForEachVisit(ctx, func(v core.Visit) error {
			summary.Visits++
			return write(record{Kind: kindVisit, Visit: &v})
		}); err != nil {
			return fmt.Errorf("exporting visits: %w", err)
		}
		if err := src.ForEachBookmark(ctx, func(b core.Bookmark) error {
			summary.Bookmarks++
			return write(record{Kind: kindBookmark, Bookmark: &b})
		}); err != nil {
			return fmt.Errorf("exporting bookmarks: %w", err)
		}

		lists, err := src.Lists(ctx)
		if err != nil {
			return fmt.Errorf("exporting lists: %w", err)
		}
		for _, l := range lists {
			summary.Lists++
			if err := write(record{Kind: kindList, List: &l}); err != nil {
				return err
			}
		}

		if err := src.ForEachAnnotation(ctx, func(a core.Annotation) error {
			summary.Annotations++
			// Memberships are written as list entries.
			a.Lists = nil
			return write(record{Kind: kindAnnotation, Annotation: &a})
		}); err != nil {
			return fmt.Errorf("exporting annotations: %w", err)
		}
		if err := src.ForEachListEntry(ctx, func(e storage.ListEntry) error {
			summary.ListEntries++
			return write(record{Kind: kindListEntry, ListEntry: &e})
		}); err != nil {
			return fmt.Errorf("exporting list entries: %w", err)
		}
		return buf.Flush()
	}()
	if err != nil {
		_ = enc.Close()
		return summary, err
	}
	if err := enc.Close(); err != nil {
		return summary, fmt.Errorf("finishing zstd stream: %w", err)
	}
	return summary, nil
}

// Restore reads a snapshot from r into dst. Existing rows with the same
// keys are updated.
func Restore(ctx context.Context, dst Target, r io.Reader) (Summary, error) {
	logger := log.ForService("backup")
	var summary Summary

	dec, err := zstd.NewReader(r)
	if err != nil {
		return summary, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	jsonDec := json.NewDecoder(dec)
	var header record
	if err := jsonDec.Decode(&header); err != nil {
		return summary, fmt.Errorf("reading backup header: %w", err)
	}
	if header.Kind != kindHeader {
		return summary, fmt.Errorf("%w: missing header", ErrUnsupportedFormat)
	}
	if header.Version > FormatVersion {
		return summary, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, header.Version)
	}

	var visits []core.Visit
	flushVisits := func() error {
		if len(visits) == 0 {
			return nil
		}
		if err := dst.AddVisits(ctx, visits); err != nil {
			return err
		}
		visits = visits[:0]
		return nil
	}

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		var rec record
		err := jsonDec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("reading record %d: %w", line, err)
		}

		if rec.Kind != kindVisit {
			if err := flushVisits(); err != nil {
				return summary, fmt.Errorf("restoring visits: %w", err)
			}
		}

		switch {
		case rec.Kind == kindPage && rec.Page != nil:
			_, err = dst.UpsertPage(ctx, *rec.Page)
			summary.Pages++
		case rec.Kind == kindVisit && rec.Visit != nil:
			visits = append(visits, *rec.Visit)
			summary.Visits++
			if len(visits) >= 1000 {
				err = flushVisits()
			}
		case rec.Kind == kindBookmark && rec.Bookmark != nil:
			err = dst.SetBookmark(ctx, rec.Bookmark.PageURL, rec.Bookmark.Time)
			summary.Bookmarks++
		case rec.Kind == kindList && rec.List != nil:
			err = dst.RestoreList(ctx, *rec.List)
			summary.Lists++
		case rec.Kind == kindAnnotation && rec.Annotation != nil:
			_, err = dst.PutAnnotation(ctx, *rec.Annotation)
			summary.Annotations++
		case rec.Kind == kindListEntry && rec.ListEntry != nil:
			err = dst.RestoreListEntry(ctx, *rec.ListEntry)
			summary.ListEntries++
		default:
			logger.Warnf("skipping unknown record %d of kind %q", line, rec.Kind)
		}
		if err != nil {
			return summary, fmt.Errorf("restoring record %d (%s): %w", line, rec.Kind, err)
		}
	}

	if err := flushVisits(); err != nil {
		return summary, fmt.Errorf("restoring visits: %w", err)
	}
	return summary, nil
}
