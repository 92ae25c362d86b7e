package importer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rubiojr/margin/pkg/log"
)

// chromeEpochOffset is the number of seconds between 1601-01-01, the
// Chrome/WebKit epoch, and the Unix epoch.
const chromeEpochOffset = 11644473600

// chromeTimeToUnixMilli converts microseconds since 1601-01-01 to Unix
// milliseconds.
func chromeTimeToUnixMilli(chromeTime int64) int64 {
	return chromeTime/1000 - chromeEpochOffset*1000
}

func unixMilliToChromeTime(ms int64) int64 {
	return (ms + chromeEpochOffset*1000) * 1000
}

// Chromium imports visits from a Chromium-family History database.
// Chromium keeps bookmarks in a separate JSON file, so none are imported.
type Chromium struct {
	name   string
	path   string
	logger *log.Logger
}

func (c *Chromium) Name() string { return c.name }
func (c *Chromium) Type() string { return "chromium" }

func (c *Chromium) Import(ctx context.Context, sink Sink, since int64) (Report, error) {
	c.logger.Debugf("importing Chromium history from %s", c.path)
	w := newWriter(sink, since)

	err := withCopy(ctx, c.path, c.logger, []string{"urls", "visits"}, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT u.url, u.title, v.visit_time
			FROM urls u
			INNER JOIN visits v ON u.id = v.url
			WHERE v.visit_time > ?
			ORDER BY v.visit_time
		`, unixMilliToChromeTime(since))
		if err != nil {
			return fmt.Errorf("querying visits: %w", err)
		}
		defer func() {
			if err := rows.Close(); err != nil {
				c.logger.Warnf("failed to close rows: %v", err)
			}
		}()

		for rows.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rawURL string
			var title sql.NullString
			var visitTime int64
			if err := rows.Scan(&rawURL, &title, &visitTime); err != nil {
				return fmt.Errorf("scanning visit: %w", err)
			}

			pageID, err := w.page(ctx, rawURL, title.String, "")
			if err != nil {
				return err
			}
			if pageID == "" {
				continue
			}
			if err := w.visit(ctx, pageID, chromeTimeToUnixMilli(visitTime)); err != nil {
				return err
			}
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("row iteration error: %w", err)
		}
		return w.flush(ctx)
	})
	if err != nil {
		return w.report, fmt.Errorf("importing %s: %w", c.name, err)
	}

	c.logger.Infof("imported %d visits of %d pages (%d skipped)", w.report.Visits, w.report.Pages, w.report.Skipped)
	return w.report, nil
}
