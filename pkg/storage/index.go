package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
)

var (
	_ search.TermMatcher = (*Store)(nil)
	_ search.Timeline    = (*Store)(nil)
	_ search.PageLookup  = (*Store)(nil)
)

// conditions accumulates SQL predicates and their arguments.
type conditions struct {
	preds []string
	args  []any
}

func (c *conditions) add(pred string, args ...any) {
	c.preds = append(c.preds, pred)
	c.args = append(c.args, args...)
}

// and renders the predicates as " AND p1 AND p2", or "" when empty.
func (c *conditions) and() string {
	if len(c.preds) == 0 {
		return ""
	}
	return " AND " + strings.Join(c.preds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// normalizeDomain lowercases d and drops a leading www.
func normalizeDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	return strings.TrimPrefix(d, "www.")
}

// addTimeFilter restricts col to the inclusive FromWhen/UntilWhen bounds.
func (c *conditions) addTimeFilter(col string, f search.Filter) {
	if f.FromWhen != nil {
		c.add(col+" >= ?", *f.FromWhen)
	}
	if f.UntilWhen != nil {
		c.add(col+" <= ?", *f.UntilWhen)
	}
}

// addPageFilter adds domain, content type and list filters on the pages
// table aliased p. When annotationCol is set, list membership of that
// annotation also satisfies a list filter.
func (c *conditions) addPageFilter(f search.Filter, annotationCol string) {
	if len(f.Domains) > 0 {
		domains := make([]any, len(f.Domains))
		for i, d := range f.Domains {
			domains[i] = normalizeDomain(d)
		}
		ph := placeholders(len(domains))
		args := append(append([]any{}, domains...), domains...)
		c.add("(p.domain IN ("+ph+") OR p.hostname IN ("+ph+"))", args...)
	}
	if len(f.ContentTypes) > 0 {
		types := make([]any, len(f.ContentTypes))
		for i, ct := range f.ContentTypes {
			types[i] = string(ct)
		}
		c.add("p.content_type IN ("+placeholders(len(types))+")", types...)
	}
	for _, listID := range f.ListIDs {
		pred := "EXISTS (SELECT 1 FROM page_list_entries e WHERE e.page_id = p.id AND e.list_id = ?)"
		if annotationCol == "" {
			c.add(pred, listID)
			continue
		}
		c.add("("+pred+" OR EXISTS (SELECT 1 FROM annotation_list_entries ae WHERE ae.annotation_id = "+
			annotationCol+" AND ae.list_id = ?))", listID, listID)
	}
}

func quoteFTS(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// matchExpression builds an FTS5 query requiring every term and phrase,
// optionally restricted to columns. Terms become prefix queries when
// prefix is set.
func matchExpression(terms, phrases, columns []string, prefix bool) string {
	var parts []string
	for _, t := range terms {
		part := quoteFTS(t)
		if prefix {
			part += "*"
		}
		parts = append(parts, part)
	}
	for _, p := range phrases {
		parts = append(parts, quoteFTS(p))
	}
	if len(parts) == 0 {
		return ""
	}
	expr := strings.Join(parts, " AND ")
	if len(columns) > 0 {
		expr = "{" + strings.Join(columns, " ") + "} : (" + expr + ")"
	}
	return expr
}

func pageColumns(o search.TermsOptions) []string {
	if o.MatchPageText && o.MatchPageTitleURL {
		return nil
	}
	if o.MatchPageText {
		return []string{"text"}
	}
	return []string{"title", "url"}
}

func annotationColumns(o search.TermsOptions) []string {
	if o.MatchHighlights && o.MatchNotes {
		return nil
	}
	if o.MatchHighlights {
		return []string{"body"}
	}
	return []string{"comment"}
}

func parseIDList(s string) []int64 {
	ids := []int64{}
	for _, part := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// QueryPages returns pages whose title, URL or text match q, with their
// latest visit or bookmark time. With a time filter only pages with
// activity inside the range are returned.
func (s *Store) QueryPages(ctx context.Context, q search.TermsQuery) ([]search.PageHit, error) {
	opts := q.Options.Normalized()
	match := matchExpression(q.Terms, q.Phrases, pageColumns(opts), opts.MatchTermsFuzzyStartsWith)
	if match == "" {
		return nil, nil
	}

	var activity conditions
	activity.addTimeFilter("a.time", q.Filter)
	var where conditions
	where.addPageFilter(q.Filter, "")

	having := ""
	if q.Filter.FromWhen != nil || q.Filter.UntilWhen != nil {
		having = "HAVING COUNT(a.time) > 0"
	}

	query := `
		SELECT p.id, COALESCE(MAX(a.time), 0)
		FROM pages_fts
		JOIN pages p ON p.rowid = pages_fts.rowid
		LEFT JOIN (
			SELECT page_id, time FROM visits
			UNION ALL
			SELECT page_id, time FROM bookmarks
		) a ON a.page_id = p.id` + activity.and() + `
		WHERE pages_fts MATCH ?` + where.and() + `
		GROUP BY p.id
		` + having

	args := append(append(activity.args, match), where.args...)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	defer s.closeRows(rows)

	var hits []search.PageHit
	for rows.Next() {
		var hit search.PageHit
		if err := rows.Scan(&hit.ID, &hit.LatestTimestamp); err != nil {
			return nil, fmt.Errorf("scanning page hit: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

const annotationColumnsSQL = `a.id, a.page_id, a.body, a.comment, a.privacy_level, a.created_when, a.last_edited,
	COALESCE((SELECT group_concat(list_id) FROM annotation_list_entries WHERE annotation_id = a.id), '')`

func scanAnnotation(sc interface{ Scan(...any) error }) (core.Annotation, error) {
	var a core.Annotation
	var privacy int
	var lists string
	if err := sc.Scan(&a.URL, &a.PageURL, &a.Body, &a.Comment, &privacy, &a.CreatedWhen, &a.LastEdited, &lists); err != nil {
		return a, err
	}
	a.PrivacyLevel = core.PrivacyLevel(privacy)
	a.Lists = parseIDList(lists)
	return a, nil
}

// QueryAnnotations returns annotations whose highlight or note match q.
// Time filters apply to the annotation creation time.
func (s *Store) QueryAnnotations(ctx context.Context, q search.TermsQuery) ([]core.Annotation, error) {
	opts := q.Options.Normalized()
	match := matchExpression(q.Terms, q.Phrases, annotationColumns(opts), opts.MatchTermsFuzzyStartsWith)
	if match == "" {
		return nil, nil
	}

	var where conditions
	where.addTimeFilter("a.created_when", q.Filter)
	where.addPageFilter(q.Filter, "a.id")

	query := `
		SELECT ` + annotationColumnsSQL + `
		FROM annotations_fts
		JOIN annotations a ON a.rowid = annotations_fts.rowid
		JOIN pages p ON p.id = a.page_id
		WHERE annotations_fts MATCH ?` + where.and()

	rows, err := s.db.QueryContext(ctx, query, append([]any{match}, where.args...)...)
	if err != nil {
		return nil, fmt.Errorf("querying annotations: %w", err)
	}
	defer s.closeRows(rows)

	var annotations []core.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning annotation: %w", err)
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// activityUnion returns a subquery yielding every visit, bookmark and
// annotation matching f, optionally strictly before a time, with columns
// kind, page_id, time, ref and the annotation fields.
func activityUnion(f search.Filter, before *int64) (string, []any) {
	var parts []string
	var args []any

	build := func(sel, from, timeCol, annotationCol string) {
		var c conditions
		if before != nil {
			c.add(timeCol+" < ?", *before)
		}
		c.addTimeFilter(timeCol, f)
		c.addPageFilter(f, annotationCol)
		parts = append(parts, sel+" "+from+" JOIN pages p ON p.id = x.page_id WHERE 1 = 1"+c.and())
		args = append(args, c.args...)
	}

	build(`SELECT 'visit' AS kind, x.page_id AS page_id, x.time AS time, CAST(x.id AS TEXT) AS ref,
		'' AS body, '' AS comment, 0 AS privacy_level, 0 AS last_edited, '' AS lists`,
		"FROM visits x", "x.time", "")
	build(`SELECT 'bookmark', x.page_id, x.time, x.page_id, '', '', 0, 0, ''`,
		"FROM bookmarks x", "x.time", "")
	build(`SELECT 'annotation', x.page_id, x.created_when, x.id, x.body, x.comment, x.privacy_level, x.last_edited,
		COALESCE((SELECT group_concat(list_id) FROM annotation_list_entries WHERE annotation_id = x.id), '')`,
		"FROM annotations x", "x.created_when", "x.id")

	return "(" + strings.Join(parts, " UNION ALL ") + ")", args
}

// Events returns activity strictly older than q.Before, newest first. Ties
// are ordered by page, kind and row so offsets are stable.
func (s *Store) Events(ctx context.Context, q search.TimelineQuery) ([]search.Event, error) {
	union, args := activityUnion(q.Filter, &q.Before)
	query := `
		SELECT kind, page_id, time, ref, body, comment, privacy_level, last_edited, lists
		FROM ` + union + `
		ORDER BY time DESC, page_id, kind, ref
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying timeline: %w", err)
	}
	defer s.closeRows(rows)

	var events []search.Event
	for rows.Next() {
		var (
			ev               search.Event
			kind, ref, lists string
			body, comment    string
			privacy          int
			lastEdited       int64
		)
		if err := rows.Scan(&kind, &ev.PageID, &ev.Time, &ref, &body, &comment, &privacy, &lastEdited, &lists); err != nil {
			return nil, fmt.Errorf("scanning timeline event: %w", err)
		}
		ev.Kind = search.EventKind(kind)
		if ev.Kind == search.EventAnnotation {
			ev.Annotation = &core.Annotation{
				URL:          ref,
				PageURL:      ev.PageID,
				Body:         body,
				Comment:      comment,
				CreatedWhen:  ev.Time,
				LastEdited:   lastEdited,
				PrivacyLevel: core.PrivacyLevel(privacy),
				Lists:        parseIDList(lists),
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// LowestTimeBound returns the time of the oldest activity matching f.
func (s *Store) LowestTimeBound(ctx context.Context, f search.Filter) (int64, bool, error) {
	union, args := activityUnion(f, nil)
	var lowest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(time) FROM "+union, args...).Scan(&lowest); err != nil {
		return 0, false, fmt.Errorf("querying lowest time bound: %w", err)
	}
	return lowest.Int64, lowest.Valid, nil
}

// LookupPages loads display data for the given page ids.
func (s *Store) LookupPages(ctx context.Context, ids []string) (map[string]search.PageDetails, error) {
	out := make(map[string]search.PageDetails, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.full_url, p.full_pdf_url, p.title, p.domain, p.hostname, p.content_type, p.fav_icon, p.text,
			COALESCE((SELECT group_concat(list_id) FROM page_list_entries e WHERE e.page_id = p.id), ''),
			(SELECT COUNT(*) FROM annotations a WHERE a.page_id = p.id)
		FROM pages p
		WHERE p.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("looking up pages: %w", err)
	}
	defer s.closeRows(rows)

	for rows.Next() {
		var (
			d           search.PageDetails
			contentType string
			lists       string
		)
		p := &d.Page
		if err := rows.Scan(&p.URL, &p.FullURL, &p.FullPDFURL, &p.Title, &p.Domain, &p.Hostname, &contentType,
			&p.FavIcon, &p.Text, &lists, &d.AnnotationCount); err != nil {
			return nil, fmt.Errorf("scanning page: %w", err)
		}
		p.ContentType = core.ContentType(contentType)
		d.Lists = parseIDList(lists)
		out[p.URL] = d
	}
	return out, rows.Err()
}
