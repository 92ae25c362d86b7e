package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidPagination is returned for cursors that cannot be used with
	// the requested search mode.
	ErrInvalidPagination = errors.New("invalid pagination")
	// ErrQueryFailed wraps failures of the underlying index.
	ErrQueryFailed = errors.New("search query failed")
)

// PageHit is a page matched by a terms search together with its latest
// visit or bookmark time.
type PageHit struct {
	ID              string
	LatestTimestamp int64
}

// TermsQuery is what a TermMatcher receives. Terms and Phrases are already
// normalized.
type TermsQuery struct {
	Terms   []string
	Phrases []string
	Filter  Filter
	Options TermsOptions
}

// TermMatcher finds pages and annotations matching query terms.
type TermMatcher interface {
	QueryPages(ctx context.Context, q TermsQuery) ([]PageHit, error)
	QueryAnnotations(ctx context.Context, q TermsQuery) ([]core.Annotation, error)
}

// EventKind identifies the activity behind a timeline event.
type EventKind string

const (
	EventVisit      EventKind = "visit"
	EventBookmark   EventKind = "bookmark"
	EventAnnotation EventKind = "annotation"
)

// Event is one piece of page activity. Annotation events are timed by the
// annotation's CreatedWhen and carry the annotation.
type Event struct {
	Kind       EventKind
	PageID     string
	Time       int64
	Annotation *core.Annotation
}

// TimelineQuery asks for events strictly older than Before, newest first,
// skipping the first Offset matches.
type TimelineQuery struct {
	Filter Filter
	Before int64
	Offset int
	Limit  int
}

// Timeline is the time-ordered activity index blank search reads from.
// Events must be returned in a stable order (time descending) so offsets
// are consistent across calls with the same Before.
type Timeline interface {
	Events(ctx context.Context, q TimelineQuery) ([]Event, error)
	// LowestTimeBound returns the oldest activity time matching f. ok is
	// false when there is no activity at all.
	LowestTimeBound(ctx context.Context, f Filter) (ts int64, ok bool, err error)
}

// PageDetails is the display data of a stored page.
type PageDetails struct {
	Page            core.Page
	Lists           []int64
	AnnotationCount int
}

// PageLookup resolves page ids to display data. Unknown ids are simply
// missing from the returned map.
type PageLookup interface {
	LookupPages(ctx context.Context, ids []string) (map[string]PageDetails, error)
}

// Result is one batch of a unified search.
type Result struct {
	Mode             Mode                    `json:"mode"`
	Docs             []core.SearchResultPage `json:"docs"`
	ResultsExhausted bool                    `json:"results_exhausted"`
	// OldestResultTimestamp is nil for terms searches and empty batches.
	OldestResultTimestamp *int64 `json:"oldest_result_timestamp"`
	// Next is the cursor for the following batch.
	Next Cursor `json:"next"`
}

// Service runs unified searches over a term index, an activity timeline and
// a page store. It holds no per-search state.
type Service struct {
	matcher  TermMatcher
	timeline Timeline
	lookup   PageLookup
	logger   *log.Logger
}

func NewService(matcher TermMatcher, timeline Timeline, lookup PageLookup) *Service {
	return &Service{
		matcher:  matcher,
		timeline: timeline,
		lookup:   lookup,
		logger:   log.ForService("search"),
	}
}

// UnifiedSearch returns one batch of results. A non-empty query runs a
// terms search paginated by req.Cursor.Skip/Limit; an empty query runs a
// blank search paginated by req.Cursor.UntilWhen.
//
// Searching with an exhausted cursor returns an empty exhausted result.
// Any index failure or context cancellation fails the whole call.
func (s *Service) UnifiedSearch(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := req.Params.Mode()
	cursor := req.Cursor
	if cursor.Exhausted {
		return &Result{Mode: mode, Docs: []core.SearchResultPage{}, ResultsExhausted: true, Next: cursor}, nil
	}
	if err := validateCursor(mode, cursor); err != nil {
		return nil, err
	}

	var (
		inter *IntermediaryResult
		err   error
	)
	switch mode {
	case ModeTerms:
		inter, err = s.termsSearch(ctx, req.Params, cursor)
	default:
		if cursor.LowestTimeBound == nil {
			lowest, ok, err := s.timeline.LowestTimeBound(ctx, req.Params.Filter())
			if err != nil {
				return nil, fmt.Errorf("%w: resolving lowest time bound: %w", ErrQueryFailed, err)
			}
			if !ok {
				s.logger.Debugf("blank search on empty timeline")
				cursor.Exhausted = true
				return &Result{Mode: mode, Docs: []core.SearchResultPage{}, ResultsExhausted: true, Next: cursor}, nil
			}
			cursor.LowestTimeBound = &lowest
		}
		inter, err = s.blankSearch(ctx, req.Params, cursor)
	}
	if err != nil {
		return nil, err
	}

	docs, err := s.buildDocs(ctx, inter.ResultDataByPage, req.OmitPagesWithoutAnnotations)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Mode:                  mode,
		Docs:                  docs,
		ResultsExhausted:      inter.ResultsExhausted,
		OldestResultTimestamp: inter.OldestResultTimestamp,
	}
	res.Next = NextCursor(cursor, res)
	s.logger.Debugf("%s search: %d pages (%d docs), exhausted=%t", mode, len(inter.ResultDataByPage), len(docs), res.ResultsExhausted)
	return res, nil
}

func validateCursor(mode Mode, c Cursor) error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidPagination, c.Limit)
	}
	switch mode {
	case ModeTerms:
		if c.Skip < 0 {
			return fmt.Errorf("%w: skip must not be negative, got %d", ErrInvalidPagination, c.Skip)
		}
	case ModeBlank:
		if c.UntilWhen == nil {
			return fmt.Errorf("%w: blank search requires an until-when cursor", ErrInvalidPagination)
		}
	}
	return nil
}

// termsSearch queries pages and annotations concurrently, merges them and
// cuts the [skip, skip+limit) window from the time-sorted page set.
func (s *Service) termsSearch(ctx context.Context, params Params, cursor Cursor) (*IntermediaryResult, error) {
	terms, phrases := params.Tokens()
	q := TermsQuery{
		Terms:   terms,
		Phrases: phrases,
		Filter:  params.Filter(),
		Options: params.TermsOptions.Normalized(),
	}

	var (
		pages       []PageHit
		annotations []core.Annotation
	)
	g, gctx := errgroup.WithContext(ctx)
	if q.Options.MatchesPages() {
		g.Go(func() error {
			var err error
			if pages, err = s.matcher.QueryPages(gctx, q); err != nil {
				return fmt.Errorf("%w: querying pages: %w", ErrQueryFailed, err)
			}
			return nil
		})
	}
	if q.Options.MatchesAnnotations() {
		g.Go(func() error {
			var err error
			if annotations, err = s.matcher.QueryAnnotations(gctx, q); err != nil {
				return fmt.Errorf("%w: querying annotations: %w", ErrQueryFailed, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A provider may swallow cancellation; never hand back a partial merge.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg := NewAggregator()
	for _, p := range pages {
		agg.AddPage(p.ID, p.LatestTimestamp)
	}
	for _, a := range annotations {
		agg.AddAnnotation(a)
	}
	all := agg.Result()

	ids := all.SortedIDs()
	start := min(cursor.Skip, len(ids))
	end := min(start+cursor.Limit, len(ids))

	window := make(ResultDataByPage, end-start)
	for _, id := range ids[start:end] {
		window[id] = all[id]
	}

	return &IntermediaryResult{
		ResultsExhausted: end-start < cursor.Limit,
		ResultDataByPage: window,
	}, nil
}

// blankSearch walks the timeline backwards from the cursor until limit
// distinct pages are collected. Events sharing the timestamp of the last
// consumed event are consumed too, so the exclusive cursor of the next
// batch cannot skip them.
func (s *Service) blankSearch(ctx context.Context, params Params, cursor Cursor) (*IntermediaryResult, error) {
	filter := params.Filter()
	chunk := max(cursor.Limit*4, 32)

	agg := NewAggregator()
	var (
		lastTime    int64
		consumed    bool
		stopped     bool
		drained     bool
		offset      int
		seenPages   = make(map[string]bool)
		eventsTotal int
	)

	for !stopped && !drained {
		events, err := s.timeline.Events(ctx, TimelineQuery{
			Filter: filter,
			Before: *cursor.UntilWhen,
			Offset: offset,
			Limit:  chunk,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: reading timeline: %w", ErrQueryFailed, err)
		}

		for _, ev := range events {
			// Only aggregated pages count towards the limit.
			if ev.Kind == EventAnnotation && ev.Annotation == nil {
				s.logger.Debugf("skipping annotation event without annotation on %s", ev.PageID)
				continue
			}
			if len(seenPages) >= cursor.Limit && ev.Time != lastTime {
				stopped = true
				break
			}
			seenPages[ev.PageID] = true
			lastTime = ev.Time
			consumed = true
			eventsTotal++

			switch ev.Kind {
			case EventAnnotation:
				agg.AddAnnotation(*ev.Annotation)
			default:
				agg.AddPage(ev.PageID, ev.Time)
			}
		}

		if !stopped && len(events) < chunk {
			drained = true
		}
		offset += len(events)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := agg.Result()
	res := &IntermediaryResult{ResultDataByPage: data}
	if !consumed {
		res.ResultsExhausted = true
		return res, nil
	}

	oldest, _ := data.OldestTimestamp()
	res.OldestResultTimestamp = &oldest
	res.ResultsExhausted = drained ||
		len(data) < cursor.Limit ||
		oldest <= *cursor.LowestTimeBound

	s.logger.Debugf("blank batch before %d: %d events, %d pages, oldest %d", *cursor.UntilWhen, eventsTotal, len(data), oldest)
	return res, nil
}

// buildDocs turns aggregated data into result pages ordered like
// SortedIDs. Pages missing from the lookup still produce a doc.
func (s *Service) buildDocs(ctx context.Context, data ResultDataByPage, omitWithoutAnnotations bool) ([]core.SearchResultPage, error) {
	ids := data.SortedIDs()
	if omitWithoutAnnotations {
		kept := ids[:0]
		for _, id := range ids {
			if len(data[id].Annotations) > 0 {
				kept = append(kept, id)
			}
		}
		ids = kept
	}

	docs := make([]core.SearchResultPage, 0, len(ids))
	if len(ids) == 0 {
		return docs, nil
	}

	details, err := s.lookup.LookupPages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: looking up pages: %w", ErrQueryFailed, err)
	}

	for _, id := range ids {
		d := data[id]
		doc := core.SearchResultPage{
			URL:         id,
			DisplayTime: d.LatestPageTimestamp,
			Lists:       []int64{},
			Annotations: d.Annotations,
		}
		if doc.Annotations == nil {
			doc.Annotations = []core.Annotation{}
		}
		if detail, ok := details[id]; ok {
			doc.FullURL = detail.Page.FullURL
			doc.FullPDFURL = detail.Page.FullPDFURL
			doc.Title = detail.Page.Title
			doc.FavIcon = detail.Page.FavIcon
			doc.Text = detail.Page.Text
			doc.TotalAnnotationsCount = detail.AnnotationCount
			if detail.Lists != nil {
				doc.Lists = detail.Lists
			}
		} else {
			s.logger.Debugf("page %s missing from store, returning bare result", id)
		}
		doc.TotalAnnotationsCount = max(doc.TotalAnnotationsCount, len(doc.Annotations))
		docs = append(docs, doc)
	}
	return docs, nil
}
