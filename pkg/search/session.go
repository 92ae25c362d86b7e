package search

import (
	"context"

	"github.com/rubiojr/margin/pkg/core"
)

// Status is the loading state of a result list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

// State is everything a caller needs to render a paginated result list.
// It is only changed through Reduce.
type State struct {
	Params    Params
	Cursor    Cursor
	Docs      []core.SearchResultPage
	Exhausted bool
	Status    Status
	Err       error
	// Generation increases on every new query so that batches belonging to
	// an older query are ignored.
	Generation int
}

// Action is an input to Reduce.
type Action interface{ isAction() }

// QueryChanged starts a new search. Now is used as the first blank-search
// cursor.
type QueryChanged struct {
	Params Params
	Limit  int
	Now    int64
}

// LoadMore requests the next batch of the current search.
type LoadMore struct{}

// PageLoaded delivers a batch fetched for Generation.
type PageLoaded struct {
	Generation int
	Result     *Result
}

// LoadFailed reports a failed fetch for Generation.
type LoadFailed struct {
	Generation int
	Err        error
}

func (QueryChanged) isAction() {}
func (LoadMore) isAction()     {}
func (PageLoaded) isAction()   {}
func (LoadFailed) isAction()   {}

// Effect is work Reduce asks the caller to perform.
type Effect interface{ isEffect() }

// FetchBatch asks for req to be searched and the outcome reported back as
// PageLoaded or LoadFailed for Generation.
type FetchBatch struct {
	Generation int
	Request    Request
}

func (FetchBatch) isEffect() {}

// Reduce is the pure transition function of a result list. It never
// performs I/O; fetching is requested through the returned Effect.
func Reduce(s State, ev Action) (State, Effect) {
	switch e := ev.(type) {
	case QueryChanged:
		limit := e.Limit
		if limit <= 0 {
			limit = DefaultLimit
		}
		next := State{
			Params:     e.Params,
			Status:     StatusLoading,
			Generation: s.Generation + 1,
		}
		if e.Params.Mode() == ModeTerms {
			next.Cursor = TermsCursor(limit)
		} else {
			next.Cursor = BlankCursor(e.Now, limit)
		}
		return next, FetchBatch{Generation: next.Generation, Request: Request{Params: next.Params, Cursor: next.Cursor}}

	case LoadMore:
		if s.Status == StatusLoading || s.Status == StatusIdle || s.Exhausted {
			return s, nil
		}
		s.Status = StatusLoading
		s.Err = nil
		return s, FetchBatch{Generation: s.Generation, Request: Request{Params: s.Params, Cursor: s.Cursor}}

	case PageLoaded:
		if e.Generation != s.Generation || e.Result == nil {
			return s, nil
		}
		s.Docs = mergeDocs(s.Docs, e.Result.Docs)
		s.Cursor = e.Result.Next
		s.Exhausted = e.Result.ResultsExhausted
		s.Status = StatusReady
		s.Err = nil
		return s, nil

	case LoadFailed:
		if e.Generation != s.Generation {
			return s, nil
		}
		s.Status = StatusFailed
		s.Err = e.Err
		return s, nil
	}
	return s, nil
}

// mergeDocs appends batch to docs. A page already present (blank search can
// return a page again in an older batch) is merged in place: annotations
// are deduplicated by URL and the newest display time wins.
func mergeDocs(docs, batch []core.SearchResultPage) []core.SearchResultPage {
	out := make([]core.SearchResultPage, len(docs), len(docs)+len(batch))
	copy(out, docs)

	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.URL] = i
	}

	for _, doc := range batch {
		i, ok := index[doc.URL]
		if !ok {
			index[doc.URL] = len(out)
			out = append(out, doc)
			continue
		}
		merged := out[i]
		seen := make(map[string]bool, len(merged.Annotations))
		annotations := make([]core.Annotation, 0, len(merged.Annotations)+len(doc.Annotations))
		for _, a := range merged.Annotations {
			seen[a.URL] = true
			annotations = append(annotations, a)
		}
		for _, a := range doc.Annotations {
			if !seen[a.URL] {
				seen[a.URL] = true
				annotations = append(annotations, a)
			}
		}
		merged.Annotations = annotations
		merged.DisplayTime = max(merged.DisplayTime, doc.DisplayTime)
		merged.TotalAnnotationsCount = max(merged.TotalAnnotationsCount, doc.TotalAnnotationsCount, len(annotations))
		out[i] = merged
	}
	return out
}

// Searcher runs a single unified search batch.
type Searcher interface {
	UnifiedSearch(ctx context.Context, req Request) (*Result, error)
}

// Session executes the effects Reduce asks for against a Searcher. It is
// meant for a single caller (one CLI invocation, one UI view).
type Session struct {
	searcher Searcher
	state    State
}

func NewSession(searcher Searcher) *Session {
	return &Session{searcher: searcher}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Dispatch feeds ev through Reduce and runs resulting effects until none is
// left. The error of a failed fetch is returned as well as recorded in the
// state.
func (s *Session) Dispatch(ctx context.Context, ev Action) error {
	var effect Effect
	s.state, effect = Reduce(s.state, ev)

	var lastErr error
	for effect != nil {
		fetch, ok := effect.(FetchBatch)
		if !ok {
			break
		}
		res, err := s.searcher.UnifiedSearch(ctx, fetch.Request)
		if err != nil {
			lastErr = err
			s.state, effect = Reduce(s.state, LoadFailed{Generation: fetch.Generation, Err: err})
			continue
		}
		s.state, effect = Reduce(s.state, PageLoaded{Generation: fetch.Generation, Result: res})
	}
	return lastErr
}
