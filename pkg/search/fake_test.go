package search

import (
	"context"
	"sort"

	"github.com/rubiojr/margin/pkg/core"
)

// memIndex is an in-memory TermMatcher, Timeline and PageLookup. Terms are
// ignored: QueryPages and QueryAnnotations return the configured hits.
type memIndex struct {
	pageHits    []PageHit
	annotations []core.Annotation
	events      []Event
	details     map[string]PageDetails

	pagesErr       error
	annotationsErr error
	timelineErr    error
	lookupErr      error

	// block makes QueryPages wait for context cancellation.
	block bool

	lastTermsQuery TermsQuery
	timelineCalls  int
}

func (m *memIndex) QueryPages(ctx context.Context, q TermsQuery) ([]PageHit, error) {
	m.lastTermsQuery = q
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.pagesErr != nil {
		return nil, m.pagesErr
	}
	return append([]PageHit(nil), m.pageHits...), nil
}

func (m *memIndex) QueryAnnotations(ctx context.Context, q TermsQuery) ([]core.Annotation, error) {
	if m.annotationsErr != nil {
		return nil, m.annotationsErr
	}
	return append([]core.Annotation(nil), m.annotations...), nil
}

func (m *memIndex) sortedEvents() []Event {
	events := append([]Event(nil), m.events...)
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Time != events[j].Time {
			return events[i].Time > events[j].Time
		}
		return events[i].PageID < events[j].PageID
	})
	return events
}

func (m *memIndex) Events(ctx context.Context, q TimelineQuery) ([]Event, error) {
	m.timelineCalls++
	if m.timelineErr != nil {
		return nil, m.timelineErr
	}
	var matching []Event
	for _, ev := range m.sortedEvents() {
		if ev.Time >= q.Before {
			continue
		}
		if q.Filter.FromWhen != nil && ev.Time < *q.Filter.FromWhen {
			continue
		}
		matching = append(matching, ev)
	}
	if q.Offset >= len(matching) {
		return nil, nil
	}
	matching = matching[q.Offset:]
	if len(matching) > q.Limit {
		matching = matching[:q.Limit]
	}
	return matching, nil
}

func (m *memIndex) LowestTimeBound(ctx context.Context, f Filter) (int64, bool, error) {
	if len(m.events) == 0 {
		return 0, false, nil
	}
	lowest := m.events[0].Time
	for _, ev := range m.events[1:] {
		lowest = min(lowest, ev.Time)
	}
	return lowest, true, nil
}

func (m *memIndex) LookupPages(ctx context.Context, ids []string) (map[string]PageDetails, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	out := make(map[string]PageDetails)
	for _, id := range ids {
		if d, ok := m.details[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func newTestService(m *memIndex) *Service {
	return NewService(m, m, m)
}

func visit(page string, ts int64) Event {
	return Event{Kind: EventVisit, PageID: page, Time: ts}
}

func annotationEvent(a core.Annotation) Event {
	return Event{Kind: EventAnnotation, PageID: a.PageURL, Time: a.CreatedWhen, Annotation: &a}
}

func ptr(v int64) *int64 {
	return &v
}

func displayTimes(docs []core.SearchResultPage) []int64 {
	out := make([]int64, len(docs))
	for i, d := range docs {
		out[i] = d.DisplayTime
	}
	return out
}

func docURLs(docs []core.SearchResultPage) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.URL
	}
	return out
}
