package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rubiojr/margin/pkg/core"
)

func TestTermsSearchPagination(t *testing.T) {
	m := &memIndex{
		pageHits: []PageHit{
			{ID: "c.com", LatestTimestamp: 300},
			{ID: "a.com", LatestTimestamp: 500},
			{ID: "e.com", LatestTimestamp: 100},
			{ID: "b.com", LatestTimestamp: 400},
			{ID: "d.com", LatestTimestamp: 200},
		},
	}
	svc := newTestService(m)
	ctx := context.Background()
	params := Params{Query: "golang"}

	tests := []struct {
		skip      int
		expected  []int64
		exhausted bool
	}{
		{skip: 0, expected: []int64{500, 400}, exhausted: false},
		{skip: 2, expected: []int64{300, 200}, exhausted: false},
		{skip: 4, expected: []int64{100}, exhausted: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("skip=%d", tt.skip), func(t *testing.T) {
			res, err := svc.UnifiedSearch(ctx, Request{Params: params, Cursor: Cursor{Skip: tt.skip, Limit: 2}})
			if err != nil {
				t.Fatalf("UnifiedSearch returned error: %v", err)
			}
			if res.Mode != ModeTerms {
				t.Errorf("expected terms mode, got %s", res.Mode)
			}
			if diff := cmp.Diff(tt.expected, displayTimes(res.Docs)); diff != "" {
				t.Errorf("timestamps mismatch (-want +got):\n%s", diff)
			}
			if res.ResultsExhausted != tt.exhausted {
				t.Errorf("expected exhausted=%t, got %t", tt.exhausted, res.ResultsExhausted)
			}
			if res.OldestResultTimestamp != nil {
				t.Errorf("terms search must not report an oldest timestamp, got %d", *res.OldestResultTimestamp)
			}
		})
	}
}

func TestTermsSearchChainedCursor(t *testing.T) {
	m := &memIndex{}
	for i := 1; i <= 5; i++ {
		m.pageHits = append(m.pageHits, PageHit{ID: fmt.Sprintf("p%d", i), LatestTimestamp: int64(i * 100)})
	}
	svc := newTestService(m)
	ctx := context.Background()

	req := Request{Params: Params{Query: "x"}, Cursor: TermsCursor(2)}
	var all []int64
	for i := 0; i < 10; i++ {
		res, err := svc.UnifiedSearch(ctx, req)
		if err != nil {
			t.Fatalf("UnifiedSearch returned error: %v", err)
		}
		all = append(all, displayTimes(res.Docs)...)
		if res.ResultsExhausted {
			if !res.Next.Exhausted {
				t.Fatalf("next cursor of an exhausted result must be terminal")
			}
			break
		}
		req.Cursor = res.Next
	}
	if diff := cmp.Diff([]int64{500, 400, 300, 200, 100}, all); diff != "" {
		t.Fatalf("chained pages mismatch (-want +got):\n%s", diff)
	}
}

func TestTermsSearchMergesAnnotations(t *testing.T) {
	m := &memIndex{
		pageHits: []PageHit{{ID: "a.com", LatestTimestamp: 1000}},
		annotations: []core.Annotation{
			{URL: "a.com#1", PageURL: "a.com", Body: "first", CreatedWhen: 400},
			{URL: "b.com#1", PageURL: "b.com", Comment: "orphan", CreatedWhen: 700},
			{URL: "b.com#2", PageURL: "b.com", Comment: "orphan", CreatedWhen: 600},
		},
		details: map[string]PageDetails{
			"a.com": {Page: core.Page{URL: "a.com", Title: "A"}, Lists: []int64{3}, AnnotationCount: 5},
		},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{Params: Params{Query: "note"}, Cursor: TermsCursor(10)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.com", "b.com"}, docURLs(res.Docs)); diff != "" {
		t.Fatalf("docs mismatch (-want +got):\n%s", diff)
	}

	a := res.Docs[0]
	if a.Title != "A" || a.TotalAnnotationsCount != 5 || len(a.Annotations) != 1 {
		t.Errorf("unexpected doc for a.com: %+v", a)
	}
	if diff := cmp.Diff([]int64{3}, a.Lists); diff != "" {
		t.Errorf("lists mismatch (-want +got):\n%s", diff)
	}

	// b.com only matched through annotations and is missing from the store.
	b := res.Docs[1]
	if b.DisplayTime != 700 {
		t.Errorf("expected synthetic display time 700, got %d", b.DisplayTime)
	}
	if b.TotalAnnotationsCount != 2 || len(b.Annotations) != 2 {
		t.Errorf("expected 2 annotations on orphan page, got %+v", b)
	}
	if b.Lists == nil {
		t.Errorf("lists must be an empty slice, not nil")
	}
}

func TestTermsSearchPassesNormalizedQuery(t *testing.T) {
	m := &memIndex{}
	svc := newTestService(m)

	params := Params{Query: `Café "Deep   Work" go`, FilterByPDFs: true, FilterByDomains: []string{"go.dev"}}
	if _, err := svc.UnifiedSearch(context.Background(), Request{Params: params, Cursor: TermsCursor(5)}); err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}

	q := m.lastTermsQuery
	if diff := cmp.Diff([]string{"cafe", "go"}, q.Terms); diff != "" {
		t.Errorf("terms mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"deep work"}, q.Phrases); diff != "" {
		t.Errorf("phrases mismatch (-want +got):\n%s", diff)
	}
	if !q.Options.MatchPageText || !q.Options.MatchNotes {
		t.Errorf("expected all match options enabled by default, got %+v", q.Options)
	}
	if diff := cmp.Diff([]core.ContentType{core.ContentTypePDF}, q.Filter.ContentTypes); diff != "" {
		t.Errorf("content types mismatch (-want +got):\n%s", diff)
	}
}

func TestBlankSearchPagination(t *testing.T) {
	m := &memIndex{
		events: []Event{visit("p900", 900), visit("p800", 800), visit("p700", 700), visit("p100", 100)},
	}
	svc := newTestService(m)
	ctx := context.Background()

	first, err := svc.UnifiedSearch(ctx, Request{Cursor: Cursor{Limit: 3, UntilWhen: ptr(1000), LowestTimeBound: ptr(100)}})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if first.Mode != ModeBlank {
		t.Errorf("expected blank mode, got %s", first.Mode)
	}
	if diff := cmp.Diff([]int64{900, 800, 700}, displayTimes(first.Docs)); diff != "" {
		t.Errorf("first batch mismatch (-want +got):\n%s", diff)
	}
	if first.OldestResultTimestamp == nil || *first.OldestResultTimestamp != 700 {
		t.Fatalf("expected oldest 700, got %v", first.OldestResultTimestamp)
	}
	if first.ResultsExhausted {
		t.Errorf("first batch should not be exhausted")
	}
	if first.Next.UntilWhen == nil || *first.Next.UntilWhen != 700 {
		t.Fatalf("next cursor should start at 700, got %+v", first.Next)
	}

	second, err := svc.UnifiedSearch(ctx, Request{Cursor: first.Next})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]int64{100}, displayTimes(second.Docs)); diff != "" {
		t.Errorf("second batch mismatch (-want +got):\n%s", diff)
	}
	if second.OldestResultTimestamp == nil || *second.OldestResultTimestamp != 100 {
		t.Fatalf("expected oldest 100, got %v", second.OldestResultTimestamp)
	}
	if !second.ResultsExhausted {
		t.Errorf("second batch should be exhausted")
	}
}

func TestBlankSearchIgnoresEmptyAnnotationEvents(t *testing.T) {
	m := &memIndex{
		events: []Event{
			visit("p900", 900),
			{Kind: EventAnnotation, PageID: "ghost", Time: 850},
			visit("p800", 800),
			visit("p700", 700),
			visit("p100", 100),
		},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{Cursor: Cursor{Limit: 3, UntilWhen: ptr(1000), LowestTimeBound: ptr(100)}})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]int64{900, 800, 700}, displayTimes(res.Docs)); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
	if res.ResultsExhausted {
		t.Errorf("a full batch must not be exhausted")
	}
}

func TestBlankSearchExhaustedCursorPointsPastEnd(t *testing.T) {
	m := &memIndex{events: []Event{visit("p900", 900), visit("p100", 100)}}
	svc := newTestService(m)
	ctx := context.Background()

	res, err := svc.UnifiedSearch(ctx, Request{Cursor: Cursor{Limit: 5, UntilWhen: ptr(1000), LowestTimeBound: ptr(100)}})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if !res.ResultsExhausted || len(res.Docs) != 2 {
		t.Fatalf("expected an exhausted batch of 2, got %+v", res)
	}

	// Dropping the terminal flag must not replay the last batch.
	next := res.Next
	next.Exhausted = false
	again, err := svc.UnifiedSearch(ctx, Request{Cursor: next})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if !again.ResultsExhausted || len(again.Docs) != 0 {
		t.Errorf("expected an empty exhausted batch, got %+v", again)
	}
}

func TestBlankSearchResolvesLowestTimeBound(t *testing.T) {
	m := &memIndex{events: []Event{visit("a", 50), visit("b", 40)}}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{Cursor: BlankCursor(100, 5)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if !res.ResultsExhausted {
		t.Errorf("expected exhausted result")
	}
	if res.Next.LowestTimeBound == nil || *res.Next.LowestTimeBound != 40 {
		t.Errorf("expected resolved lowest bound 40 in next cursor, got %+v", res.Next)
	}
}

func TestBlankSearchEmptyTimeline(t *testing.T) {
	svc := newTestService(&memIndex{})

	res, err := svc.UnifiedSearch(context.Background(), Request{Cursor: BlankCursor(100, 5)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if len(res.Docs) != 0 || res.Docs == nil {
		t.Errorf("expected empty non-nil docs, got %v", res.Docs)
	}
	if !res.ResultsExhausted || res.OldestResultTimestamp != nil {
		t.Errorf("expected exhausted result without oldest timestamp, got %+v", res)
	}
}

func TestBlankSearchConsumesTimestampTies(t *testing.T) {
	m := &memIndex{
		events: []Event{visit("p1", 900), visit("p2", 800), visit("p3", 800), visit("p4", 700)},
	}
	svc := newTestService(m)
	ctx := context.Background()

	first, err := svc.UnifiedSearch(ctx, Request{Cursor: Cursor{Limit: 2, UntilWhen: ptr(1000), LowestTimeBound: ptr(700)}})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "p2", "p3"}, docURLs(first.Docs)); diff != "" {
		t.Fatalf("first batch mismatch (-want +got):\n%s", diff)
	}

	second, err := svc.UnifiedSearch(ctx, Request{Cursor: first.Next})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"p4"}, docURLs(second.Docs)); diff != "" {
		t.Fatalf("second batch mismatch (-want +got):\n%s", diff)
	}
}

func TestBlankSearchAnnotationEvents(t *testing.T) {
	note := core.Annotation{URL: "a.com#n", PageURL: "a.com", Comment: "hi", CreatedWhen: 500}
	m := &memIndex{
		events: []Event{visit("a.com", 900), annotationEvent(note), visit("a.com", 300)},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{Cursor: BlankCursor(1000, 10)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if len(res.Docs) != 1 {
		t.Fatalf("expected one page, got %d", len(res.Docs))
	}
	doc := res.Docs[0]
	if doc.DisplayTime != 900 {
		t.Errorf("display time must come from visits, got %d", doc.DisplayTime)
	}
	if len(doc.Annotations) != 1 || doc.Annotations[0].URL != "a.com#n" {
		t.Errorf("expected the annotation on the page, got %+v", doc.Annotations)
	}
	if *res.OldestResultTimestamp != 300 {
		t.Errorf("expected oldest 300, got %d", *res.OldestResultTimestamp)
	}
}

func TestBlankSearchMonotonicCursor(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := &memIndex{}
	pages := make(map[string]bool)
	for i := 0; i < 200; i++ {
		page := fmt.Sprintf("page-%d", rng.Intn(60))
		pages[page] = true
		m.events = append(m.events, visit(page, int64(rng.Intn(5000)+1)))
	}
	svc := newTestService(m)
	ctx := context.Background()

	req := Request{Cursor: BlankCursor(10000, 7)}
	seen := make(map[string]bool)
	var previousOldest *int64
	for i := 0; ; i++ {
		if i > 500 {
			t.Fatal("blank search did not terminate")
		}
		res, err := svc.UnifiedSearch(ctx, req)
		if err != nil {
			t.Fatalf("UnifiedSearch returned error: %v", err)
		}
		for _, d := range res.Docs {
			seen[d.URL] = true
		}
		if previousOldest != nil && res.OldestResultTimestamp != nil && *res.OldestResultTimestamp >= *previousOldest {
			t.Fatalf("cursor not monotonic: %d after %d", *res.OldestResultTimestamp, *previousOldest)
		}
		if res.ResultsExhausted {
			break
		}
		previousOldest = res.OldestResultTimestamp
		req.Cursor = res.Next
	}

	if len(seen) != len(pages) {
		t.Fatalf("expected all %d pages to be visited, saw %d", len(pages), len(seen))
	}
}

func TestOmitPagesWithoutAnnotationsKeepsCursor(t *testing.T) {
	note := core.Annotation{URL: "b.com#1", PageURL: "b.com", Body: "quote", CreatedWhen: 800}
	events := []Event{visit("a.com", 900), annotationEvent(note), visit("c.com", 700), visit("d.com", 100)}
	ctx := context.Background()
	cursor := Cursor{Limit: 3, UntilWhen: ptr(1000), LowestTimeBound: ptr(100)}

	plain, err := newTestService(&memIndex{events: events}).UnifiedSearch(ctx, Request{Cursor: cursor})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	omitted, err := newTestService(&memIndex{events: events}).UnifiedSearch(ctx, Request{
		Params: Params{OmitPagesWithoutAnnotations: true},
		Cursor: cursor,
	})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}

	if diff := cmp.Diff([]string{"b.com"}, docURLs(omitted.Docs)); diff != "" {
		t.Errorf("omitted docs mismatch (-want +got):\n%s", diff)
	}
	if len(plain.Docs) != 3 {
		t.Errorf("expected 3 docs without omission, got %d", len(plain.Docs))
	}
	// Exhaustion and the cursor are computed before omission.
	if omitted.ResultsExhausted != plain.ResultsExhausted || omitted.ResultsExhausted {
		t.Errorf("omission changed exhaustion: plain=%t omitted=%t", plain.ResultsExhausted, omitted.ResultsExhausted)
	}
	if *omitted.OldestResultTimestamp != 700 || *plain.OldestResultTimestamp != 700 {
		t.Errorf("omission changed the cursor: plain=%d omitted=%d", *plain.OldestResultTimestamp, *omitted.OldestResultTimestamp)
	}
}

func TestOmitPagesWithoutAnnotationsTerms(t *testing.T) {
	m := &memIndex{
		pageHits: []PageHit{{ID: "a.com", LatestTimestamp: 900}, {ID: "title-only.com", LatestTimestamp: 800}},
		annotations: []core.Annotation{
			{URL: "a.com#1", PageURL: "a.com", Body: "x", CreatedWhen: 100},
		},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{
		Params: Params{Query: "x", OmitPagesWithoutAnnotations: true},
		Cursor: TermsCursor(2),
	})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if diff := cmp.Diff([]string{"a.com"}, docURLs(res.Docs)); diff != "" {
		t.Errorf("docs mismatch (-want +got):\n%s", diff)
	}
	// Two pages filled the window before omission.
	if res.ResultsExhausted {
		t.Errorf("exhaustion must be computed before omission")
	}
}

func TestExhaustedCursorIsTerminal(t *testing.T) {
	m := &memIndex{events: []Event{visit("a", 10)}}
	svc := newTestService(m)
	ctx := context.Background()

	res, err := svc.UnifiedSearch(ctx, Request{Cursor: BlankCursor(100, 5)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if !res.ResultsExhausted {
		t.Fatal("expected exhausted result")
	}

	calls := m.timelineCalls
	for i := 0; i < 3; i++ {
		again, err := svc.UnifiedSearch(ctx, Request{Cursor: res.Next})
		if err != nil {
			t.Fatalf("searching past exhaustion returned error: %v", err)
		}
		if len(again.Docs) != 0 || !again.ResultsExhausted {
			t.Fatalf("expected empty exhausted result, got %+v", again)
		}
		res = again
	}
	if m.timelineCalls != calls {
		t.Errorf("terminal cursor should not hit the index")
	}

	termsRes, err := svc.UnifiedSearch(ctx, Request{Params: Params{Query: "q"}, Cursor: Cursor{Limit: 5, Exhausted: true}})
	if err != nil || !termsRes.ResultsExhausted || len(termsRes.Docs) != 0 {
		t.Fatalf("terminal terms cursor: res=%+v err=%v", termsRes, err)
	}
}

func TestEmptyTermsResult(t *testing.T) {
	svc := newTestService(&memIndex{})

	res, err := svc.UnifiedSearch(context.Background(), Request{Params: Params{Query: "nothing"}, Cursor: TermsCursor(10)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if res.Docs == nil || len(res.Docs) != 0 {
		t.Errorf("expected empty docs, got %v", res.Docs)
	}
	if !res.ResultsExhausted || res.OldestResultTimestamp != nil {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAggregationInvariant(t *testing.T) {
	m := &memIndex{
		events: []Event{
			visit("a", 900),
			annotationEvent(core.Annotation{URL: "a#1", PageURL: "a", CreatedWhen: 850}),
			annotationEvent(core.Annotation{URL: "b#1", PageURL: "b", CreatedWhen: 800}),
			visit("a", 600),
			visit("c", 500),
			annotationEvent(core.Annotation{URL: "c#1", PageURL: "c", CreatedWhen: 400}),
		},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{Cursor: BlankCursor(1000, 10)})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if len(res.Docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(res.Docs))
	}
	for _, d := range res.Docs {
		for _, a := range d.Annotations {
			if a.CreatedWhen > d.DisplayTime && d.URL != "b" {
				t.Errorf("page %s: annotation newer than page activity leaked into display time", d.URL)
			}
		}
		if len(d.Annotations) > d.TotalAnnotationsCount {
			t.Errorf("page %s: %d annotations but total %d", d.URL, len(d.Annotations), d.TotalAnnotationsCount)
		}
	}
	if *res.OldestResultTimestamp != 400 {
		t.Errorf("expected oldest 400, got %d", *res.OldestResultTimestamp)
	}
}

func TestSearchIsIdempotent(t *testing.T) {
	m := &memIndex{
		pageHits: []PageHit{
			{ID: "b", LatestTimestamp: 100},
			{ID: "a", LatestTimestamp: 100},
			{ID: "c", LatestTimestamp: 200},
		},
	}
	svc := newTestService(m)
	req := Request{Params: Params{Query: "x"}, Cursor: TermsCursor(10)}

	first, err := svc.UnifiedSearch(context.Background(), req)
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.UnifiedSearch(context.Background(), req)
		if err != nil {
			t.Fatalf("UnifiedSearch returned error: %v", err)
		}
		if diff := cmp.Diff(first.Docs, again.Docs); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, docURLs(first.Docs)); diff != "" {
		t.Errorf("tie ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidPagination(t *testing.T) {
	svc := newTestService(&memIndex{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"blank without until", Request{Cursor: Cursor{Limit: 10}}},
		{"zero limit", Request{Params: Params{Query: "x"}, Cursor: Cursor{}}},
		{"negative skip", Request{Params: Params{Query: "x"}, Cursor: Cursor{Skip: -1, Limit: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UnifiedSearch(ctx, tt.req)
			if !errors.Is(err, ErrInvalidPagination) {
				t.Fatalf("expected ErrInvalidPagination, got %v", err)
			}
		})
	}
}

func TestProviderFailurePropagates(t *testing.T) {
	boom := errors.New("index unavailable")
	ctx := context.Background()

	tests := []struct {
		name string
		m    *memIndex
		req  Request
	}{
		{"pages", &memIndex{pagesErr: boom}, Request{Params: Params{Query: "x"}, Cursor: TermsCursor(5)}},
		{"annotations", &memIndex{annotationsErr: boom}, Request{Params: Params{Query: "x"}, Cursor: TermsCursor(5)}},
		{"timeline", &memIndex{timelineErr: boom}, Request{Cursor: Cursor{Limit: 5, UntilWhen: ptr(10), LowestTimeBound: ptr(0)}}},
		{"lookup", &memIndex{lookupErr: boom, pageHits: []PageHit{{ID: "a", LatestTimestamp: 1}}}, Request{Params: Params{Query: "x"}, Cursor: TermsCursor(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestService(tt.m).UnifiedSearch(ctx, tt.req)
			if res != nil {
				t.Errorf("expected no partial result, got %+v", res)
			}
			if !errors.Is(err, ErrQueryFailed) || !errors.Is(err, boom) {
				t.Fatalf("expected wrapped provider error, got %v", err)
			}
		})
	}
}

func TestCancellationFailsSearch(t *testing.T) {
	m := &memIndex{block: true}
	svc := newTestService(m)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := svc.UnifiedSearch(ctx, Request{Params: Params{Query: "x"}, Cursor: TermsCursor(5)})
	if res != nil {
		t.Errorf("expected no result on cancellation, got %+v", res)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	if _, err := svc.UnifiedSearch(cancelled, Request{Cursor: BlankCursor(10, 5)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestMatchOptionsSkipProviders(t *testing.T) {
	m := &memIndex{
		pagesErr: errors.New("pages should not be queried"),
		annotations: []core.Annotation{
			{URL: "a#1", PageURL: "a", Comment: "note", CreatedWhen: 10},
		},
	}
	svc := newTestService(m)

	res, err := svc.UnifiedSearch(context.Background(), Request{
		Params: Params{Query: "note", TermsOptions: TermsOptions{MatchNotes: true}},
		Cursor: TermsCursor(5),
	})
	if err != nil {
		t.Fatalf("UnifiedSearch returned error: %v", err)
	}
	if len(res.Docs) != 1 {
		t.Fatalf("expected one doc, got %d", len(res.Docs))
	}
}
