// Package search implements unified search over stored pages, visits,
// bookmarks and annotations.
//
// # Modes
//
// A request with query text (or explicit terms/phrases) runs a terms search:
// pages and annotations matching the terms are fetched concurrently from a
// TermMatcher, merged per page and paginated by offset (Cursor.Skip and
// Cursor.Limit).
//
// A request without query text runs a blank search: recent activity is read
// newest-first from a Timeline until Cursor.Limit distinct pages are found.
// Blank search pages by time. Every result carries OldestResultTimestamp and
// the next batch asks for activity strictly older than it:
//
//	res, err := svc.UnifiedSearch(ctx, search.Request{
//		Cursor: search.BlankCursor(time.Now().UnixMilli(), 20),
//	})
//	for err == nil && !res.ResultsExhausted {
//		res, err = svc.UnifiedSearch(ctx, search.Request{Cursor: res.Next})
//	}
//
// A page can show up again in an older blank batch when it has older
// activity; Reduce merges such pages.
//
// # Aggregation
//
// Per page, LatestPageTimestamp comes from visits and bookmarks only and is
// used for sorting and display. OldestTimestamp covers annotations as well
// and drives the blank cursor. Results are sorted by LatestPageTimestamp
// descending, then by page URL.
//
// # Result lists
//
// Reduce is a pure state transition function for a paginated result list
// (new query, load more, batch loaded, load failed). Session runs the fetch
// effects it emits against a Service.
package search
