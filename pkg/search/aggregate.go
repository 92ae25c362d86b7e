package search

import (
	"sort"

	"github.com/rubiojr/margin/pkg/core"
)

// PageResultData is the per-page record built while aggregating one batch.
type PageResultData struct {
	Annotations []core.Annotation
	// LatestPageTimestamp is the newest visit or bookmark of the page, never
	// an annotation. Pages matched only through annotations use their newest
	// annotation instead.
	LatestPageTimestamp int64
	// OldestTimestamp is the oldest visit, bookmark or annotation seen for
	// the page. Blank search pages backwards from it.
	OldestTimestamp int64
}

// ResultDataByPage maps normalized page URLs to their aggregated data.
type ResultDataByPage map[string]*PageResultData

// SortedIDs returns page ids ordered by LatestPageTimestamp descending,
// ties broken by id ascending.
func (r ResultDataByPage) SortedIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r[ids[i]], r[ids[j]]
		if a.LatestPageTimestamp != b.LatestPageTimestamp {
			return a.LatestPageTimestamp > b.LatestPageTimestamp
		}
		return ids[i] < ids[j]
	})
	return ids
}

// OldestTimestamp returns the minimum OldestTimestamp across all pages.
func (r ResultDataByPage) OldestTimestamp() (int64, bool) {
	var oldest int64
	found := false
	for _, data := range r {
		if !found || data.OldestTimestamp < oldest {
			oldest = data.OldestTimestamp
			found = true
		}
	}
	return oldest, found
}

// IntermediaryResult is the outcome of a search path before docs are built.
// OldestResultTimestamp is always nil for terms search.
type IntermediaryResult struct {
	ResultsExhausted      bool
	ResultDataByPage      ResultDataByPage
	OldestResultTimestamp *int64
}

type pageAccumulator struct {
	data             PageResultData
	hasPageTime      bool
	hasOldest        bool
	newestAnnotation int64
	annotationSeen   map[string]bool
}

func (acc *pageAccumulator) observeOldest(ts int64) {
	if !acc.hasOldest || ts < acc.data.OldestTimestamp {
		acc.data.OldestTimestamp = ts
		acc.hasOldest = true
	}
}

// Aggregator merges page activity and annotation hits into one record per
// page. It is used for a single search call and is not safe for concurrent
// use.
type Aggregator struct {
	pages map[string]*pageAccumulator
}

func NewAggregator() *Aggregator {
	return &Aggregator{pages: make(map[string]*pageAccumulator)}
}

func (a *Aggregator) page(id string) *pageAccumulator {
	acc, ok := a.pages[id]
	if !ok {
		acc = &pageAccumulator{annotationSeen: make(map[string]bool)}
		a.pages[id] = acc
	}
	return acc
}

// AddPage records a visit or bookmark of page id at ts.
func (a *Aggregator) AddPage(id string, ts int64) {
	acc := a.page(id)
	if !acc.hasPageTime || ts > acc.data.LatestPageTimestamp {
		acc.data.LatestPageTimestamp = ts
	}
	acc.hasPageTime = true
	acc.observeOldest(ts)
}

// AddAnnotation records an annotation hit, timed by its creation time.
// Annotations whose page has no activity in the batch still get an entry.
// Repeated annotations are ignored.
func (a *Aggregator) AddAnnotation(annotation core.Annotation) {
	acc := a.page(annotation.PageURL)
	if acc.annotationSeen[annotation.URL] {
		return
	}
	acc.annotationSeen[annotation.URL] = true
	acc.data.Annotations = append(acc.data.Annotations, annotation)
	if len(acc.data.Annotations) == 1 || annotation.CreatedWhen > acc.newestAnnotation {
		acc.newestAnnotation = annotation.CreatedWhen
	}
	acc.observeOldest(annotation.CreatedWhen)
}

// Len returns the number of distinct pages seen so far.
func (a *Aggregator) Len() int {
	return len(a.pages)
}

// Result returns the aggregated data. Pages known only through annotations
// take their newest annotation as LatestPageTimestamp.
func (a *Aggregator) Result() ResultDataByPage {
	out := make(ResultDataByPage, len(a.pages))
	for id, acc := range a.pages {
		data := acc.data
		if !acc.hasPageTime {
			data.LatestPageTimestamp = acc.newestAnnotation
		}
		sort.SliceStable(data.Annotations, func(i, j int) bool {
			x, y := data.Annotations[i], data.Annotations[j]
			if x.CreatedWhen != y.CreatedWhen {
				return x.CreatedWhen < y.CreatedWhen
			}
			return x.URL < y.URL
		})
		out[id] = &data
	}
	return out
}
