package search

// Cursor carries pagination state between calls. Callers own it: the
// service never stores cursors.
//
// Terms searches use Skip/Limit. Blank searches use UntilWhen, an exclusive
// upper time bound (the previous batch's oldest timestamp), and
// LowestTimeBound, the oldest activity in the corpus used to detect the end.
type Cursor struct {
	Skip            int    `json:"skip"`
	Limit           int    `json:"limit"`
	UntilWhen       *int64 `json:"until_when,omitempty"`
	LowestTimeBound *int64 `json:"lowest_time_bound,omitempty"`
	// Exhausted marks a terminal cursor. Searching with it returns an empty,
	// exhausted result.
	Exhausted bool `json:"exhausted,omitempty"`
}

// TermsCursor returns the cursor for the first page of a terms search.
func TermsCursor(limit int) Cursor {
	return Cursor{Limit: limit}
}

// BlankCursor returns the cursor for the first page of a blank search
// showing activity strictly before untilWhen.
func BlankCursor(untilWhen int64, limit int) Cursor {
	return Cursor{Limit: limit, UntilWhen: &untilWhen}
}

// NextCursor derives the cursor for the batch after res, which was fetched
// with prev. Once res is exhausted the returned cursor is terminal. A
// terminal cursor still points past the last batch, so a client that only
// sends back its position gets an empty result rather than the last batch
// again.
func NextCursor(prev Cursor, res *Result) Cursor {
	next := prev
	if prev.Exhausted {
		return next
	}
	if res == nil {
		next.Exhausted = true
		return next
	}

	switch res.Mode {
	case ModeTerms:
		next.Skip = prev.Skip + prev.Limit
	case ModeBlank:
		if res.OldestResultTimestamp == nil {
			next.Exhausted = true
			return next
		}
		until := *res.OldestResultTimestamp
		next.UntilWhen = &until
	}
	next.Exhausted = res.ResultsExhausted
	return next
}
