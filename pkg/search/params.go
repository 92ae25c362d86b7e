package search

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rubiojr/margin/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultLimit is the page size used when a request does not set one.
const DefaultLimit = 20

// Mode selects how a search is executed and paginated.
type Mode string

const (
	// ModeTerms matches query terms and paginates by offset.
	ModeTerms Mode = "terms"
	// ModeBlank lists recent activity and paginates by a timestamp cursor.
	ModeBlank Mode = "blank"
)

// TermsOptions narrows which fields query terms are matched against.
// When no Match* field is set every field is searched.
type TermsOptions struct {
	MatchTermsFuzzyStartsWith bool
	MatchPageText             bool
	MatchPageTitleURL         bool
	MatchHighlights           bool
	MatchNotes                bool
}

// Normalized returns the options with the "nothing selected means
// everything" rule applied.
func (o TermsOptions) Normalized() TermsOptions {
	if !o.MatchPageText && !o.MatchPageTitleURL && !o.MatchHighlights && !o.MatchNotes {
		o.MatchPageText = true
		o.MatchPageTitleURL = true
		o.MatchHighlights = true
		o.MatchNotes = true
	}
	return o
}

// MatchesPages reports whether page fields are searched at all.
func (o TermsOptions) MatchesPages() bool {
	return o.MatchPageText || o.MatchPageTitleURL
}

// MatchesAnnotations reports whether annotation fields are searched at all.
func (o TermsOptions) MatchesAnnotations() bool {
	return o.MatchHighlights || o.MatchNotes
}

// Filter restricts the pages (and their activity) a search may return.
// FromWhen and UntilWhen are inclusive bounds in milliseconds.
type Filter struct {
	FromWhen     *int64
	UntilWhen    *int64
	Domains      []string
	ListIDs      []int64
	ContentTypes []core.ContentType
}

// Params holds everything that describes what to search for. Pagination
// lives in Cursor.
type Params struct {
	// Query is the raw query text. Empty queries run a blank search.
	Query string
	// Terms and Phrases, when set, are used instead of tokenizing Query.
	Terms   []string
	Phrases []string

	// FromWhen and UntilWhen are inclusive activity filters in
	// milliseconds. They are not the pagination cursor; blank searches page
	// with Cursor.UntilWhen.
	FromWhen  *int64
	UntilWhen *int64

	FilterByDomains []string
	FilterByListIDs []int64
	FilterByPDFs    bool
	FilterByVideos  bool
	FilterByTweets  bool
	FilterByEvents  bool

	// OmitPagesWithoutAnnotations drops pages that have no annotation in the
	// batch. Dropped pages still count for exhaustion and cursor purposes.
	OmitPagesWithoutAnnotations bool

	TermsOptions
}

// Tokens returns the normalized terms and phrases for the search.
func (p Params) Tokens() (terms, phrases []string) {
	if len(p.Terms) > 0 || len(p.Phrases) > 0 {
		for _, t := range p.Terms {
			terms = append(terms, splitWords(fold(t))...)
		}
		for _, ph := range p.Phrases {
			if words := splitWords(fold(ph)); len(words) > 0 {
				phrases = append(phrases, strings.Join(words, " "))
			}
		}
		return dedupe(terms), dedupe(phrases)
	}
	return SplitQuery(p.Query)
}

// Mode reports whether p runs a terms or a blank search.
func (p Params) Mode() Mode {
	terms, phrases := p.Tokens()
	if len(terms) > 0 || len(phrases) > 0 {
		return ModeTerms
	}
	return ModeBlank
}

// Filter collects the page filters of p.
func (p Params) Filter() Filter {
	f := Filter{
		FromWhen:  p.FromWhen,
		UntilWhen: p.UntilWhen,
		Domains:   p.FilterByDomains,
		ListIDs:   p.FilterByListIDs,
	}
	if p.FilterByPDFs {
		f.ContentTypes = append(f.ContentTypes, core.ContentTypePDF)
	}
	if p.FilterByVideos {
		f.ContentTypes = append(f.ContentTypes, core.ContentTypeVideo)
	}
	if p.FilterByTweets {
		f.ContentTypes = append(f.ContentTypes, core.ContentTypeTweet)
	}
	if p.FilterByEvents {
		f.ContentTypes = append(f.ContentTypes, core.ContentTypeEvent)
	}
	return f
}

// Request is a single call to UnifiedSearch: what to search for and which
// batch to return.
type Request struct {
	Params
	Cursor Cursor
}

// fold lowercases s and strips diacritics so "Café" matches "cafe".
// Transformers keep state, so a chain is built per call.
func fold(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(folder, s)
	if err != nil {
		out = s
	}
	return cases.Fold().String(out)
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SplitQuery tokenizes a raw query. Double-quoted spans become phrases,
// everything else is split into single terms. An unterminated quote is
// treated as a phrase running to the end of the query.
func SplitQuery(query string) (terms, phrases []string) {
	rest := query
	for {
		start := strings.IndexByte(rest, '"')
		if start < 0 {
			terms = append(terms, splitWords(fold(rest))...)
			break
		}
		terms = append(terms, splitWords(fold(rest[:start]))...)
		rest = rest[start+1:]

		end := strings.IndexByte(rest, '"')
		phrase := rest
		if end >= 0 {
			phrase = rest[:end]
		}
		if words := splitWords(fold(phrase)); len(words) > 0 {
			phrases = append(phrases, strings.Join(words, " "))
		}
		if end < 0 {
			break
		}
		rest = rest[end+1:]
	}
	return dedupe(terms), dedupe(phrases)
}

// ParseParams builds a Request from HTTP query parameters.
//
// Supported parameters:
//   - q: raw query; term / phrase (repeatable) override tokenization
//   - from, until: time filters, milliseconds or YYYY-MM-DD (until covers the whole day)
//   - domain, list (repeatable): domain and list filters
//   - pdf, video, tweet, event: content type filters
//   - omit_empty: omit pages without annotations
//   - fuzzy: prefix matching of terms
//   - match: comma separated subset of text,title,highlights,notes
//   - skip, limit: terms pagination (limit defaults to DefaultLimit)
//   - before, lowest: blank pagination cursor
//   - exhausted: the cursor is terminal, the search returns nothing
//
// Invalid limits fall back to the default, invalid times and cursor values
// return an error.
func ParseParams(values map[string][]string) (Request, error) {
	req := Request{Cursor: Cursor{Limit: DefaultLimit}}
	first := func(key string) string {
		if v := values[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	req.Query = first("q")
	req.Terms = values["term"]
	req.Phrases = values["phrase"]
	req.FilterByDomains = values["domain"]

	for _, raw := range values["list"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, fmt.Errorf("parsing list id %q: %w", raw, err)
		}
		req.FilterByListIDs = append(req.FilterByListIDs, id)
	}

	var err error
	if req.FromWhen, err = parseTime(first("from"), false); err != nil {
		return req, fmt.Errorf("parsing from: %w", err)
	}
	if req.UntilWhen, err = parseTime(first("until"), true); err != nil {
		return req, fmt.Errorf("parsing until: %w", err)
	}

	req.FilterByPDFs = parseBool(first("pdf"))
	req.FilterByVideos = parseBool(first("video"))
	req.FilterByTweets = parseBool(first("tweet"))
	req.FilterByEvents = parseBool(first("event"))
	req.OmitPagesWithoutAnnotations = parseBool(first("omit_empty"))
	req.MatchTermsFuzzyStartsWith = parseBool(first("fuzzy"))

	if match := first("match"); match != "" {
		for _, field := range strings.Split(match, ",") {
			switch strings.TrimSpace(field) {
			case "text":
				req.MatchPageText = true
			case "title":
				req.MatchPageTitleURL = true
			case "highlights":
				req.MatchHighlights = true
			case "notes":
				req.MatchNotes = true
			default:
				return req, fmt.Errorf("unknown match field %q", field)
			}
		}
	}

	if parsed, err := strconv.Atoi(first("limit")); err == nil && parsed > 0 {
		req.Cursor.Limit = parsed
	}
	if s := first("skip"); s != "" {
		skip, err := strconv.Atoi(s)
		if err != nil || skip < 0 {
			return req, fmt.Errorf("%w: invalid skip %q", ErrInvalidPagination, s)
		}
		req.Cursor.Skip = skip
	}
	if s := first("before"); s != "" {
		before, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: invalid before %q", ErrInvalidPagination, s)
		}
		req.Cursor.UntilWhen = &before
	}
	if s := first("lowest"); s != "" {
		lowest, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return req, fmt.Errorf("%w: invalid lowest %q", ErrInvalidPagination, s)
		}
		req.Cursor.LowestTimeBound = &lowest
	}
	req.Cursor.Exhausted = parseBool(first("exhausted"))

	return req, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// parseTime accepts epoch milliseconds or a YYYY-MM-DD date. Dates used as
// an upper bound cover the whole day.
func parseTime(s string, endOfDay bool) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &ms, nil
	}
	day, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Millisecond)
	}
	ms := day.UnixMilli()
	return &ms, nil
}
