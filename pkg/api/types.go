package api

import (
	"time"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
)

type SearchResponse struct {
	Query                 string                  `json:"query"`
	Mode                  search.Mode             `json:"mode"`
	Docs                  []core.SearchResultPage `json:"docs"`
	Count                 int                     `json:"count"`
	ResultsExhausted      bool                    `json:"results_exhausted"`
	OldestResultTimestamp *int64                  `json:"oldest_result_timestamp"`
	// Next holds the cursor of the following batch. Clients pass its
	// fields back as skip/limit or before/lowest, plus exhausted.
	Next search.Cursor `json:"next"`
}

type ListsResponse struct {
	Lists []core.List `json:"lists"`
	Count int         `json:"count"`
}

type CreateListRequest struct {
	Name string `json:"name"`
}

type MoveListRequest struct {
	Index int `json:"index"`
}

// ListEntryRequest adds a page or an annotation to a list. PageURL may be
// a full or a normalized URL.
type ListEntryRequest struct {
	PageURL       string `json:"page_url,omitempty"`
	AnnotationURL string `json:"annotation_url,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
