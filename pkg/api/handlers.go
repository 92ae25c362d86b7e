package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/search"
	"github.com/rubiojr/margin/pkg/storage"
	"github.com/rubiojr/margin/pkg/version"
)

// HandleSearch runs one unified search batch. Without a query it lists
// recent activity; a blank search without a before cursor starts now.
func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	req, err := search.ParseParams(values)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid search parameters", err.Error())
		return
	}

	if values.Get("limit") == "" {
		req.Cursor.Limit = s.options.DefaultLimit
	}
	if values.Get("fuzzy") == "" {
		req.MatchTermsFuzzyStartsWith = s.options.FuzzyTerms
	}
	if req.Mode() == search.ModeBlank && req.Cursor.UntilWhen == nil {
		// The cursor is exclusive, so activity recorded this millisecond
		// is still included.
		until := s.now().UnixMilli() + 1
		req.Cursor.UntilWhen = &until
	}

	res, err := s.searcher.UnifiedSearch(r.Context(), req)
	switch {
	case errors.Is(err, search.ErrInvalidPagination):
		s.writeError(w, http.StatusBadRequest, "Invalid pagination", err.Error())
		return
	case err != nil:
		s.logger.Errorf("search %q failed: %v", req.Query, err)
		s.writeError(w, http.StatusInternalServerError, "Search failed", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:                 req.Query,
		Mode:                  res.Mode,
		Docs:                  res.Docs,
		Count:                 len(res.Docs),
		ResultsExhausted:      res.ResultsExhausted,
		OldestResultTimestamp: res.OldestResultTimestamp,
		Next:                  res.Next,
	})
}

func (s *Server) HandleListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.store.Lists(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to load lists", err.Error())
		return
	}
	if lists == nil {
		lists = []core.List{}
	}
	s.writeJSON(w, http.StatusOK, ListsResponse{Lists: lists, Count: len(lists)})
}

func (s *Server) HandleCreateList(w http.ResponseWriter, r *http.Request) {
	var body CreateListRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	list, err := s.store.CreateList(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Failed to create list", err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, list)
}

func (s *Server) listID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid list id", fmt.Sprintf("list id %q is not a number", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

// HandleMoveList moves a list to a new sidebar position and returns the
// reordered lists.
func (s *Server) HandleMoveList(w http.ResponseWriter, r *http.Request) {
	id, ok := s.listID(w, r)
	if !ok {
		return
	}
	var body MoveListRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}

	if err := s.store.MoveList(r.Context(), id, body.Index); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "List not found", err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to move list", err.Error())
		return
	}
	s.HandleListLists(w, r)
}

func (s *Server) HandleAddListEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.listID(w, r)
	if !ok {
		return
	}
	var body ListEntryRequest
	if !s.decodeJSON(w, r, &body) {
		return
	}
	if (body.PageURL == "") == (body.AnnotationURL == "") {
		s.writeError(w, http.StatusBadRequest, "Invalid list entry", "exactly one of page_url and annotation_url is required")
		return
	}

	var err error
	if body.AnnotationURL != "" {
		err = s.store.AddAnnotationToList(r.Context(), id, body.AnnotationURL)
	} else {
		pageID, nerr := core.NormalizeURL(body.PageURL)
		if nerr != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid page URL", nerr.Error())
			return
		}
		err = s.store.AddPageToList(r.Context(), id, pageID)
	}
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "List or entry not found", err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to add list entry", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get stats", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC(),
		Version:   version.APIVersion(),
	}

	s.writeJSON(w, http.StatusOK, health)
}
