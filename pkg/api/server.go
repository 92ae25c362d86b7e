// Package api serves margin's JSON HTTP API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rubiojr/margin/pkg/core"
	"github.com/rubiojr/margin/pkg/log"
	"github.com/rubiojr/margin/pkg/search"
	"github.com/rubiojr/margin/pkg/storage"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Store is the storage the API serves. *storage.Store implements it.
type Store interface {
	search.TermMatcher
	search.Timeline
	search.PageLookup
	Lists(ctx context.Context) ([]core.List, error)
	CreateList(ctx context.Context, name string) (core.List, error)
	MoveList(ctx context.Context, id int64, index int) error
	AddPageToList(ctx context.Context, listID int64, pageID string) error
	AddAnnotationToList(ctx context.Context, listID int64, annotationID string) error
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Options are the search defaults applied to requests that do not set them.
type Options struct {
	DefaultLimit int
	FuzzyTerms   bool
}

type Server struct {
	store    Store
	searcher search.Searcher
	options  Options
	logger   *log.Logger
	now      func() time.Time
}

func NewServer(store Store, options Options) *Server {
	if options.DefaultLimit <= 0 {
		options.DefaultLimit = search.DefaultLimit
	}
	return &Server{
		store:    store,
		searcher: search.NewService(store, store, store),
		options:  options,
		logger:   log.ForService("api"),
		now:      time.Now,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs every request at debug level.
func LoggingMiddleware(next http.Handler) http.Handler {
	logger := log.ForService("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("%s %s %v", r.Method, r.URL.RequestURI(), time.Since(start).Round(time.Microsecond))
	})
}
