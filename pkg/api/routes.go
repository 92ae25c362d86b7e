package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/lists", s.HandleListLists)
	mux.HandleFunc("POST /api/lists", s.HandleCreateList)
	mux.HandleFunc("POST /api/lists/{id}/move", s.HandleMoveList)
	mux.HandleFunc("POST /api/lists/{id}/entries", s.HandleAddListEntry)
	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
