// Package v1 implements the native REST and WebSocket API.
package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/vmunix/andrate/internal/catalog"
	"github.com/vmunix/andrate/internal/library"
	"github.com/vmunix/andrate/internal/rating"
	"github.com/vmunix/andrate/internal/session"
)

// Server is the v1 API server.
type Server struct {
	deps     ServerDeps
	log      *slog.Logger
	upgrader websocket.Upgrader
	started  time.Time
}

// New creates a new v1 API server with the given dependencies.
func New(deps ServerDeps, log *slog.Logger) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		deps: deps,
		log:  log.With("component", "api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		started: time.Now(),
	}, nil
}

// RegisterRoutes registers API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /api/v1/search", s.search)
	mux.HandleFunc("GET /api/v1/discover/{kind}", s.discover)
	mux.HandleFunc("GET /api/v1/detail/{kind}/{id}", s.detail)

	// Live search surface
	mux.HandleFunc("GET /api/v1/surface", s.surface)

	// Library
	mux.HandleFunc("GET /api/v1/library", s.requireUser(s.listLibrary))
	mux.HandleFunc("PUT /api/v1/library", s.requireUser(s.saveEntry))
	mux.HandleFunc("POST /api/v1/library/rate", s.requireUser(s.rateEntry))

	// System
	mux.HandleFunc("GET /api/v1/status", s.getStatus)
	mux.HandleFunc("GET /api/v1/events", s.requireEventLog(s.listEvents))
}

// Handler returns the API mux wrapped in request logging and session
// resolution.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return session.Middleware(s.logRequests(mux))
}

// Error response
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message, Code: errCode})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

// writeProviderError maps a provider failure to a response.
func writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, catalog.ErrUnsupportedKind):
		writeError(w, http.StatusBadRequest, "INVALID_KIND", err.Error())
	case errors.Is(err, catalog.ErrProviderTimeout):
		writeError(w, http.StatusGatewayTimeout, "PROVIDER_TIMEOUT", err.Error())
	case errors.Is(err, catalog.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// writeLibraryError maps a library failure to a response.
func writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, library.ErrValidation), errors.Is(err, rating.ErrInvalid):
		writeError(w, http.StatusBadRequest, "VALIDATION", err.Error())
	case errors.Is(err, library.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "library store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// queryInt extracts an optional integer from query string.
func queryInt(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
