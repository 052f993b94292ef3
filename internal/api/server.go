package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-search/internal/metrics"
	"github.com/JakeFAU/realtime-search/internal/search"
)

// Searcher is the query side of the search engine.
type Searcher interface {
	Search(query string, topK int) (search.Response, error)
	Ready() error
	Stats() search.Stats
}

// Config controls request defaults.
type Config struct {
	DefaultLimit   int
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the search engine.
type Server struct {
	router   chi.Router
	engine   Searcher
	validate *validator.Validate
	cfg      Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(engine Searcher, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	s := &Server{
		engine:   engine,
		validate: validator.New(),
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if cfg.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(cfg.RequestTimeout))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Get("/stats", s.stats)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Ready(); err != nil {
		writeError(w, http.StatusServiceUnavailable, search.ErrEngineNotReady.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.Ready(); err != nil {
		writeError(w, http.StatusServiceUnavailable, search.ErrEngineNotReady.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

type searchRequest struct {
	Query string `validate:"required"`
	Limit int    `validate:"min=1,max=100"`
}

type searchResponse struct {
	Query     string          `json:"query"`
	Results   []search.Result `json:"results"`
	ElapsedMS float64         `json:"elapsed_ms"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit: s.cfg.DefaultLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		req.Limit = limit
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	resp, err := s.engine.Search(req.Query, req.Limit)
	var qerr *search.QueryProcessingError
	switch {
	case err == nil:
	case search.IsNotReady(err):
		writeError(w, http.StatusServiceUnavailable, search.ErrEngineNotReady.Error())
		return
	case errors.Is(err, search.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &qerr):
		s.logger.Error("Search failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "query processing failed")
		return
	default:
		s.logger.Error("Search failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	results := resp.Results
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:     req.Query,
		Results:   results,
		ElapsedMS: float64(resp.Elapsed.Microseconds()) / 1000,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Field() {
		case "Query":
			return "query parameter q is required"
		case "Limit":
			return "limit must be between 1 and 100"
		}
		return fmt.Sprintf("validation error: %s - %s", fe.Field(), fe.Tag())
	}
	return "validation error: invalid request"
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
