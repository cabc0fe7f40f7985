// Package api exposes the last run's tables over a read-only HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/okian/elorank/internal/domain/rating"
	"github.com/okian/elorank/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxLimit caps GET /ratings?limit.
const DefaultMaxLimit = 1000

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit sets the largest accepted ?limit value.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// Server wires HTTP routes for the read API.
type Server struct {
	holder   *Holder
	maxLimit int
}

// NewServer creates a new API server reading from holder.
func NewServer(holder *Holder, opts ...Option) *Server {
	s := &Server{holder: holder, maxLimit: DefaultMaxLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.Use(Metrics)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ratings", s.handleRatings).Methods(http.MethodGet)
	r.HandleFunc("/ratings/{team}", s.handleRank).Methods(http.MethodGet)
	r.HandleFunc("/calibration", s.handleCalibration).Methods(http.MethodGet)
	r.HandleFunc("/strengths", s.handleStrengths).Methods(http.MethodGet)
	r.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

func (s *Server) latest(w http.ResponseWriter) (*View, bool) {
	v, ok := s.holder.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no_run", ErrNoRun)
	}
	return v, ok
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, ready := s.holder.Latest()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": ready})
}

// handleRatings handles GET /ratings?limit=N; without limit the whole table is returned.
func (s *Server) handleRatings(w http.ResponseWriter, r *http.Request) {
	v, ok := s.latest(w)
	if !ok {
		return
	}
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		writeJSON(w, http.StatusOK, v.Table.Table())
		return
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	if limit > s.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", ErrBadRequest)
		return
	}
	rows, err := v.Table.TopN(limit)
	if errors.Is(err, rating.ErrInvalidLimit) {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleRank handles GET /ratings/{team}.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	v, ok := s.latest(w)
	if !ok {
		return
	}
	e, err := v.Table.Rank(mux.Vars(r)["team"])
	if errors.Is(err, rating.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCalibration(w http.ResponseWriter, _ *http.Request) {
	if v, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, v.Calibration)
	}
}

func (s *Server) handleStrengths(w http.ResponseWriter, _ *http.Request) {
	if v, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, v.Strengths)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	if v, ok := s.latest(w); ok {
		writeJSON(w, http.StatusOK, v)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// IsClosed reports whether err is the normal result of shutting a server down.
func IsClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
