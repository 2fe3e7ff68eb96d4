// Package ops serves the read-only diagnostic surface: health audit,
// watermarks, recent runs, and prometheus metrics.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tidemark/internal/domain"
	"tidemark/internal/health"
	"tidemark/internal/metrics"
)

type Server struct {
	auditor    *health.Auditor
	watermarks domain.WatermarkRepository
	runs       domain.RunLogRepository
	recorder   *metrics.Recorder
	logger     *slog.Logger
	http       *http.Server
}

func NewServer(addr string, auditor *health.Auditor, watermarks domain.WatermarkRepository,
	runs domain.RunLogRepository, recorder *metrics.Recorder, logger *slog.Logger) *Server {

	s := &Server{
		auditor:    auditor,
		watermarks: watermarks,
		runs:       runs,
		recorder:   recorder,
		logger:     logger.With("component", "ops"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}).ServeHTTP)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/watermarks", s.handleWatermarks)
		r.Get("/runs", s.handleRuns)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start blocks serving until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("ops server listening", "addr", s.http.Addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus runs the pipeline-wide audit. ?expected=yyyymmdd sets the
// freshness target; without it tables classify UNKNOWN.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var expected *domain.Unit
	if v := r.URL.Query().Get("expected"); v != "" {
		u, err := domain.ParseUnit(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		expected = &u
	}

	status, err := s.auditor.CheckPipeline(r.Context(), expected)
	if err != nil {
		s.logger.Error("pipeline audit failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleWatermarks(w http.ResponseWriter, r *http.Request) {
	wms, err := s.watermarks.List(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, wms)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	recs, err := s.runs.ListRecent(r.Context(), limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
