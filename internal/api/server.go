// Package api exposes the HTTP interface for job submission and status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
	"github.com/korrarahuldev/company-crawler/internal/metrics"
)

// Config controls submission behavior and request handling.
type Config struct {
	PrimaryQueue string        `mapstructure:"primary_queue"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Server wires HTTP handlers to the job store and queue transport.
type Server struct {
	router    chi.Router
	cfg       Config
	jobs      crawler.JobStore
	transport crawler.Transport
	idGen     crawler.IDGenerator
	clock     crawler.Clock
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	cfg Config,
	jobs crawler.JobStore,
	transport crawler.Transport,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	logger *zap.Logger,
) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	s := &Server{
		cfg:       cfg,
		jobs:      jobs,
		transport: transport,
		idGen:     idGen,
		clock:     clock,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.Timeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/companies/scrape", s.submitJob)
		r.Get("/jobs/{job_id}", s.getJob)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	CompanyName string `json:"company_name"`
	Website     string `json:"website"`
}

// submitJob validates the request, persists a pending job, and enqueues it on
// the primary queue.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Website = strings.TrimSpace(req.Website)
	if req.CompanyName == "" || req.Website == "" {
		writeError(w, http.StatusBadRequest, "company_name and website are required")
		return
	}
	if _, err := crawler.NormalizeURL(req.Website); err != nil {
		writeError(w, http.StatusBadRequest, "website is not a valid http(s) URL")
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate job id failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	job := crawler.Job{
		JobID:       jobID,
		CompanyName: req.CompanyName,
		Website:     req.Website,
		Status:      crawler.JobStatusPending,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.jobs.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("persist job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	body, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("marshal job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	if err := s.transport.Send(r.Context(), s.cfg.PrimaryQueue, body); err != nil {
		metrics.TransportError()
		s.logger.Error("enqueue job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("company", job.CompanyName),
		zap.String("website", job.Website))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"status":  string(job.Status),
		"message": "job queued for processing",
	})
}

// getJob returns the stored job state, which reflects true pipeline progress.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, crawler.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.status, time.Since(start))
	})
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
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
