package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// ProcessRequest is the body of POST /api/v1/companies/process.
type ProcessRequest struct {
	Ticker    string `json:"ticker"`
	TimeRange int    `json:"time_range"`
	Force     bool   `json:"force"`
}

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	Question  string `json:"question"`
	Ticker    string `json:"ticker"`
	SessionID string `json:"session_id"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}
	if req.TimeRange == 0 {
		req.TimeRange = domain.DefaultTimeRangeYears
	}

	s.log.Debug("process request",
		zap.String("ticker", req.Ticker), zap.Int("time_range", req.TimeRange), zap.Bool("force", req.Force))
	job, err := s.ports.Ingestion.Submit(r.Context(), driving.SubmitRequest{
		Ticker:         req.Ticker,
		TimeRangeYears: req.TimeRange,
		Force:          req.Force,
	})
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.metrics.jobsSubmitted.Inc()
	s.respondJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleTickerStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.ports.Ingestion.StatusByTicker(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleTickerCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Ingestion.CancelByTicker(r.Context(), chi.URLParam(r, "ticker")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.ports.Ingestion.List(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []domain.ProcessingJob{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.ports.Ingestion.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Ingestion.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_input", "invalid request body")
		return
	}

	start := time.Now()
	result, err := s.ports.Query.Answer(r.Context(), domain.QueryRequest{
		Question:  req.Question,
		Ticker:    req.Ticker,
		SessionID: req.SessionID,
	})
	if err != nil {
		_, code := errorStatus(err)
		s.metrics.ObserveQuery(code, time.Since(start))
		s.respondServiceError(w, err)
		return
	}
	s.metrics.ObserveQuery("ok", time.Since(start))
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	if s.ports.Company == nil {
		s.respondError(w, http.StatusNotFound, "not_found", "company lookup is not enabled")
		return
	}
	company, err := s.ports.Company.Lookup(r.Context(), chi.URLParam(r, "ticker"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, company)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.log.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}
	s.respondJSON(w, status, map[string]any{"status": overall, "checks": results})
}

// errorStatus maps service errors onto an HTTP status and a stable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, domain.ErrJobInProgress):
		return http.StatusConflict, "job_in_progress"
	case errors.Is(err, domain.ErrIssuerNotFound):
		return http.StatusNotFound, "issuer_not_found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrLLMUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	s.respondError(w, status, code, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("encoding response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
