package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/request"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/response"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
)

// SessionService runs crawl jobs. *pipeline.Runner implements it.
type SessionService interface {
	Submit(job pipeline.Job) (string, error)
	Session(id string) (*pipeline.SessionReport, bool)
	Sessions() []*pipeline.SessionReport
}

// ScheduleService lists and triggers scheduled jobs. *scheduler.Scheduler
// implements it.
type ScheduleService interface {
	Jobs() []string
	RunJob(name string) (string, error)
}

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Handler struct {
	sessions  SessionService
	schedules ScheduleService
	overflow  pipeline.JobQueue
	checks    map[string]Check
	logger    *zap.Logger
}

type Option func(*Handler)

func WithSchedules(s ScheduleService) Option {
	return func(h *Handler) { h.schedules = s }
}

// WithOverflow parks jobs in q when the local queue is full.
func WithOverflow(q pipeline.JobQueue) Option {
	return func(h *Handler) { h.overflow = q }
}

func WithCheck(name string, c Check) Option {
	return func(h *Handler) { h.checks[name] = c }
}

func NewHandler(sessions SessionService, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		sessions: sessions,
		checks:   make(map[string]Check),
		logger:   logger.Named("http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HandleSubmitCrawl(w http.ResponseWriter, r *http.Request) {
	var req request.SubmitCrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	job, err := req.Job()
	if err != nil {
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.sessions.Submit(job)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusAccepted, response.SubmitCrawlResponse{
			Status:    "success",
			Message:   "URLs accepted for crawling",
			SessionID: id,
		})
	case errors.Is(err, domain.ErrConfiguration):
		h.writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrQueueFull) && h.overflow != nil:
		if err := h.overflow.Push(r.Context(), job); err != nil {
			h.logger.Error("failed to park job", zap.String("source", job.Source), zap.Error(err))
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, http.StatusAccepted, response.SubmitCrawlResponse{
			Status:  "deferred",
			Message: "Workers are busy, job parked in the shared queue",
		})
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrStopped):
		h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.logger.Error("failed to submit job", zap.String("source", job.Source), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleListSessions returns sessions newest first, optionally filtered by
// the source and status query parameters.
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	source := strings.ToLower(r.URL.Query().Get("source"))
	status := pipeline.Status(r.URL.Query().Get("status"))

	out := make([]*pipeline.SessionReport, 0)
	for _, rep := range h.sessions.Sessions() {
		if source != "" && rep.Source != source {
			continue
		}
		if status != "" && rep.Status != status {
			continue
		}
		out = append(out, rep)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.sessions.Session(chi.URLParam(r, "id"))
	if !ok {
		h.writeJSONError(w, "Session not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) HandleListSchedules(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		h.writeJSON(w, http.StatusOK, []string{})
		return
	}
	h.writeJSON(w, http.StatusOK, h.schedules.Jobs())
}

func (h *Handler) HandleRunSchedule(w http.ResponseWriter, r *http.Request) {
	if h.schedules == nil {
		h.writeJSONError(w, "Scheduler is disabled", http.StatusNotFound)
		return
	}
	name := chi.URLParam(r, "name")
	known := false
	for _, j := range h.schedules.Jobs() {
		if j == name {
			known = true
			break
		}
	}
	if !known {
		h.writeJSONError(w, "Scheduled job not found", http.StatusNotFound)
		return
	}

	id, err := h.schedules.RunJob(name)
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrStopped) {
			h.writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		h.logger.Error("failed to run scheduled job", zap.String("job", name), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.SubmitCrawlResponse{
		Status:    "success",
		Message:   "Scheduled job submitted",
		SessionID: id,
	})
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "healthy"
	}
	if resp.Status != "ok" {
		h.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
