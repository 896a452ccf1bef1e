package adminhandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/dashboard"
	"consenthub/internal/platform/jobs"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type Service interface {
	Overview(ctx context.Context) (dashboard.Overview, error)
	Invalidate(ctx context.Context)
	ListJobRuns(ctx context.Context, filter dashboard.JobRunFilter, limit, offset int) ([]dashboard.JobRun, int, error)
	JobRun(ctx context.Context, id string) (dashboard.JobRun, error)
}

// JobTrigger runs a job synchronously and records it like a scheduled run.
type JobTrigger interface {
	RunNow(ctx context.Context, jobType, subjectID string, run jobs.Runner) (any, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Jobs    JobTrigger
	Runners map[string]jobs.Runner
}

func NewHandler(svc Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: svc, Perms: perms}
}

// WithJobs exposes runners for on-demand execution under
// POST /api/v1/admin/jobs/{jobType}/run.
func (h *Handler) WithJobs(trigger JobTrigger, runners map[string]jobs.Runner) *Handler {
	h.Jobs = trigger
	h.Runners = runners
	return h
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDashboardRead, h.Perms)).Get("/dashboard/overview", h.handleOverview)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms))
			r.Get("/jobs", h.handleListJobRuns)
			r.Get("/jobs/{id}", h.handleGetJobRun)
			r.Post("/jobs/{jobType}/run", h.handleRunJob)
		})
	})
}

// handleOverview serves the cached dashboard; ?refresh=true drops the cache
// first.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if strings.EqualFold(r.URL.Query().Get("refresh"), "true") {
		h.Service.Invalidate(r.Context())
	}
	overview, err := h.Service.Overview(r.Context())
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, overview, reqID)
}

func (h *Handler) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	filter := dashboard.JobRunFilter{
		JobType: strings.TrimSpace(q.Get("jobType")),
		Status:  strings.TrimSpace(q.Get("status")),
	}
	filter.StartedFrom = optionalTime(v.OptionalDate("startedFrom", q.Get("startedFrom")))
	filter.StartedTo = optionalTime(v.OptionalDate("startedTo", q.Get("startedTo")))
	if v.Reject(w, reqID) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	runs, total, err := h.Service.ListJobRuns(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if runs == nil {
		runs = []dashboard.JobRun{}
	}
	api.SuccessWithMeta(w, runs, page.Meta(total), reqID)
}

func (h *Handler) handleGetJobRun(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	run, err := h.Service.JobRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, run, reqID)
}

type jobResult struct {
	JobType string `json:"jobType"`
	Details any    `json:"details,omitempty"`
}

func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	jobType := chi.URLParam(r, "jobType")
	run, ok := h.Runners[jobType]
	if !ok || h.Jobs == nil {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown job type", reqID)
		return
	}
	details, err := h.Jobs.RunNow(r.Context(), jobType, "", run)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	h.Service.Invalidate(r.Context())
	api.Success(w, jobResult{JobType: jobType, Details: details}, reqID)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
