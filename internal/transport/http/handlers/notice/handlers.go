package noticehandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/notice"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in notice.NewNotice) (notice.Notice, error)
	Get(ctx context.Context, id string) (notice.Notice, error)
	List(ctx context.Context, filter notice.Filter) ([]notice.Notice, error)
	Versions(ctx context.Context, id string) ([]notice.Notice, error)
	Update(ctx context.Context, actor auth.UserContext, id string, patch notice.Patch) (notice.Notice, error)
	Activate(ctx context.Context, actor auth.UserContext, id string) (notice.Notice, error)
	Archive(ctx context.Context, actor auth.UserContext, id string) (notice.Notice, error)
	NewVersion(ctx context.Context, actor auth.UserContext, id string, in notice.VersionInput) (notice.Notice, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(svc Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: svc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermNoticesRead, h.Perms)
	manage := middleware.RequirePermission(auth.PermNoticesManage, h.Perms)
	r.Route("/api/v1/privacy-notices", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(manage).Post("/", h.handleCreate)
		r.With(read).Get("/{id}", h.handleGet)
		r.With(manage).Put("/{id}", h.handleUpdate)
		r.With(manage).Post("/{id}/activate", h.handleActivate)
		r.With(manage).Post("/{id}/archive", h.handleArchive)
		r.With(read).Get("/{id}/versions", h.handleVersions)
		r.With(manage).Post("/{id}/versions", h.handleNewVersion)
	})
}

type createRequest struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Version       string `json:"version"`
	Language      string `json:"language"`
	EffectiveDate string `json:"effectiveDate"`
}

type updateRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	Language      *string `json:"language"`
	EffectiveDate *string `json:"effectiveDate"`
}

type versionRequest struct {
	Major       bool   `json:"major"`
	VersionType string `json:"versionType"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Changes     string `json:"changes"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	filter := notice.Filter{
		Language:  strings.TrimSpace(q.Get("language")),
		LineageID: strings.TrimSpace(q.Get("lineageId")),
	}
	if raw := strings.ToLower(strings.TrimSpace(q.Get("status"))); raw != "" {
		v := shared.NewValidator()
		v.Enum("status", raw, []string{"draft", "active", "archived"}, "must be one of draft, active, archived")
		if v.Reject(w, reqID) {
			return
		}
		filter.Status = notice.Status(raw)
	}
	items, err := h.Service.List(r.Context(), filter)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if items == nil {
		items = []notice.Notice{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload createRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	v := shared.NewValidator()
	effective := v.OptionalDate("effectiveDate", payload.EffectiveDate)
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Service.Create(r.Context(), user, notice.NewNotice{
		Title:         payload.Title,
		Content:       payload.Content,
		Version:       payload.Version,
		Language:      payload.Language,
		EffectiveDate: optionalTime(effective),
	})
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	n, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, n, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload updateRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	patch := notice.Patch{Title: payload.Title, Content: payload.Content, Language: payload.Language}
	if payload.EffectiveDate != nil {
		v := shared.NewValidator()
		patch.EffectiveDate = optionalTime(v.OptionalDate("effectiveDate", *payload.EffectiveDate))
		if v.Reject(w, reqID) {
			return
		}
	}

	updated, err := h.Service.Update(r.Context(), user, chi.URLParam(r, "id"), patch)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Activate)
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Archive)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, auth.UserContext, string) (notice.Notice, error)) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	n, err := fn(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, n, reqID)
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	items, err := h.Service.Versions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleNewVersion(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload versionRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	v := shared.NewValidator()
	v.Enum("versionType", payload.VersionType, []string{"major", "minor"}, "must be major or minor")
	if v.Reject(w, reqID) {
		return
	}
	major := payload.Major || strings.EqualFold(strings.TrimSpace(payload.VersionType), "major")

	created, err := h.Service.NewVersion(r.Context(), user, chi.URLParam(r, "id"), notice.VersionInput{
		Major:   major,
		Title:   payload.Title,
		Content: payload.Content,
		Changes: payload.Changes,
	})
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, created, reqID)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
