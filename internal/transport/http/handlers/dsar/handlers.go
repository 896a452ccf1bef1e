package dsarhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/dsar"
	"consenthub/internal/domain/errs"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

const idempotencyEndpoint = "dsar.create"

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in dsar.NewRequest) (dsar.View, error)
	Get(ctx context.Context, id string) (dsar.View, error)
	List(ctx context.Context, filter dsar.Filter, limit, offset int) ([]dsar.View, int, error)
	Approve(ctx context.Context, actor auth.UserContext, id string) (dsar.View, error)
	Reject(ctx context.Context, actor auth.UserContext, id, reason string) (dsar.View, error)
	Complete(ctx context.Context, actor auth.UserContext, id, notes string) (dsar.View, error)
	UpdateStatus(ctx context.Context, actor auth.UserContext, id string, to dsar.Status, reason string) (dsar.View, error)
	Purge(ctx context.Context, actor auth.UserContext, id string) error
	StartAutoProcessing(ctx context.Context, actor auth.UserContext, id string) (dsar.View, error)
	Export(ctx context.Context, actor auth.UserContext, id string) (dsar.ExportDocument, error)
	Certificate(ctx context.Context, actor auth.UserContext, id string, w io.Writer) error
}

type Handler struct {
	Service     Service
	Perms       middleware.PermissionStore
	Idempotency middleware.Idempotency
	Log         *zap.Logger
}

func NewHandler(svc Service, perms middleware.PermissionStore, idem middleware.Idempotency, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Perms: perms, Idempotency: idem, Log: log}
}

// RegisterRoutes mounts the collection under /api/dsar-requests and the
// processing actions under /api/v1/dsar.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/dsar-requests", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDSARRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermDSARSubmit, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermDSARRead, h.Perms)).Get("/{id}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermSystemAdmin, h.Perms)).Delete("/{id}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermDSARProcess, h.Perms)).Put("/{id}/status", h.handleUpdateStatus)
		r.With(middleware.RequirePermission(auth.PermDSARProcess, h.Perms)).Post("/{id}/approve", h.handleApprove)
		r.With(middleware.RequirePermission(auth.PermDSARProcess, h.Perms)).Post("/{id}/complete", h.handleComplete)
		r.With(middleware.RequirePermission(auth.PermDSARProcess, h.Perms)).Post("/{id}/reject", h.handleReject)
	})
	r.Route("/api/v1/dsar", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermDSARProcess, h.Perms)).Post("/{id}/auto-process", h.handleAutoProcess)
		r.With(middleware.RequireAuth).Get("/{id}/export", h.handleExport)
		r.With(middleware.RequireAuth).Get("/{id}/certificate", h.handleCertificate)
	})
}

type createRequest struct {
	RequesterName  string         `json:"requesterName"`
	RequesterEmail string         `json:"requesterEmail"`
	RequesterPhone string         `json:"requesterPhone"`
	PartyID        string         `json:"partyId"`
	RequestType    string         `json:"requestType"`
	Priority       string         `json:"priority"`
	Description    string         `json:"description"`
	Details        map[string]any `json:"details"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		shared.FailError(w, r, errs.Invalid("body", "request body too large"), reqID)
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get(middleware.IdempotencyHeader))
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, idempotencyEndpoint, idempotencyKey, requestHash)
		if err != nil {
			if errors.Is(err, errs.ErrConflict) {
				shared.FailError(w, r, err, reqID)
				return
			}
			h.Log.Warn("idempotency check failed", zap.String("requestId", reqID), zap.Error(err))
		}
		if found {
			api.Created(w, stored, reqID)
			return
		}
	}

	var payload createRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		shared.FailError(w, r, errs.Invalid("body", "invalid JSON payload"), reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("requestType", payload.RequestType, "is required")
	requestType, err := dsar.ParseRequestType(payload.RequestType)
	if err != nil && payload.RequestType != "" {
		v.Add("requestType", "must be one of data_access, data_erasure, data_portability, data_rectification")
	}
	if v.Reject(w, reqID) {
		return
	}

	view, err := h.Service.Create(r.Context(), user, dsar.NewRequest{
		RequesterName:  payload.RequesterName,
		RequesterEmail: payload.RequesterEmail,
		RequesterPhone: payload.RequesterPhone,
		PartyID:        payload.PartyID,
		RequestType:    requestType,
		Priority:       dsar.Priority(strings.ToLower(strings.TrimSpace(payload.Priority))),
		Description:    payload.Description,
		Details:        payload.Details,
	})
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}

	if idempotencyKey != "" && h.Idempotency != nil {
		encoded, err := json.Marshal(view)
		if err != nil {
			h.Log.Warn("idempotency response marshal failed", zap.Error(err))
		} else if err := h.Idempotency.Save(r.Context(), user.UserID, idempotencyEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			h.Log.Warn("idempotency save failed", zap.String("requestId", reqID), zap.Error(err))
		}
	}
	api.Created(w, view, reqID)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	var filter dsar.Filter
	if raw := q.Get("status"); raw != "" {
		status, err := dsar.ParseStatus(raw)
		if err != nil {
			v.Add("status", "must be one of pending, in_progress, completed, rejected")
		}
		filter.Status = status
	}
	if raw := q.Get("requestType"); raw != "" {
		t, err := dsar.ParseRequestType(raw)
		if err != nil {
			v.Add("requestType", "unknown request type")
		}
		filter.RequestType = t
	}
	if raw := q.Get("priority"); raw != "" {
		p, err := dsar.ParsePriority(raw)
		if err != nil {
			v.Add("priority", "must be one of low, medium, high")
		}
		filter.Priority = p
	}
	if raw := q.Get("overdue"); raw != "" {
		overdue, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("overdue", "must be a boolean")
		}
		filter.OverdueOnly = overdue
	}
	filter.Email = strings.TrimSpace(q.Get("email"))
	if v.Reject(w, reqID) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.SuccessWithMeta(w, items, page.Meta(total), reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.Purge(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Message(w, nil, "DSAR request deleted", middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload statusRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	status, err := dsar.ParseStatus(payload.Status)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	h.respond(w, r, func() (dsar.View, error) {
		return h.Service.UpdateStatus(r.Context(), user, chi.URLParam(r, "id"), status, payload.Reason)
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func() (dsar.View, error) {
		return h.Service.Approve(r.Context(), user, chi.URLParam(r, "id"))
	})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	payload, ok := h.optionalReason(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func() (dsar.View, error) {
		return h.Service.Complete(r.Context(), user, chi.URLParam(r, "id"), payload.Notes)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	payload, ok := h.optionalReason(w, r)
	if !ok {
		return
	}
	h.respond(w, r, func() (dsar.View, error) {
		return h.Service.Reject(r.Context(), user, chi.URLParam(r, "id"), payload.Reason)
	})
}

func (h *Handler) handleAutoProcess(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	view, err := h.Service.StartAutoProcessing(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Accepted(w, view, "automated processing started", reqID)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	doc, err := h.Service.Export(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, doc, reqID)
}

func (h *Handler) handleCertificate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	var buf bytes.Buffer
	if err := h.Service.Certificate(r.Context(), user, id, &buf); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="deletion-certificate-`+sanitizeFilename(id)+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Log.Warn("certificate write failed", zap.String("requestId", reqID), zap.Error(err))
	}
}

// optionalReason decodes a reason/notes body; an empty body is allowed.
func (h *Handler) optionalReason(w http.ResponseWriter, r *http.Request) (reasonRequest, bool) {
	var payload reasonRequest
	if r.ContentLength == 0 {
		return payload, true
	}
	if err := shared.DecodeJSON(r, &payload); err != nil && !isEmptyBody(err) {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return payload, false
	}
	return payload, true
}

func isEmptyBody(err error) bool {
	for _, issue := range errs.IssuesOf(err) {
		if issue.Reason == "request body is required" {
			return true
		}
	}
	return false
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, fn func() (dsar.View, error)) {
	view, err := fn()
	if err != nil {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

func sanitizeFilename(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, value)
}
