package consenthandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/consent"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in consent.NewConsent) (consent.Consent, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (consent.Consent, error)
	List(ctx context.Context, actor auth.UserContext, filter consent.Filter, limit, offset int) ([]consent.Consent, int, error)
	History(ctx context.Context, actor auth.UserContext, id string) ([]consent.HistoryEntry, error)
	Effective(ctx context.Context, actor auth.UserContext, partyID string) ([]consent.Consent, consent.Summary, error)
	UpdateStatus(ctx context.Context, actor auth.UserContext, id string, status consent.Status, reason string) (consent.Consent, error)
	CreateForMinor(ctx context.Context, actor auth.UserContext, in consent.GuardianConsentRequest) (consent.GuardianConsentResult, error)
	ListGuardians(ctx context.Context, actor auth.UserContext) ([]consent.Guardian, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Log     *zap.Logger
}

func NewHandler(svc Service, perms middleware.PermissionStore, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Perms: perms, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/consents", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermConsentRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermConsentRead, h.Perms)).Get("/effective", h.handleEffective)
		r.With(middleware.RequirePermission(auth.PermConsentWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermConsentRead, h.Perms)).Get("/{id}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermConsentRead, h.Perms)).Get("/{id}/history", h.handleHistory)
		r.With(middleware.RequirePermission(auth.PermConsentWrite, h.Perms)).Put("/{id}/status", h.handleUpdateStatus)
	})
	r.With(middleware.RequirePermission(auth.PermGuardianRead, h.Perms)).Get("/api/guardians", h.handleListGuardians)
	r.With(middleware.RequirePermission(auth.PermGuardianConsent, h.Perms)).Post("/api/v1/guardian/consent", h.handleGuardianConsent)
}

type createRequest struct {
	PartyID         string         `json:"partyId"`
	Purpose         string         `json:"purpose"`
	Channel         string         `json:"channel"`
	ConsentType     string         `json:"consentType"`
	Status          string         `json:"status"`
	Source          string         `json:"source"`
	PrivacyNoticeID string         `json:"privacyNoticeId"`
	VersionAccepted string         `json:"versionAccepted"`
	ValidFrom       string         `json:"validFrom"`
	ValidTo         string         `json:"validTo"`
	Metadata        map[string]any `json:"metadata"`
}

type statusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type guardianConsentRequest struct {
	GuardianID string `json:"guardianId"`
	MinorID    string `json:"minorId"`
	Source     string `json:"source"`
	Consents   []struct {
		Purpose string `json:"purpose"`
		Channel string `json:"channel"`
		Status  string `json:"status"`
	} `json:"consents"`
}

type effectiveResponse struct {
	PartyID  string            `json:"partyId"`
	Consents []consent.Consent `json:"consents"`
	Summary  consent.Summary   `json:"summary"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := consent.Filter{
		PartyID:     strings.TrimSpace(q.Get("partyId")),
		Purpose:     strings.TrimSpace(q.Get("purpose")),
		ConsentType: strings.TrimSpace(q.Get("consentType")),
		GuardianID:  strings.TrimSpace(q.Get("guardianId")),
	}
	if raw := q.Get("status"); raw != "" {
		status, err := consent.ParseStatus(raw)
		if err != nil {
			shared.FailError(w, r, err, reqID)
			return
		}
		filter.Status = status
	}

	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.SuccessWithMeta(w, items, page.Meta(total), reqID)
}

func (h *Handler) handleEffective(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	partyID := strings.TrimSpace(r.URL.Query().Get("partyId"))
	if partyID == "" && !user.IsStaff() {
		partyID = user.UserID
	}
	items, summary, err := h.Service.Effective(r.Context(), user, partyID)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if items == nil {
		items = []consent.Consent{}
	}
	api.Success(w, effectiveResponse{PartyID: partyID, Consents: items, Summary: summary}, reqID)
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
	v.Required("purpose", payload.Purpose, "is required")
	v.Enum("status", payload.Status, []string{"granted", "revoked", "pending", "denied"}, "must be one of granted, revoked, pending, denied")
	validFrom := v.OptionalDate("validFrom", payload.ValidFrom)
	validTo := v.OptionalDate("validTo", payload.ValidTo)
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Service.Create(r.Context(), user, consent.NewConsent{
		PartyID:         payload.PartyID,
		Purpose:         payload.Purpose,
		Channel:         payload.Channel,
		ConsentType:     payload.ConsentType,
		Status:          consent.Status(strings.ToLower(strings.TrimSpace(payload.Status))),
		Source:          payload.Source,
		PrivacyNoticeID: payload.PrivacyNoticeID,
		VersionAccepted: payload.VersionAccepted,
		ValidFrom:       optionalTime(validFrom),
		ValidTo:         optionalTime(validTo),
		Metadata:        payload.Metadata,
	})
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	c, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, c, reqID)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.History(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if entries == nil {
		entries = []consent.HistoryEntry{}
	}
	api.Success(w, entries, reqID)
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
	status, err := consent.ParseStatus(payload.Status)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	updated, err := h.Service.UpdateStatus(r.Context(), user, chi.URLParam(r, "id"), status, payload.Reason)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleListGuardians(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	guardians, err := h.Service.ListGuardians(r.Context(), user)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if guardians == nil {
		guardians = []consent.Guardian{}
	}
	api.Success(w, guardians, reqID)
}

func (h *Handler) handleGuardianConsent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload guardianConsentRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}

	in := consent.GuardianConsentRequest{
		GuardianID: strings.TrimSpace(payload.GuardianID),
		MinorID:    strings.TrimSpace(payload.MinorID),
		Source:     payload.Source,
	}
	for _, c := range payload.Consents {
		in.Consents = append(in.Consents, consent.MinorConsent{
			Purpose: c.Purpose,
			Channel: c.Channel,
			Status:  consent.Status(strings.ToLower(strings.TrimSpace(c.Status))),
		})
	}

	result, err := h.Service.CreateForMinor(r.Context(), user, in)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, result, reqID)
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
