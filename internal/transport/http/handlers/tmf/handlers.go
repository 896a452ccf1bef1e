package tmfhandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/consent"
	"consenthub/internal/domain/party"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type ConsentService interface {
	Create(ctx context.Context, actor auth.UserContext, in consent.NewConsent) (consent.Consent, error)
	Get(ctx context.Context, actor auth.UserContext, id string) (consent.Consent, error)
	List(ctx context.Context, actor auth.UserContext, filter consent.Filter, limit, offset int) ([]consent.Consent, int, error)
	UpdateStatus(ctx context.Context, actor auth.UserContext, id string, status consent.Status, reason string) (consent.Consent, error)
}

type HubService interface {
	Register(ctx context.Context, actorID, callback, query string) (webhook.Subscription, error)
	Unregister(ctx context.Context, id string) error
	List(ctx context.Context) ([]webhook.Subscription, error)
	Deliveries(ctx context.Context, webhookID string, limit int) ([]webhook.Delivery, error)
}

type PartyService interface {
	Get(ctx context.Context, actor auth.UserContext, id string) (party.Individual, error)
}

// Handler serves the TM Forum style surfaces: TMF632 privacy consent,
// TMF669 event hub and TMF641 party lookup.
type Handler struct {
	Consents ConsentService
	Hub      HubService
	Parties  PartyService
	Perms    middleware.PermissionStore
	BaseURL  string
	Log      *zap.Logger
}

func NewHandler(consents ConsentService, hub HubService, parties PartyService, perms middleware.PermissionStore, baseURL string, log *zap.Logger) *Handler {
	return &Handler{
		Consents: consents,
		Hub:      hub,
		Parties:  parties,
		Perms:    perms,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Log:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermConsentRead, h.Perms)
	write := middleware.RequirePermission(auth.PermConsentWrite, h.Perms)
	r.Route("/api/tmf632/privacyConsent", func(r chi.Router) {
		r.With(read).Get("/", h.handleListConsents)
		r.With(write).Post("/", h.handleCreateConsent)
		r.With(read).Get("/{id}", h.handleGetConsent)
		r.With(write).Patch("/{id}", h.handlePatchConsent)
	})
	r.Route("/api/tmf669/hub", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermWebhooksManage, h.Perms))
		r.Get("/", h.handleListHub)
		r.Post("/", h.handleRegisterHub)
		r.Delete("/{id}", h.handleUnregisterHub)
		r.Get("/{id}/deliveries", h.handleDeliveries)
	})
	r.With(middleware.RequirePermission(auth.PermPartyRead, h.Perms)).Get("/api/tmf641/party/{id}", h.handleGetParty)
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := consent.Filter{
		PartyID: firstNonEmpty(q.Get("relatedParty.id"), q.Get("partyId")),
		Purpose: strings.TrimSpace(q.Get("purpose")),
	}
	if raw := firstNonEmpty(q.Get("state"), q.Get("status")); raw != "" {
		status, err := consent.ParseStatus(raw)
		if err != nil {
			shared.FailError(w, r, err, reqID)
			return
		}
		filter.Status = status
	}

	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Consents.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	out := make([]PrivacyConsent, 0, len(items))
	for _, c := range items {
		out = append(out, toPrivacyConsent(c, h.BaseURL))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	w.Header().Set("X-Result-Count", strconv.Itoa(len(out)))
	api.SuccessWithMeta(w, out, page.Meta(total), reqID)
}

func (h *Handler) handleCreateConsent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload privacyConsentInput
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	created, err := h.Consents.Create(r.Context(), user, payload.toNewConsent())
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	pc := toPrivacyConsent(created, h.BaseURL)
	w.Header().Set("Location", pc.Href)
	api.Created(w, pc, reqID)
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	c, err := h.Consents.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, toPrivacyConsent(c, h.BaseURL), reqID)
}

func (h *Handler) handlePatchConsent(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload privacyConsentPatch
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	status, err := consent.ParseStatus(firstNonEmpty(payload.State, payload.Status))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	updated, err := h.Consents.UpdateStatus(r.Context(), user, chi.URLParam(r, "id"), status, payload.Reason)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, toPrivacyConsent(updated, h.BaseURL), reqID)
}

type hubRequest struct {
	Callback string `json:"callback"`
	Query    string `json:"query"`
}

func (h *Handler) handleListHub(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	subs, err := h.Hub.List(r.Context())
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if subs == nil {
		subs = []webhook.Subscription{}
	}
	api.Success(w, subs, reqID)
}

func (h *Handler) handleRegisterHub(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload hubRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	sub, err := h.Hub.Register(r.Context(), user.UserID, payload.Callback, payload.Query)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	h.Log.Info("hub subscription registered", zap.String("id", sub.ID), zap.String("callback", sub.URL), zap.String("query", sub.Events))
	w.Header().Set("Location", h.BaseURL+"/api/tmf669/hub/"+sub.ID)
	api.Created(w, sub, reqID)
}

func (h *Handler) handleUnregisterHub(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Hub.Unregister(r.Context(), id); err != nil {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	h.Log.Info("hub subscription removed", zap.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 50, 500)
	deliveries, err := h.Hub.Deliveries(r.Context(), chi.URLParam(r, "id"), page.Limit)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if deliveries == nil {
		deliveries = []webhook.Delivery{}
	}
	api.Success(w, deliveries, reqID)
}

func (h *Handler) handleGetParty(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	ind, err := h.Parties.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, ind, reqID)
}
