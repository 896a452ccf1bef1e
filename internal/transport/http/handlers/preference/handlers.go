package preferencehandler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/preference"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type Service interface {
	ListCategories(ctx context.Context) ([]preference.Category, error)
	GetCategory(ctx context.Context, id string) (preference.Category, error)
	CreateCategory(ctx context.Context, actor auth.UserContext, in preference.CategoryInput) (preference.Category, error)
	UpdateCategory(ctx context.Context, actor auth.UserContext, id string, in preference.CategoryInput) (preference.Category, error)
	DeleteCategory(ctx context.Context, actor auth.UserContext, id string) error
	ListItems(ctx context.Context, categoryID string) ([]preference.Item, error)
	CreateItem(ctx context.Context, actor auth.UserContext, categoryID string, in preference.ItemInput) (preference.Item, error)
	DeleteItem(ctx context.Context, actor auth.UserContext, id string) error
	UserPreferences(ctx context.Context, actor auth.UserContext, userID string) ([]preference.UserPreference, error)
	SetUserPreferences(ctx context.Context, actor auth.UserContext, userID string, values map[string]bool) ([]preference.UserPreference, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(svc Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: svc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPreferencesRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPreferencesWrite, h.Perms)
	manage := middleware.RequirePermission(auth.PermPreferencesManage, h.Perms)
	r.Route("/api/v1/preferences", func(r chi.Router) {
		r.With(read).Get("/categories", h.handleListCategories)
		r.With(manage).Post("/categories", h.handleCreateCategory)
		r.With(read).Get("/categories/{id}", h.handleGetCategory)
		r.With(manage).Put("/categories/{id}", h.handleUpdateCategory)
		r.With(manage).Delete("/categories/{id}", h.handleDeleteCategory)
		r.With(read).Get("/categories/{id}/items", h.handleListItems)
		r.With(manage).Post("/categories/{id}/items", h.handleCreateItem)
		r.With(manage).Delete("/items/{id}", h.handleDeleteItem)
		r.With(read).Get("/users/{userId}", h.handleGetUser)
		r.With(write).Put("/users/{userId}", h.handleSetUser)
	})
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

type itemRequest struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	Description  string `json:"description"`
	Channel      string `json:"channel"`
	DefaultValue bool   `json:"defaultValue"`
}

type userPreferencesRequest struct {
	Preferences map[string]bool `json:"preferences"`
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	items, err := h.Service.ListCategories(r.Context())
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if items == nil {
		items = []preference.Category{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	c, err := h.Service.GetCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, c, reqID)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload categoryRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	c, err := h.Service.CreateCategory(r.Context(), user, preference.CategoryInput(payload))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, c, reqID)
}

func (h *Handler) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload categoryRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	c, err := h.Service.UpdateCategory(r.Context(), user, chi.URLParam(r, "id"), preference.CategoryInput(payload))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, c, reqID)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteCategory(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Message(w, nil, "preference category deleted", reqID)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	items, err := h.Service.ListItems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if items == nil {
		items = []preference.Item{}
	}
	api.Success(w, items, reqID)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload itemRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	it, err := h.Service.CreateItem(r.Context(), user, chi.URLParam(r, "id"), preference.ItemInput(payload))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Created(w, it, reqID)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeleteItem(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Message(w, nil, "preference item deleted", reqID)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	prefs, err := h.Service.UserPreferences(r.Context(), user, chi.URLParam(r, "userId"))
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, prefs, reqID)
}

func (h *Handler) handleSetUser(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	var payload userPreferencesRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	prefs, err := h.Service.SetUserPreferences(r.Context(), user, chi.URLParam(r, "userId"), payload.Preferences)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, prefs, reqID)
}
