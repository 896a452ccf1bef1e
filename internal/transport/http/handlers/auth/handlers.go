package authhandler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

type Service interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Me(ctx context.Context, userID string) (auth.User, error)
}

type Handler struct {
	Service Service
	Audit   audit.Recorder
	Log     *zap.Logger
}

func NewHandler(svc Service, recorder audit.Recorder, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Audit: recorder, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.With(middleware.RequireAuth).Get("/me", h.HandleMe)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}

	if h.Audit != nil {
		if err := h.Audit.Record(r.Context(), result.User.ID, audit.ActionLogin, "user", result.User.ID, nil, nil); err != nil {
			h.Log.Warn("audit login failed", zap.String("userId", result.User.ID), zap.Error(err))
		}
	}
	api.Success(w, result, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.CurrentUser(w, r)
	if !ok {
		return
	}
	me, err := h.Service.Me(r.Context(), user.UserID)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	api.Success(w, me, reqID)
}
