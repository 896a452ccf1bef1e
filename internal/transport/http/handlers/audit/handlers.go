package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
	"consenthub/internal/transport/http/shared"
)

const exportLimit = 10000

type Service interface {
	Count(ctx context.Context, filter audit.Filter) (int, error)
	List(ctx context.Context, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Log     *zap.Logger
}

func NewHandler(service Service, perms middleware.PermissionStore, log *zap.Logger) *Handler {
	return &Handler{Service: service, Perms: perms, Log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/audit", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermAuditRead, h.Perms))
		r.Get("/", h.handleListEvents)
		r.Get("/export", h.handleExportEvents)
	})
}

func filterFrom(r *http.Request) audit.Filter {
	q := r.URL.Query()
	return audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		ActorUser:  q.Get("actorUserId"),
	}
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, 100, 500)
	filter := filterFrom(r)
	includeDetails := r.URL.Query().Get("includeDetails") == "true"

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		h.Log.Warn("audit count failed", zap.String("requestId", reqID), zap.Error(err))
	}
	events, err := h.Service.List(r.Context(), filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		shared.FailError(w, r, err, reqID)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	api.SuccessWithMeta(w, events, page.Meta(total), reqID)
}

func (h *Handler) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.List(r.Context(), filterFrom(r), false, exportLimit, 0)
	if err != nil {
		shared.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-events.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "actor_user_id", "action", "entity_type", "entity_id", "request_id", "ip", "created_at"}); err != nil {
		h.Log.Warn("audit export header failed", zap.Error(err))
	}
	for _, evt := range events {
		row := []string{evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.RequestID, evt.IP, evt.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(row); err != nil {
			h.Log.Warn("audit export row failed", zap.String("eventId", evt.ID), zap.Error(err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.Log.Warn("audit export flush failed", zap.Error(err))
	}
	h.Log.Debug("audit export written", zap.Int("rows", len(events)))
}
