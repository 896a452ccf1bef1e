package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"consenthub/internal/platform/config"
	"consenthub/internal/platform/metrics"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/middleware"
)

// RouteRegistrar is implemented by every HTTP handler group.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type RouterConfig struct {
	Config   config.Config
	Log      *zap.Logger
	Gatherer prometheus.Gatherer
	Ready    func(context.Context) error
}

const readyTimeout = 2 * time.Second

// NewRouter builds the middleware chain, health checks and every handler group.
func NewRouter(rc RouterConfig, handlers ...RouteRegistrar) http.Handler {
	cfg := rc.Config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer(rc.Log))
	r.Use(middleware.Logger(rc.Log))
	r.Use(middleware.SecureHeaders(cfg.IsProduction()))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	r.Use(middleware.Auth(cfg.JWTSecret, rc.Log))
	r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))
	r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(req.Context()))
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(req.Context()))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		reqID := middleware.GetRequestID(req.Context())
		if rc.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
			defer cancel()
			if err := rc.Ready(ctx); err != nil {
				rc.Log.Warn("readiness check failed", zap.Error(err))
				api.Fail(w, http.StatusServiceUnavailable, "not_ready", "database unavailable", reqID)
				return
			}
		}
		api.Success(w, map[string]string{"status": "ready"}, reqID)
	})
	if cfg.MetricsEnabled && rc.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(rc.Gatherer))
	}

	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}
