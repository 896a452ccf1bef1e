package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"consenthub/internal/transport/http/api"
)

func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Error("handler panicked",
					zap.Any("panic", p),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("requestId", GetRequestID(r.Context())),
					zap.Stack("stack"),
				)
				api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", GetRequestID(r.Context()))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
