package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"consenthub/internal/platform/requestctx"
	"consenthub/internal/transport/http/shared"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// RequestID propagates X-Request-ID, generating one when absent, and stores
// the client ip alongside it for the audit trail.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		ctx := requestctx.WithRequestID(r.Context(), reqID)
		ctx = requestctx.WithClientIP(ctx, shared.ClientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
