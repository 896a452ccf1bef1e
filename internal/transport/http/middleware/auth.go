package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"consenthub/internal/domain/auth"
	"consenthub/internal/transport/http/api"
)

// Auth attaches the bearer token's user to the request context. Requests
// without a valid token pass through anonymously; RequirePermission and
// RequireAuth reject them where a user is needed.
func Auth(secret string, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, strings.TrimSpace(token))
			if err != nil {
				log.Debug("bearer token rejected", zap.String("requestId", GetRequestID(r.Context())), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithUser(r.Context(), auth.UserContext{
				UserID:   claims.UserID,
				Email:    claims.Email,
				RoleID:   claims.RoleID,
				RoleName: claims.RoleName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// CurrentUser returns the request's user, writing a 401 envelope when there
// is none.
func CurrentUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
	}
	return user, ok
}
