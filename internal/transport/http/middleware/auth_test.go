package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consenthub/internal/domain/auth"
	"consenthub/internal/transport/http/api"
)

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", Email: "u1@example.com", RoleID: "r1", RoleName: auth.RoleCSR}, time.Hour, time.Now())
	require.NoError(t, err)

	var got auth.UserContext
	handler := Auth(secret, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		require.True(t, ok)
		got = user
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	serve(handler, req)

	assert.Equal(t, auth.UserContext{UserID: "u1", Email: "u1@example.com", RoleID: "r1", RoleName: auth.RoleCSR}, got)
	assert.True(t, got.IsStaff())
}

func TestAuthMiddlewareIgnoresBadTokens(t *testing.T) {
	expired, err := auth.GenerateToken("secret", auth.Claims{UserID: "u1"}, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	for _, header := range []string{"", "Basic abc", "Bearer not-a-token", "Bearer " + expired} {
		handler := Auth("secret", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := GetUser(r.Context())
			assert.False(t, ok, header)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		serve(handler, req)
	}
}

type permStore map[string]bool

func (p permStore) HasPermission(_ context.Context, roleID, permission string) (bool, error) {
	if roleID == "broken" {
		return false, errors.New("db down")
	}
	return p[roleID+":"+permission], nil
}

func TestRequirePermission(t *testing.T) {
	store := permStore{"r-csr:" + auth.PermDSARRead: true}
	handler := RequirePermission(auth.PermDSARRead, store)(noContent())

	decode := func(rec *httptest.ResponseRecorder) api.Envelope {
		var env api.Envelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
		return env
	}

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode(rec).Error.Code)

	as := func(roleID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u", RoleID: roleID}))
	}
	assert.Equal(t, http.StatusNoContent, serve(handler, as("r-csr")).Code)

	rec = serve(handler, as("r-customer"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(rec).Error.Code)

	assert.Equal(t, http.StatusInternalServerError, serve(handler, as("broken")).Code)
}

func TestRequestIDPropagation(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := serve(handler, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "req-123", seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	handler := RequestID(Recoverer(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env api.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.NotEmpty(t, env.RequestID)
}

func TestBodyLimitRejectsDeclaredOversize(t *testing.T) {
	handler := BodyLimit(8)(noContent())

	big := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"k":"0123456789"}`))
	assert.Equal(t, http.StatusRequestEntityTooLarge, serve(handler, big).Code)

	small := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusNoContent, serve(handler, small).Code)

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusNoContent, serve(handler, get).Code)
}
