package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"consenthub/internal/platform/metrics"
	"consenthub/internal/transport/http/api"
	"consenthub/internal/transport/http/shared"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per key. Buckets idle for longer than
// idleTTL are dropped on the next sweep.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	keyFn     RateLimitKeyFunc
	clients   map[string]*limiterEntry
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func withClock(now func() time.Time) RateLimitOption {
	return func(rl *rateLimiter) {
		rl.now = now
	}
}

// RateLimit allows perMinute requests per key with a burst of the same size.
func RateLimit(perMinute int, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(perMinute, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies tighter limits to login and to the
// mutations that start work or fan out to third parties.
func SensitiveMutationRateLimit(basePerMinute int, opts ...RateLimitOption) func(http.Handler) http.Handler {
	authLimit := max(basePerMinute/4, 1)
	mutationLimit := max(basePerMinute/2, 1)
	authByIP := newRateLimiter(authLimit, shared.ClientIP)
	authByEmail := newRateLimiter(authLimit, AuthEmailOrIPKey("email"))
	sensitiveByActor := newRateLimiter(mutationLimit, actorOrIPKey)
	for _, opt := range opts {
		opt(authByIP)
		opt(authByEmail)
		opt(sensitiveByActor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				if !authByIP.enforce(w, r) {
					return
				}
				if !authByEmail.enforce(w, r) {
					return
				}
			case sensitiveScopeActor:
				if !sensitiveByActor.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	normalizedField := strings.TrimSpace(field)
	if normalizedField == "" {
		normalizedField = "email"
	}
	return func(r *http.Request) string {
		email := extractJSONField(r, normalizedField)
		if email == "" {
			return shared.ClientIP(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return shared.ClientIP(r)
}

func newRateLimiter(perMinute int, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		perMinute: perMinute,
		keyFn:     keyFn,
		clients:   map[string]*limiterEntry{},
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

func (rl *rateLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.idleTTL {
		for k, entry := range rl.clients {
			if now.Sub(entry.lastSeen) > rl.idleTTL {
				delete(rl.clients, k)
			}
		}
		rl.lastSweep = now
	}

	entry, ok := rl.clients[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMinute)), rl.perMinute)}
		rl.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.perMinute <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = shared.ClientIP(r)
	}
	now := rl.now()
	limiter := rl.limiterFor(key, now)

	reservation := limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.perMinute))

	if !reservation.OK() || delay > 0 {
		reservation.CancelAt(now)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", strconv.Itoa(max(int(math.Ceil(delay.Seconds())), 1)))
		metrics.RateLimitRejectionsTotal.Inc()
		zap.L().Warn("rate limit exceeded",
			zap.String("key", key),
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method),
			zap.Int("perMinute", rl.perMinute),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(int(limiter.TokensAt(now)), 0)))
	return true
}

func extractJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) == 0 {
		return ""
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type sensitiveScope string

const (
	sensitiveScopeNone  sensitiveScope = ""
	sensitiveScopeAuth  sensitiveScope = "auth"
	sensitiveScopeActor sensitiveScope = "actor"
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	if r == nil {
		return sensitiveScopeNone
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimSuffix(strings.TrimSpace(r.URL.Path), "/")
	switch path {
	case "/api/v1/auth/login":
		return sensitiveScopeAuth
	case "/api/dsar-requests", "/api/v1/guardian/consent", "/api/tmf669/hub":
		return sensitiveScopeActor
	}
	if strings.HasPrefix(path, "/api/v1/dsar/") && strings.HasSuffix(path, "/auto-process") {
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
