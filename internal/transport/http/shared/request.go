package shared

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"consenthub/internal/domain/errs"
)

// DecodeJSON decodes the request body into dst. Oversized and malformed
// bodies come back as validation errors.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errs.Invalid("body", "request body too large")
		case errors.Is(err, io.EOF):
			return errs.Invalid("body", "request body is required")
		default:
			return errs.Invalid("body", "invalid JSON payload")
		}
	}
	return nil
}

// ClientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
