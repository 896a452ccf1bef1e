package shared

import (
	"net/http"
	"strings"
	"time"

	"consenthub/internal/domain/errs"
	"consenthub/internal/transport/http/api"
)

// Validator collects request-shape issues before a payload reaches a domain
// service. Domain rules are validated by the services themselves.
type Validator struct {
	v errs.ValidationError
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	v.v.Add(field, reason)
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return
	}
	for _, candidate := range allowed {
		if normalized == strings.ToLower(strings.TrimSpace(candidate)) {
			return
		}
	}
	v.Add(field, reason)
}

// OptionalDate parses raw when present. The zero time means absent.
func (v *Validator) OptionalDate(field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		v.Add(field, "must be RFC3339 or YYYY-MM-DD")
		return time.Time{}
	}
	return parsed
}

func (v *Validator) Err() error {
	if v == nil {
		return nil
	}
	return v.v.Err()
}

func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	err := v.Err()
	if err == nil {
		return false
	}
	FailValidation(w, requestID, errs.IssuesOf(err))
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []errs.FieldIssue) {
	api.FailWithDetails(
		w,
		http.StatusBadRequest,
		"validation_error",
		"payload validation failed",
		map[string]any{"fields": issues},
		requestID,
	)
}
