// Package errs holds the error kinds shared by every domain package. Domain
// packages wrap these in their own sentinels so the HTTP layer can map any of
// them with errors.Is.
package errs

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("concurrent modification")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUpstream     = errors.New("upstream failure")
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries per-field issues. It matches ErrValidation.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add records an issue; empty reasons are ignored.
func (e *ValidationError) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	e.Issues = append(e.Issues, FieldIssue{Field: strings.TrimSpace(field), Reason: reason})
}

// Err returns nil when no issues were recorded, so callers can write
// `return v.Err()` at the end of a validation block.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Issues) == 0 {
		return nil
	}
	sort.SliceStable(e.Issues, func(i, j int) bool {
		if e.Issues[i].Field == e.Issues[j].Field {
			return e.Issues[i].Reason < e.Issues[j].Reason
		}
		return e.Issues[i].Field < e.Issues[j].Field
	})
	return e
}

func Invalid(field, reason string) error {
	v := &ValidationError{}
	v.Add(field, reason)
	return v.Err()
}

// IssuesOf extracts field issues from err, if it carries any.
func IssuesOf(err error) []FieldIssue {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Issues
	}
	return nil
}
