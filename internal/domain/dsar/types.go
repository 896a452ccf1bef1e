package dsar

import (
	"strings"

	"consenthub/internal/domain/errs"
)

var requestTypeAliases = map[string]RequestType{
	"data_access":        TypeAccess,
	"access":             TypeAccess,
	"export":             TypeAccess,
	"data_export":        TypeAccess,
	"data_erasure":       TypeErasure,
	"erasure":            TypeErasure,
	"delete":             TypeErasure,
	"deletion":           TypeErasure,
	"data_deletion":      TypeErasure,
	"data_portability":   TypePortability,
	"portability":        TypePortability,
	"port":               TypePortability,
	"transfer":           TypePortability,
	"data_rectification": TypeRectification,
	"rectification":      TypeRectification,
	"rectify":            TypeRectification,
	"correction":         TypeRectification,
	"correct":            TypeRectification,
	"update":             TypeRectification,
}

// ParseRequestType is the single place where external spellings of a request
// type are mapped onto the canonical enum.
func ParseRequestType(raw string) (RequestType, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if t, ok := requestTypeAliases[key]; ok {
		return t, nil
	}
	return "", errs.Invalid("requestType", "must be one of data_access, data_erasure, data_portability, data_rectification")
}

func (t RequestType) Valid() bool {
	switch t {
	case TypeAccess, TypeErasure, TypePortability, TypeRectification:
		return true
	}
	return false
}

// Exportable types produce a downloadable export and can be automated.
func (t RequestType) Exportable() bool {
	return t == TypeAccess || t == TypePortability
}

func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	}
	return "", errs.Invalid("priority", "must be one of low, medium, high")
}

func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRejected:
		return s, nil
	}
	return "", errs.Invalid("status", "must be one of pending, in_progress, completed, rejected")
}
