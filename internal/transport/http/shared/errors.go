package shared

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"consenthub/internal/domain/errs"
	"consenthub/internal/transport/http/api"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{kind: errs.ErrNotFound, status: http.StatusNotFound, code: "not_found"},
	{kind: errs.ErrInvalidState, status: http.StatusConflict, code: "invalid_state"},
	{kind: errs.ErrConflict, status: http.StatusConflict, code: "conflict"},
	{kind: errs.ErrForbidden, status: http.StatusForbidden, code: "forbidden"},
	{kind: errs.ErrUpstream, status: http.StatusBadGateway, code: "upstream_failure"},
}

// FailError writes the envelope for a service error. Unknown errors are
// logged and reported as internal_error without their text.
func FailError(w http.ResponseWriter, r *http.Request, err error, requestID string) {
	if errors.Is(err, errs.ErrValidation) {
		issues := errs.IssuesOf(err)
		if len(issues) == 0 {
			issues = []errs.FieldIssue{{Reason: err.Error()}}
		}
		FailValidation(w, requestID, issues)
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			api.Fail(w, m.status, m.code, err.Error(), requestID)
			return
		}
	}
	zap.L().Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("requestId", requestID),
		zap.Error(err),
	)
	api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
}
