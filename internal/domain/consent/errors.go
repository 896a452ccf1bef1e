package consent

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrConsentNotFound       = fmt.Errorf("consent not found: %w", errs.ErrNotFound)
	ErrGuardianNotFound      = fmt.Errorf("guardian not found: %w", errs.ErrNotFound)
	ErrGuardianNotAuthorized = fmt.Errorf("guardian is not authorized for this minor: %w", errs.ErrForbidden)
	ErrNotOwner              = fmt.Errorf("consent belongs to another party: %w", errs.ErrForbidden)
	ErrConcurrentUpdate      = fmt.Errorf("consent was modified concurrently: %w", errs.ErrConflict)
	ErrUnknownNotice         = errs.Invalid("privacyNoticeId", "does not reference a privacy notice")
)
