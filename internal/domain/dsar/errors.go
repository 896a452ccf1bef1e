package dsar

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrRequestNotFound   = fmt.Errorf("dsar request not found: %w", errs.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("dsar status transition not allowed: %w", errs.ErrInvalidState)
	ErrNotPending        = fmt.Errorf("dsar request is not pending: %w", errs.ErrInvalidState)
	ErrNotExportable     = fmt.Errorf("dsar request has no export: %w", errs.ErrInvalidState)
	ErrExportExpired     = fmt.Errorf("dsar export link has expired: %w", errs.ErrInvalidState)
	ErrNoCertificate     = fmt.Errorf("dsar request has no deletion certificate: %w", errs.ErrInvalidState)
	ErrConcurrentUpdate  = fmt.Errorf("dsar request was modified concurrently: %w", errs.ErrConflict)
	ErrNotOwner          = fmt.Errorf("dsar request belongs to another data subject: %w", errs.ErrForbidden)
	ErrNoLinkedAccount   = fmt.Errorf("no account is linked to the requester: %w", errs.ErrUpstream)
)
