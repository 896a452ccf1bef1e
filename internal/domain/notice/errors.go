package notice

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrNoticeNotFound    = fmt.Errorf("privacy notice not found: %w", errs.ErrNotFound)
	ErrInvalidTransition = fmt.Errorf("privacy notice status change not allowed: %w", errs.ErrInvalidState)
	ErrNotDraft          = fmt.Errorf("only draft privacy notices can be edited: %w", errs.ErrInvalidState)
	ErrVersionExists     = fmt.Errorf("privacy notice version already exists: %w", errs.ErrConflict)
	ErrConcurrentUpdate  = fmt.Errorf("privacy notice was modified concurrently: %w", errs.ErrConflict)
)
