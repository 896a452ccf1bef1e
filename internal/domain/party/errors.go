package party

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrPartyNotFound = fmt.Errorf("party not found: %w", errs.ErrNotFound)
	ErrNotOwner      = fmt.Errorf("party belongs to another user: %w", errs.ErrForbidden)
)
