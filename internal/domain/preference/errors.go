package preference

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrCategoryNotFound = fmt.Errorf("preference category not found: %w", errs.ErrNotFound)
	ErrItemNotFound     = fmt.Errorf("preference item not found: %w", errs.ErrNotFound)
	ErrCategoryInUse    = fmt.Errorf("preference category still has items: %w", errs.ErrConflict)
	ErrDuplicate        = fmt.Errorf("preference name or key already exists: %w", errs.ErrConflict)
	ErrNotOwner         = fmt.Errorf("preferences belong to another user: %w", errs.ErrForbidden)
)
