package dashboard

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var ErrJobRunNotFound = fmt.Errorf("job run not found: %w", errs.ErrNotFound)
