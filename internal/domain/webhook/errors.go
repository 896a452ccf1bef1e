package webhook

import (
	"fmt"

	"consenthub/internal/domain/errs"
)

var ErrSubscriptionNotFound = fmt.Errorf("webhook subscription not found: %w", errs.ErrNotFound)
