package auth

import (
	"errors"
	"fmt"

	"consenthub/internal/domain/errs"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = fmt.Errorf("user not found: %w", errs.ErrNotFound)
)
