package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrorMatchesKind(t *testing.T) {
	err := fmt.Errorf("create request: %w", Invalid("requesterEmail", "is required"))

	require.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []FieldIssue{{Field: "requesterEmail", Reason: "is required"}}, IssuesOf(err))
}

func TestValidationErrorErrNilWhenEmpty(t *testing.T) {
	v := &ValidationError{}
	v.Add("name", "  ")
	assert.NoError(t, v.Err())
}

func TestValidationErrorSortsIssues(t *testing.T) {
	v := &ValidationError{}
	v.Add("status", "unknown")
	v.Add("purpose", "is required")
	v.Add("partyId", "is required")

	err := v.Err()
	require.Error(t, err)
	issues := IssuesOf(err)
	require.Len(t, issues, 3)
	assert.Equal(t, "partyId", issues[0].Field)
	assert.Equal(t, "status", issues[2].Field)
	assert.Contains(t, err.Error(), "purpose: is required")
}

func TestWrappedSentinels(t *testing.T) {
	errMissing := fmt.Errorf("dsar request not found: %w", ErrNotFound)
	assert.True(t, errors.Is(fmt.Errorf("load: %w", errMissing), ErrNotFound))
	assert.Nil(t, IssuesOf(errMissing))
}
