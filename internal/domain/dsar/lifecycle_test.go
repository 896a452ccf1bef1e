package dsar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consenthub/internal/domain/errs"
)

var allStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusRejected}

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusInProgress}:   true,
		{StatusPending, StatusRejected}:     true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusRejected}:  true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusRejected} {
		for _, to := range allStatuses {
			_, err := Transition(Request{Status: from}, to, TransitionInput{}, time.Now())
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrInvalidState))
		}
	}
}

func TestTransitionStampsTimestamps(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Request{ID: "r1", Status: StatusPending}

	started, err := Transition(r, StatusInProgress, TransitionInput{Actor: "csr-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, r.Status, "input must not be modified")
	require.NotNil(t, started.ProcessingStartedAt)
	assert.Equal(t, now, *started.ProcessingStartedAt)
	assert.Equal(t, "csr-1", started.AssignedTo)
	assert.Nil(t, started.CompletedAt)

	result := &ProcessingResult{ProcessedAt: now}
	done, err := Transition(started, StatusCompleted, TransitionInput{Result: result}, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.FailedAt)
	assert.Same(t, result, done.ProcessingResult)

	rejected, err := Transition(r, StatusRejected, TransitionInput{Reason: "  duplicate  "}, now)
	require.NoError(t, err)
	require.NotNil(t, rejected.FailedAt)
	assert.Equal(t, "duplicate", rejected.FailureReason)
	assert.Nil(t, rejected.CompletedAt)
}

func TestCannotCompleteFromPending(t *testing.T) {
	_, err := Transition(Request{Status: StatusPending}, StatusCompleted, TransitionInput{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssess(t *testing.T) {
	submitted := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		days int
		want RiskLevel
	}{
		{0, RiskLow},
		{14, RiskLow},
		{15, RiskMedium},
		{19, RiskMedium},
		{20, RiskHigh},
		{24, RiskHigh},
		{25, RiskCritical},
		{40, RiskCritical},
	}
	for _, tc := range tests {
		r := Request{Status: StatusPending, RequestType: TypeAccess, SubmittedAt: submitted, DueDate: DueDate(submitted, 30)}
		risk := Assess(r, submitted.Add(time.Duration(tc.days)*day+time.Hour))
		assert.Equal(t, tc.days, risk.DaysSinceCreation)
		assert.Equal(t, tc.want, risk.RiskLevel, "day %d", tc.days)
	}
}

func TestAssessOverdueAndEligibility(t *testing.T) {
	submitted := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	due := DueDate(submitted, 30)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), due)

	late := due.Add(36 * time.Hour)
	open := Assess(Request{Status: StatusInProgress, RequestType: TypeErasure, SubmittedAt: submitted, DueDate: due}, late)
	assert.True(t, open.Overdue)
	assert.False(t, open.AutomationEligible)
	assert.Equal(t, -2, open.DaysUntilDue)

	closed := Assess(Request{Status: StatusCompleted, RequestType: TypeAccess, SubmittedAt: submitted, DueDate: due}, late)
	assert.False(t, closed.Overdue)

	for typ, eligible := range map[RequestType]bool{
		TypeAccess:        true,
		TypePortability:   true,
		TypeErasure:       false,
		TypeRectification: false,
	} {
		got := Assess(Request{Status: StatusPending, RequestType: typ, SubmittedAt: submitted, DueDate: due}, submitted)
		assert.Equal(t, eligible, got.AutomationEligible, string(typ))
	}
}

func TestParseRequestType(t *testing.T) {
	tests := map[string]RequestType{
		"data_access":        TypeAccess,
		"export":             TypeAccess,
		"Access":             TypeAccess,
		"delete":             TypeErasure,
		"data-erasure":       TypeErasure,
		"portability":        TypePortability,
		"rectify":            TypeRectification,
		" correction ":       TypeRectification,
		"data rectification": TypeRectification,
	}
	for raw, want := range tests {
		got, err := ParseRequestType(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseRequestType("shred")
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestBuildResult(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	r := Request{RequestID: "DSAR-20250601-ABCDEF", RequesterEmail: "a@example.com"}

	r.RequestType = TypeAccess
	access := BuildResult(r, ResultInput{ExportSize: 42, DownloadLink: "https://x/export", ExportTTL: 7 * day, Automated: true}, now)
	assert.True(t, access.DataExported)
	assert.Equal(t, FormatJSON, access.ExportFormat)
	require.NotNil(t, access.ExpiresAt)
	assert.Equal(t, now.Add(7*day), *access.ExpiresAt)

	r.RequestType = TypePortability
	assert.Equal(t, FormatJSONCSV, BuildResult(r, ResultInput{}, now).ExportFormat)

	r.RequestType = TypeErasure
	erasure := BuildResult(r, ResultInput{Erasure: Erasure{Scope: []string{ScopePreferences}, RecordsDeleted: 3}}, now)
	assert.True(t, erasure.DataDeleted)
	assert.Equal(t, []string{ScopePreferences}, erasure.DeletionScope)
	require.NotNil(t, erasure.RetentionCompliance)
	assert.True(t, *erasure.RetentionCompliance)
	assert.Equal(t, CertificateID(r, now), erasure.DeletionCertificate)
	assert.Contains(t, erasure.DeletionCertificate, "CERT-DSAR-20250601-ABCDEF-")

	nothing := BuildResult(r, ResultInput{}, now)
	assert.False(t, nothing.DataDeleted)
	assert.Equal(t, []string{}, nothing.DeletionScope)
	assert.Empty(t, nothing.DeletionCertificate)

	r.RequestType = TypeRectification
	named := BuildResult(r, ResultInput{FieldsUpdated: []string{"name"}}, now)
	assert.True(t, named.DataRectified)
	require.NotNil(t, named.VerificationRequired)
	assert.False(t, *named.VerificationRequired)
	contact := BuildResult(r, ResultInput{FieldsUpdated: []string{"email", "name"}}, now)
	assert.True(t, *contact.VerificationRequired)
}

func TestErasureOfListsOnlyTouchedCategories(t *testing.T) {
	assert.Equal(t, Erasure{Scope: []string{}}, erasureOf(0, 0, 0))
	assert.Equal(t, Erasure{Scope: []string{ScopePreferences}, RecordsDeleted: 2}, erasureOf(2, 0, 0))
	assert.Equal(t, Erasure{Scope: []string{ScopeContact}, RecordsDeleted: 1}, erasureOf(0, 0, 1))
	assert.Equal(t,
		Erasure{Scope: []string{ScopeProfile, ScopeContact, ScopePreferences}, RecordsDeleted: 4},
		erasureOf(2, 1, 1))
}

func TestCorrections(t *testing.T) {
	got := Corrections(map[string]any{"corrections": map[string]any{" Name ": " Ada ", "age": 3}})
	assert.Equal(t, map[string]string{"name": "Ada"}, got)
	assert.Nil(t, Corrections(map[string]any{}))
}
