package consent

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"consenthub/internal/domain/errs"
)

func TestInsertErrorMapsForeignKeys(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "unknown notice",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "consents_privacy_notice_id_fkey"},
			want: errs.ErrValidation,
		},
		{
			name: "unknown guardian",
			err:  &pgconn.PgError{Code: "23503", ConstraintName: "consents_guardian_id_fkey"},
			want: errs.ErrNotFound,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, insertError(tc.err), tc.want)
		})
	}

	assert.Equal(t, []errs.FieldIssue{{Field: "privacyNoticeId", Reason: "does not reference a privacy notice"}},
		errs.IssuesOf(insertError(&pgconn.PgError{Code: "23503", ConstraintName: "consents_privacy_notice_id_fkey"})))

	other := errors.New("connection reset")
	assert.Same(t, other, insertError(other))
	unique := &pgconn.PgError{Code: "23505"}
	assert.Equal(t, error(unique), insertError(unique))
}
