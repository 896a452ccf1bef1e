package dsar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/platform/querier"
)

const (
	ScopeProfile     = "profile_data"
	ScopeContact     = "contact_details"
	ScopePreferences = "communication_preferences"
)

// SubjectStore implements SubjectData on the shared database.
type SubjectStore struct {
	DB querier.TxBeginner
}

func NewSubjectStore(db querier.TxBeginner) *SubjectStore {
	return &SubjectStore{DB: db}
}

func (s *SubjectStore) ResolveParty(ctx context.Context, email string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id::text FROM users WHERE lower(email) = lower($1)", email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (s *SubjectStore) ExportSubject(ctx context.Context, partyID, email string) (map[string]any, error) {
	queryRows := func(query string, args ...any) ([]map[string]any, error) {
		rows, err := s.DB.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (map[string]any, error) {
			var raw []byte
			if err := row.Scan(&raw); err != nil {
				return nil, err
			}
			var out map[string]any
			err := json.Unmarshal(raw, &out)
			return out, err
		})
	}

	datasets := map[string]any{}
	sets := []struct {
		name  string
		query string
		arg   string
	}{
		{"profile", `SELECT json_build_object('id', id, 'email', email, 'name', name, 'phone', phone, 'status', status, 'createdAt', created_at) FROM users WHERE id::text = $1`, partyID},
		{"consents", `SELECT row_to_json(c) FROM consents c WHERE party_id = $1 ORDER BY seq`, partyID},
		{"consentHistory", `SELECT row_to_json(h) FROM consent_history h JOIN consents c ON h.consent_id = c.id WHERE c.party_id = $1 ORDER BY h.changed_at`, partyID},
		{"preferences", `SELECT json_build_object('key', i.key, 'label', i.label, 'value', up.value, 'updatedAt', up.updated_at) FROM user_preferences up JOIN preference_items i ON up.item_id = i.id WHERE up.user_id = $1`, partyID},
		{"dsarRequests", `SELECT json_build_object('requestId', request_id, 'requestType', request_type, 'status', status, 'submittedAt', submitted_at) FROM dsar_requests WHERE lower(requester_email) = lower($1)`, email},
	}
	for _, set := range sets {
		if set.arg == "" {
			datasets[set.name] = []map[string]any{}
			continue
		}
		rows, err := queryRows(set.query, set.arg)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", set.name, err)
		}
		if rows == nil {
			rows = []map[string]any{}
		}
		datasets[set.name] = rows
	}
	return datasets, nil
}

// EraseSubject removes preferences and anonymises the profile. Consent
// records are kept as proof of lawful processing. The returned scope lists
// only the categories that had rows to erase.
func (s *SubjectStore) EraseSubject(ctx context.Context, partyID string) (Erasure, error) {
	if partyID == "" {
		return Erasure{Scope: []string{}}, nil
	}
	var prefs, profiles, guardians int64
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM user_preferences WHERE user_id = $1", partyID)
		if err != nil {
			return err
		}
		prefs = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `
      UPDATE users
      SET name = '', phone = '', email = 'erased+' || id::text || '@invalid', status = 'erased', updated_at = now()
      WHERE id::text = $1
    `, partyID)
		if err != nil {
			return err
		}
		profiles = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `
      UPDATE guardians SET phone = '', updated_at = now() WHERE user_id::text = $1
    `, partyID)
		if err != nil {
			return err
		}
		guardians = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return Erasure{}, err
	}
	return erasureOf(prefs, profiles, guardians), nil
}

func erasureOf(prefs, profiles, guardians int64) Erasure {
	out := Erasure{Scope: []string{}, RecordsDeleted: prefs + profiles + guardians}
	if profiles > 0 {
		out.Scope = append(out.Scope, ScopeProfile)
	}
	if profiles > 0 || guardians > 0 {
		out.Scope = append(out.Scope, ScopeContact)
	}
	if prefs > 0 {
		out.Scope = append(out.Scope, ScopePreferences)
	}
	return out
}

var rectifiableColumns = map[string]string{
	"name":  "name",
	"email": "email",
	"phone": "phone",
}

func (s *SubjectStore) RectifySubject(ctx context.Context, partyID string, corrections map[string]string) ([]string, error) {
	if partyID == "" {
		return nil, ErrNoLinkedAccount
	}
	var fields, sets []string
	var args []any
	for _, field := range sortedKeys(corrections) {
		column, ok := rectifiableColumns[field]
		if !ok {
			continue
		}
		args = append(args, corrections[field])
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		fields = append(fields, field)
	}
	if len(sets) == 0 {
		return nil, nil
	}
	args = append(args, partyID)
	tag, err := s.DB.Exec(ctx, fmt.Sprintf(
		"UPDATE users SET %s, updated_at = now() WHERE id::text = $%d",
		strings.Join(sets, ", "), len(args),
	), args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNoLinkedAccount
	}
	return fields, nil
}
