package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

const consentColumns = `id, seq, party_id, purpose, channel, consent_type, status, granted_at, revoked_at,
    valid_from, valid_to, source, COALESCE(privacy_notice_id::text, ''), version_accepted,
    COALESCE(guardian_id::text, ''), metadata, row_version, created_at, updated_at`

func (s *Store) CreateBatch(ctx context.Context, records []Consent, actorID string) ([]Consent, error) {
	out := make([]Consent, 0, len(records))
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		for _, c := range records {
			metadata, err := json.Marshal(nonNil(c.Metadata))
			if err != nil {
				return err
			}
			created, err := scanConsent(tx.QueryRow(ctx, `
        INSERT INTO consents (party_id, purpose, channel, consent_type, status, granted_at, revoked_at,
          valid_from, valid_to, source, privacy_notice_id, version_accepted, guardian_id, metadata,
          created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
        RETURNING `+consentColumns,
				c.PartyID, c.Purpose, c.Channel, c.ConsentType, c.Status, c.GrantedAt, c.RevokedAt,
				c.ValidFrom, c.ValidTo, c.Source, nullable(c.PrivacyNoticeID), c.VersionAccepted,
				nullable(c.GuardianID), metadata, c.CreatedAt,
			))
			if err != nil {
				return insertError(err)
			}
			if err := insertHistory(ctx, tx, HistoryEntry{
				ConsentID:   created.ID,
				NewStatus:   created.Status,
				ActorUserID: actorID,
				Reason:      "created",
				ChangedAt:   created.CreatedAt,
			}); err != nil {
				return err
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (Consent, error) {
	c, err := scanConsent(s.DB.QueryRow(ctx, "SELECT "+consentColumns+" FROM consents WHERE id::text = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Consent{}, ErrConsentNotFound
	}
	return c, err
}

func (s *Store) List(ctx context.Context, filter Filter, limit, offset int) ([]Consent, int, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.PartyID != "" {
		add("party_id = $%d", filter.PartyID)
	}
	if filter.Purpose != "" {
		add("purpose = $%d", filter.Purpose)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ConsentType != "" {
		add("consent_type = $%d", filter.ConsentType)
	}
	if filter.GuardianID != "" {
		add("guardian_id::text = $%d", filter.GuardianID)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM consents"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, fmt.Sprintf(
		"SELECT %s FROM consents%s ORDER BY updated_at DESC, seq DESC LIMIT $%d OFFSET $%d",
		consentColumns, where, len(args)-1, len(args),
	), args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Consent, error) {
		return scanConsent(row)
	})
	return out, total, err
}

func (s *Store) ListByParty(ctx context.Context, partyID string) ([]Consent, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+consentColumns+" FROM consents WHERE party_id = $1 ORDER BY seq", partyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Consent, error) {
		return scanConsent(row)
	})
}

func (s *Store) UpdateStatus(ctx context.Context, c Consent, entry HistoryEntry) (Consent, error) {
	var updated Consent
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		updated, err = scanConsent(tx.QueryRow(ctx, `
      UPDATE consents
      SET status = $1, granted_at = $2, revoked_at = $3, updated_at = $4, row_version = row_version + 1
      WHERE id = $5 AND row_version = $6
      RETURNING `+consentColumns,
			c.Status, c.GrantedAt, c.RevokedAt, c.UpdatedAt, c.ID, c.RowVersion,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConcurrentUpdate
		}
		if err != nil {
			return err
		}
		return insertHistory(ctx, tx, entry)
	})
	return updated, err
}

func (s *Store) History(ctx context.Context, consentID string) ([]HistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, consent_id, previous_status, new_status, actor_user_id, reason, changed_at
    FROM consent_history
    WHERE consent_id::text = $1
    ORDER BY changed_at, id
  `, consentID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (HistoryEntry, error) {
		var h HistoryEntry
		err := row.Scan(&h.ID, &h.ConsentID, &h.PreviousStatus, &h.NewStatus, &h.ActorUserID, &h.Reason, &h.ChangedAt)
		return h, err
	})
}

func insertHistory(ctx context.Context, tx pgx.Tx, h HistoryEntry) error {
	_, err := tx.Exec(ctx, `
    INSERT INTO consent_history (consent_id, previous_status, new_status, actor_user_id, reason, changed_at)
    VALUES ($1,$2,$3,$4,$5,$6)
  `, h.ConsentID, h.PreviousStatus, h.NewStatus, h.ActorUserID, h.Reason, h.ChangedAt)
	return err
}

const guardianColumns = `id, COALESCE(user_id::text, ''), name, email, phone, relationship, minor_dependents, created_at`

func (s *Store) GetGuardian(ctx context.Context, id string) (Guardian, error) {
	g, err := scanGuardian(s.DB.QueryRow(ctx, "SELECT "+guardianColumns+" FROM guardians WHERE id::text = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Guardian{}, ErrGuardianNotFound
	}
	return g, err
}

func (s *Store) ListGuardians(ctx context.Context) ([]Guardian, error) {
	rows, err := s.DB.Query(ctx, "SELECT "+guardianColumns+" FROM guardians ORDER BY name")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Guardian, error) {
		return scanGuardian(row)
	})
}

func scanConsent(row pgx.Row) (Consent, error) {
	var c Consent
	var metadata []byte
	err := row.Scan(
		&c.ID, &c.Seq, &c.PartyID, &c.Purpose, &c.Channel, &c.ConsentType, &c.Status, &c.GrantedAt, &c.RevokedAt,
		&c.ValidFrom, &c.ValidTo, &c.Source, &c.PrivacyNoticeID, &c.VersionAccepted,
		&c.GuardianID, &metadata, &c.RowVersion, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Consent{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return Consent{}, err
		}
	}
	return c, nil
}

func scanGuardian(row pgx.Row) (Guardian, error) {
	var g Guardian
	var minors []byte
	if err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Email, &g.Phone, &g.Relationship, &minors, &g.CreatedAt); err != nil {
		return Guardian{}, err
	}
	g.MinorDependents = []MinorDependent{}
	if len(minors) > 0 {
		if err := json.Unmarshal(minors, &g.MinorDependents); err != nil {
			return Guardian{}, err
		}
	}
	return g, nil
}

// insertError turns foreign key violations on a consent insert into the
// domain errors the caller can act on.
func insertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		return err
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "privacy_notice"):
		return ErrUnknownNotice
	case strings.Contains(pgErr.ConstraintName, "guardian"):
		return ErrGuardianNotFound
	}
	return err
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
