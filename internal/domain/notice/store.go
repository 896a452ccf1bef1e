package notice

import (
	"context"
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

const noticeColumns = `id, title, content, version, status, COALESCE(parent_id::text, ''), lineage_id, changes,
    language, effective_date, COALESCE(created_by::text, ''), row_version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, n Notice) (Notice, error) {
	created, err := scanNotice(s.DB.QueryRow(ctx, `
    INSERT INTO privacy_notices (id, title, content, version, status, parent_id, lineage_id, changes,
      language, effective_date, created_by)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING `+noticeColumns,
		n.ID, n.Title, n.Content, n.Version, n.Status, nullable(n.ParentID), n.LineageID, n.Changes,
		n.Language, n.EffectiveDate, nullable(n.CreatedBy),
	))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Notice{}, ErrVersionExists
	}
	return created, err
}

func (s *Store) Get(ctx context.Context, id string) (Notice, error) {
	n, err := scanNotice(s.DB.QueryRow(ctx, "SELECT "+noticeColumns+" FROM privacy_notices WHERE id::text = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notice{}, ErrNoticeNotFound
	}
	return n, err
}

func (s *Store) List(ctx context.Context, filter Filter) ([]Notice, error) {
	var clauses []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		clauses = append(clauses, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.LineageID != "" {
		args = append(args, filter.LineageID)
		clauses = append(clauses, fmt.Sprintf("lineage_id::text = $%d", len(args)))
	}
	query := "SELECT " + noticeColumns + " FROM privacy_notices"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := s.DB.Query(ctx, query+" ORDER BY created_at DESC", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notice, error) {
		return scanNotice(row)
	})
}

func (s *Store) Update(ctx context.Context, n Notice) (Notice, error) {
	return update(ctx, s.DB, n)
}

func update(ctx context.Context, db querier.Querier, n Notice) (Notice, error) {
	updated, err := scanNotice(db.QueryRow(ctx, `
    UPDATE privacy_notices
    SET title = $1, content = $2, language = $3, effective_date = $4, status = $5,
        row_version = row_version + 1, updated_at = now()
    WHERE id = $6 AND row_version = $7
    RETURNING `+noticeColumns,
		n.Title, n.Content, n.Language, n.EffectiveDate, n.Status, n.ID, n.RowVersion,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Notice{}, ErrConcurrentUpdate
	}
	return updated, err
}

func (s *Store) Activate(ctx context.Context, n Notice) (Notice, []Notice, error) {
	var activated Notice
	var archived []Notice
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
      UPDATE privacy_notices
      SET status = $1, row_version = row_version + 1, updated_at = now()
      WHERE lineage_id = $2 AND status = $3 AND id <> $4
      RETURNING `+noticeColumns,
			StatusArchived, n.LineageID, StatusActive, n.ID,
		)
		if err != nil {
			return err
		}
		archived, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Notice, error) {
			return scanNotice(row)
		})
		if err != nil {
			return err
		}
		activated, err = update(ctx, tx, n)
		return err
	})
	return activated, archived, err
}

func scanNotice(row pgx.Row) (Notice, error) {
	var n Notice
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Version, &n.Status, &n.ParentID, &n.LineageID, &n.Changes,
		&n.Language, &n.EffectiveDate, &n.CreatedBy, &n.RowVersion, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
