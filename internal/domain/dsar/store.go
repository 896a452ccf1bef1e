package dsar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const requestColumns = `id, request_id, requester_name, requester_email, requester_phone, party_id,
    request_type, priority, status, description, details, assigned_to, submitted_at,
    processing_started_at, completed_at, failed_at, due_date, processing_result,
    failure_reason, row_version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, r Request) (Request, error) {
	details, err := json.Marshal(nonNilDetails(r.Details))
	if err != nil {
		return Request{}, err
	}
	row := s.DB.QueryRow(ctx, `
    INSERT INTO dsar_requests (request_id, requester_name, requester_email, requester_phone, party_id,
      request_type, priority, status, description, details, submitted_at, due_date)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    RETURNING `+requestColumns,
		r.RequestID, r.RequesterName, r.RequesterEmail, r.PhoneSealed, r.PartyID,
		r.RequestType, r.Priority, r.Status, r.Description, details, r.SubmittedAt, r.DueDate,
	)
	return scanRequest(row)
}

func (s *Store) Get(ctx context.Context, id string) (Request, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `
    SELECT `+requestColumns+`
    FROM dsar_requests
    WHERE id::text = $1 OR request_id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrRequestNotFound
	}
	return r, err
}

func (s *Store) List(ctx context.Context, filter Filter, now time.Time, limit, offset int) ([]Request, int, error) {
	where, args := buildFilter(filter, now)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM dsar_requests"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
    SELECT %s
    FROM dsar_requests%s
    ORDER BY submitted_at DESC
    LIMIT $%d OFFSET $%d
  `, requestColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Request, error) {
		return scanRequest(row)
	})
	return out, total, err
}

func buildFilter(filter Filter, now time.Time) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.RequestType != "" {
		add("request_type = $%d", filter.RequestType)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.Email != "" {
		add("lower(requester_email) = lower($%d)", filter.Email)
	}
	if filter.OverdueOnly {
		add("status IN ('pending','in_progress') AND due_date < $%d", now)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) UpdateLifecycle(ctx context.Context, r Request) (Request, error) {
	var result []byte
	if r.ProcessingResult != nil {
		encoded, err := json.Marshal(r.ProcessingResult)
		if err != nil {
			return Request{}, err
		}
		result = encoded
	}
	updated, err := scanRequest(s.DB.QueryRow(ctx, `
    UPDATE dsar_requests
    SET status = $1, assigned_to = $2, processing_started_at = $3, completed_at = $4,
        failed_at = $5, processing_result = $6, failure_reason = $7,
        row_version = row_version + 1, updated_at = now()
    WHERE id = $8 AND row_version = $9
    RETURNING `+requestColumns,
		r.Status, r.AssignedTo, r.ProcessingStartedAt, r.CompletedAt,
		r.FailedAt, result, r.FailureReason, r.ID, r.RowVersion,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrConcurrentUpdate
	}
	return updated, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM dsar_requests WHERE id::text = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRequestNotFound
	}
	return nil
}

func (s *Store) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM dsar_requests
    WHERE status IN ('pending','in_progress') AND due_date < $1
  `, now).Scan(&count)
	return count, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var details, result []byte
	err := row.Scan(
		&r.ID, &r.RequestID, &r.RequesterName, &r.RequesterEmail, &r.PhoneSealed, &r.PartyID,
		&r.RequestType, &r.Priority, &r.Status, &r.Description, &details, &r.AssignedTo, &r.SubmittedAt,
		&r.ProcessingStartedAt, &r.CompletedAt, &r.FailedAt, &r.DueDate, &result,
		&r.FailureReason, &r.RowVersion, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return Request{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return Request{}, err
		}
	}
	if len(result) > 0 {
		r.ProcessingResult = &ProcessingResult{}
		if err := json.Unmarshal(result, r.ProcessingResult); err != nil {
			return Request{}, err
		}
	}
	return r, nil
}

func nonNilDetails(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}
