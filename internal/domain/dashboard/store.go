package dashboard

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/domain/consent"
	"consenthub/internal/domain/dsar"
	"consenthub/internal/domain/notice"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) UserStats(ctx context.Context) (UserStats, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT r.name, COUNT(u.id), COUNT(u.id) FILTER (WHERE u.status = 'active')
    FROM users u
    JOIN roles r ON r.id = u.role_id
    GROUP BY r.name
  `)
	if err != nil {
		return UserStats{}, err
	}
	defer rows.Close()

	stats := UserStats{ByRole: map[string]int{}}
	for rows.Next() {
		var role string
		var total, active int
		if err := rows.Scan(&role, &total, &active); err != nil {
			return UserStats{}, err
		}
		stats.ByRole[role] = total
		stats.Total += total
		stats.Active += active
	}
	return stats, rows.Err()
}

func (s *Store) EffectiveConsents(ctx context.Context) ([]consent.Consent, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT ON (party_id, purpose) party_id, purpose, status
    FROM consents
    ORDER BY party_id, purpose, GREATEST(updated_at, granted_at, revoked_at) DESC, seq DESC
  `)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (consent.Consent, error) {
		var c consent.Consent
		err := row.Scan(&c.PartyID, &c.Purpose, &c.Status)
		return c, err
	})
}

func (s *Store) DSARStats(ctx context.Context, now time.Time) (DSARStats, error) {
	stats := DSARStats{ByStatus: map[string]int{}, ByType: map[string]int{}}

	rows, err := s.DB.Query(ctx, "SELECT status, request_type, COUNT(1) FROM dsar_requests GROUP BY status, request_type")
	if err != nil {
		return DSARStats{}, err
	}
	for rows.Next() {
		var status, typ string
		var count int
		if err := rows.Scan(&status, &typ, &count); err != nil {
			rows.Close()
			return DSARStats{}, err
		}
		stats.ByStatus[status] += count
		stats.ByType[typ] += count
		stats.Total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return DSARStats{}, err
	}

	open := []any{dsar.StatusPending, dsar.StatusInProgress}
	if err := s.DB.QueryRow(ctx, `
    SELECT
      COUNT(1) FILTER (WHERE due_date < $3),
      COUNT(1) FILTER (WHERE due_date >= $3 AND due_date < $4)
    FROM dsar_requests
    WHERE status IN ($1,$2)
  `, open[0], open[1], now, now.Add(7*24*time.Hour)).Scan(&stats.Overdue, &stats.DueWithinWeek); err != nil {
		return DSARStats{}, err
	}

	if err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - submitted_at)) / 3600), 0)::float8
    FROM dsar_requests
    WHERE status = $1 AND completed_at IS NOT NULL
  `, dsar.StatusCompleted).Scan(&stats.AvgCompletionHours); err != nil {
		return DSARStats{}, err
	}
	return stats, nil
}

func (s *Store) NoticeStats(ctx context.Context) (NoticeStats, error) {
	var stats NoticeStats
	err := s.DB.QueryRow(ctx, `
    SELECT
      COUNT(1) FILTER (WHERE status = $1),
      COUNT(1) FILTER (WHERE status = $2),
      COUNT(1) FILTER (WHERE status = $3)
    FROM privacy_notices
  `, notice.StatusActive, notice.StatusDraft, notice.StatusArchived).Scan(&stats.Active, &stats.Draft, &stats.Archived)
	return stats, err
}

func (s *Store) WebhookStats(ctx context.Context, since time.Time) (WebhookStats, error) {
	var stats WebhookStats
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM webhooks WHERE status = $1", webhook.StatusActive).Scan(&stats.Active); err != nil {
		return WebhookStats{}, err
	}
	err := s.DB.QueryRow(ctx, `
    SELECT
      COUNT(1) FILTER (WHERE status = $1),
      COUNT(1) FILTER (WHERE status = $2)
    FROM webhook_deliveries
    WHERE attempted_at >= $3
  `, webhook.DeliveryDelivered, webhook.DeliveryFailed, since).Scan(&stats.DeliveredLast24h, &stats.FailedLast24h)
	return stats, err
}

func (s *Store) ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	query, args := buildJobRunsBaseQuery(filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (JobRun, error) {
		return scanJobRun(row)
	})
}

func (s *Store) CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) JobRunByID(ctx context.Context, id string) (JobRun, error) {
	run, err := scanJobRun(s.DB.QueryRow(ctx, `
    SELECT id, job_type, subject_id, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE id::text = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRun{}, ErrJobRunNotFound
	}
	return run, err
}

func buildJobRunsBaseQuery(filter JobRunFilter) (string, []any) {
	query := `
    SELECT id, job_type, subject_id, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE 1=1
  `
	var args []any

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}
	return query, args
}

func scanJobRun(row pgx.Row) (JobRun, error) {
	var run JobRun
	var details []byte
	err := row.Scan(&run.ID, &run.JobType, &run.SubjectID, &run.Status, &details, &run.StartedAt, &run.CompletedAt)
	run.Details = details
	return run, err
}
