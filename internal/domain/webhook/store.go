package webhook

import (
	"context"

	"github.com/jackc/pgx/v5"

	"consenthub/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO webhooks (url, events, status, created_by)
    VALUES ($1,$2,$3,$4)
    RETURNING id, created_at
  `, sub.URL, sub.Events, sub.Status, sub.CreatedBy).Scan(&sub.ID, &sub.CreatedAt)
	return sub, err
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM webhooks WHERE id::text = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	return s.list(ctx, `SELECT id, url, events, status, created_by, created_at FROM webhooks ORDER BY created_at`)
}

func (s *Store) ListActiveSubscriptions(ctx context.Context) ([]Subscription, error) {
	return s.list(ctx, `SELECT id, url, events, status, created_by, created_at FROM webhooks WHERE status = $1 ORDER BY created_at`, StatusActive)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]Subscription, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Subscription, error) {
		var sub Subscription
		err := row.Scan(&sub.ID, &sub.URL, &sub.Events, &sub.Status, &sub.CreatedBy, &sub.CreatedAt)
		return sub, err
	})
}

func (s *Store) RecordDelivery(ctx context.Context, d Delivery) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO webhook_deliveries (webhook_id, event_id, event_type, status, status_code, error, attempted_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, d.WebhookID, d.EventID, d.EventType, d.Status, d.StatusCode, d.Error, d.AttemptedAt)
	return err
}

func (s *Store) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, webhook_id, event_id, event_type, status, status_code, error, attempted_at
    FROM webhook_deliveries
    WHERE webhook_id::text = $1
    ORDER BY attempted_at DESC
    LIMIT $2
  `, webhookID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Delivery, error) {
		var d Delivery
		err := row.Scan(&d.ID, &d.WebhookID, &d.EventID, &d.EventType, &d.Status, &d.StatusCode, &d.Error, &d.AttemptedAt)
		return d, err
	})
}
