package webhook

import "context"

type StoreAPI interface {
	CreateSubscription(ctx context.Context, sub Subscription) (Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]Subscription, error)
	RecordDelivery(ctx context.Context, d Delivery) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]Delivery, error)
}
