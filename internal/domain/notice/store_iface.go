package notice

import "context"

type StoreAPI interface {
	Create(ctx context.Context, n Notice) (Notice, error)
	Get(ctx context.Context, id string) (Notice, error)
	List(ctx context.Context, filter Filter) ([]Notice, error)
	// Update writes content fields and status when n.RowVersion is current.
	Update(ctx context.Context, n Notice) (Notice, error)
	// Activate makes n the only active notice of its lineage.
	Activate(ctx context.Context, n Notice) (Notice, []Notice, error)
}
