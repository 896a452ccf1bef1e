package consent

import "context"

type StoreAPI interface {
	// CreateBatch inserts records and their initial history rows atomically.
	CreateBatch(ctx context.Context, records []Consent, actorID string) ([]Consent, error)
	Get(ctx context.Context, id string) (Consent, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]Consent, int, error)
	ListByParty(ctx context.Context, partyID string) ([]Consent, error)
	// UpdateStatus persists c when the stored row is still at c.RowVersion and
	// appends a history row in the same transaction.
	UpdateStatus(ctx context.Context, c Consent, entry HistoryEntry) (Consent, error)
	History(ctx context.Context, consentID string) ([]HistoryEntry, error)
	GetGuardian(ctx context.Context, id string) (Guardian, error)
	ListGuardians(ctx context.Context) ([]Guardian, error)
}
