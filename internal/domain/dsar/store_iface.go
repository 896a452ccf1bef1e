package dsar

import (
	"context"
	"time"
)

type StoreAPI interface {
	Create(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, id string) (Request, error)
	List(ctx context.Context, filter Filter, now time.Time, limit, offset int) ([]Request, int, error)
	// UpdateLifecycle persists r only if the stored row is still at
	// r.RowVersion; otherwise it returns ErrConcurrentUpdate.
	UpdateLifecycle(ctx context.Context, r Request) (Request, error)
	Delete(ctx context.Context, id string) error
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}

// SubjectData reaches the data held about a data subject across the other
// domains. Implementations must tolerate an empty party id.
type SubjectData interface {
	ResolveParty(ctx context.Context, email string) (string, error)
	ExportSubject(ctx context.Context, partyID, email string) (map[string]any, error)
	EraseSubject(ctx context.Context, partyID string) (Erasure, error)
	RectifySubject(ctx context.Context, partyID string, corrections map[string]string) ([]string, error)
}

type Erasure struct {
	Scope          []string
	RecordsDeleted int64
}
