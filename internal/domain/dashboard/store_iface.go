package dashboard

import (
	"context"
	"time"

	"consenthub/internal/domain/consent"
)

type StoreAPI interface {
	UserStats(ctx context.Context) (UserStats, error)
	// EffectiveConsents returns the current record per party and purpose.
	EffectiveConsents(ctx context.Context) ([]consent.Consent, error)
	DSARStats(ctx context.Context, now time.Time) (DSARStats, error)
	NoticeStats(ctx context.Context) (NoticeStats, error)
	WebhookStats(ctx context.Context, since time.Time) (WebhookStats, error)

	ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error)
	JobRunByID(ctx context.Context, id string) (JobRun, error)
}
