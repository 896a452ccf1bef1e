package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"consenthub/internal/domain/consent"
)

type fakeStore struct {
	mu        sync.Mutex
	calls     int
	effective []consent.Consent
	dsarErr   error
	runs      []JobRun
}

func (f *fakeStore) UserStats(context.Context) (UserStats, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return UserStats{Total: 3, Active: 2, ByRole: map[string]int{"admin": 1, "customer": 2}}, nil
}

func (f *fakeStore) EffectiveConsents(context.Context) ([]consent.Consent, error) {
	return f.effective, nil
}

func (f *fakeStore) DSARStats(context.Context, time.Time) (DSARStats, error) {
	if f.dsarErr != nil {
		return DSARStats{}, f.dsarErr
	}
	return DSARStats{Total: 4, Overdue: 1, ByStatus: map[string]int{"pending": 4}}, nil
}

func (f *fakeStore) NoticeStats(context.Context) (NoticeStats, error) {
	return NoticeStats{Active: 1, Draft: 2}, nil
}

func (f *fakeStore) WebhookStats(context.Context, time.Time) (WebhookStats, error) {
	return WebhookStats{Active: 2, FailedLast24h: 1}, nil
}

func (f *fakeStore) ListJobRuns(_ context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	var out []JobRun
	for _, r := range f.runs {
		if filter.JobType == "" || r.JobType == filter.JobType {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error) {
	runs, _ := f.ListJobRuns(ctx, filter, len(f.runs), 0)
	return len(runs), nil
}

func (f *fakeStore) JobRunByID(_ context.Context, id string) (JobRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return JobRun{}, ErrJobRunNotFound
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func TestPurposeBreakdown(t *testing.T) {
	effective := []consent.Consent{
		{PartyID: "p1", Purpose: "marketing", Status: consent.StatusGranted},
		{PartyID: "p2", Purpose: "marketing", Status: consent.StatusRevoked},
		{PartyID: "p3", Purpose: "marketing", Status: consent.StatusGranted},
		{PartyID: "p1", Purpose: "analytics", Status: consent.StatusDenied},
	}

	got := PurposeBreakdown(effective)

	require.Len(t, got, 2)
	assert.Equal(t, PurposeStat{Purpose: "marketing", Total: 3, Granted: 2, ComplianceScore: 67}, got[0])
	assert.Equal(t, PurposeStat{Purpose: "analytics", Total: 1, Granted: 0, ComplianceScore: 0}, got[1])
	assert.Empty(t, PurposeBreakdown(nil))
}

func TestOverviewAggregatesAndCaches(t *testing.T) {
	store := &fakeStore{effective: []consent.Consent{
		{PartyID: "p1", Purpose: "marketing", Status: consent.StatusGranted},
		{PartyID: "p2", Purpose: "marketing", Status: consent.StatusRevoked},
	}}
	c := newMapCache()
	svc := NewService(store, c, time.Minute, zaptest.NewLogger(t))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	first, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, fixed, first.GeneratedAt)
	assert.Equal(t, 3, first.Users.Total)
	assert.Equal(t, 2, first.Consents.Total)
	assert.Equal(t, 1, first.Consents.Granted)
	assert.Equal(t, 50, first.Consents.ComplianceScore)
	assert.Equal(t, 1, first.DSAR.Overdue)
	assert.Equal(t, 2, first.Notices.Draft)
	assert.Equal(t, 1, first.Webhooks.FailedLast24h)
	require.Len(t, first.ConsentsByPurpose, 1)

	second, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Consents, second.Consents)
	assert.Equal(t, 1, store.calls)

	svc.Invalidate(ctx)
	_, err = svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestOverviewWithoutCache(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil, time.Minute, zaptest.NewLogger(t))

	out, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Consents.ComplianceScore)

	_, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
}

func TestOverviewPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	c := newMapCache()
	svc := NewService(&fakeStore{dsarErr: boom}, c, time.Minute, zaptest.NewLogger(t))

	_, err := svc.Overview(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, c.data)
}

func TestJobRuns(t *testing.T) {
	store := &fakeStore{runs: []JobRun{
		{ID: "r1", JobType: "dsar_auto_process", Status: "completed"},
		{ID: "r2", JobType: "webhook_delivery", Status: "failed"},
		{ID: "r3", JobType: "dsar_auto_process", Status: "failed"},
	}}
	svc := NewService(store, nil, 0, zaptest.NewLogger(t))
	ctx := context.Background()

	runs, total, err := svc.ListJobRuns(ctx, JobRunFilter{JobType: "dsar_auto_process"}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)

	run, err := svc.JobRun(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)

	_, err = svc.JobRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobRunNotFound)
}

func TestBuildJobRunsBaseQuery(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildJobRunsBaseQuery(JobRunFilter{JobType: " dsar_auto_process ", Status: "failed", StartedFrom: &from})

	assert.Contains(t, query, "job_type = $1")
	assert.Contains(t, query, "status = $2")
	assert.Contains(t, query, "started_at >= $3")
	assert.NotContains(t, query, "started_at <=")
	assert.Equal(t, []any{"dsar_auto_process", "failed", from}, args)
}
