package dashboard

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"consenthub/internal/domain/consent"
	"consenthub/internal/platform/cache"
)

const overviewCacheKey = "dashboard:overview"

type Service struct {
	store StoreAPI
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store StoreAPI, c cache.Cache, ttl time.Duration, log *zap.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{store: store, cache: c, ttl: ttl, now: time.Now, log: log}
}

// Overview aggregates the admin dashboard. Results are cached for the
// configured TTL; cache failures fall through to the database.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	var cached Overview
	hit, err := cache.GetJSON(ctx, s.cache, overviewCacheKey, &cached)
	if err != nil {
		s.log.Warn("dashboard cache read failed", zap.Error(err))
	}
	if hit {
		cached.Cached = true
		return cached, nil
	}

	out, err := s.build(ctx)
	if err != nil {
		return Overview{}, err
	}
	if s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, overviewCacheKey, out, s.ttl); err != nil {
			s.log.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

// Invalidate drops the cached overview.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, overviewCacheKey); err != nil {
		s.log.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *Service) build(ctx context.Context) (Overview, error) {
	now := s.now().UTC()
	out := Overview{GeneratedAt: now}

	var effective []consent.Consent
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Users, err = s.store.UserStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		effective, err = s.store.EffectiveConsents(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.DSAR, err = s.store.DSARStats(gctx, now)
		return err
	})
	g.Go(func() (err error) {
		out.Notices, err = s.store.NoticeStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Webhooks, err = s.store.WebhookStats(gctx, now.Add(-24*time.Hour))
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	out.Consents = consent.Summarize(effective)
	out.ConsentsByPurpose = PurposeBreakdown(effective)
	return out, nil
}

func (s *Service) ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, int, error) {
	total, err := s.store.CountJobRuns(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	runs, err := s.store.ListJobRuns(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func (s *Service) JobRun(ctx context.Context, id string) (JobRun, error) {
	return s.store.JobRunByID(ctx, id)
}
