package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"consenthub/internal/domain/audit"
	"consenthub/internal/domain/auth"
	"consenthub/internal/domain/consent"
	"consenthub/internal/domain/dashboard"
	"consenthub/internal/domain/dsar"
	"consenthub/internal/domain/notice"
	"consenthub/internal/domain/party"
	"consenthub/internal/domain/preference"
	"consenthub/internal/domain/webhook"
	"consenthub/internal/platform/cache"
	"consenthub/internal/platform/config"
	"consenthub/internal/platform/crypto"
	"consenthub/internal/platform/db"
	"consenthub/internal/platform/events"
	"consenthub/internal/platform/jobs"
	"consenthub/internal/platform/metrics"
	"consenthub/internal/platform/tracing"
	adminhandler "consenthub/internal/transport/http/handlers/admin"
	audithandler "consenthub/internal/transport/http/handlers/audit"
	authhandler "consenthub/internal/transport/http/handlers/auth"
	consenthandler "consenthub/internal/transport/http/handlers/consent"
	dsarhandler "consenthub/internal/transport/http/handlers/dsar"
	noticehandler "consenthub/internal/transport/http/handlers/notice"
	preferencehandler "consenthub/internal/transport/http/handlers/preference"
	tmfhandler "consenthub/internal/transport/http/handlers/tmf"
	"consenthub/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

// App owns every long-lived dependency of the HTTP service.
type App struct {
	Config config.Config
	Log    *zap.Logger
	DB     *pgxpool.Pool
	Jobs   *jobs.Service
	Router http.Handler

	bus           events.Bus
	redis         *cache.RedisCache
	traceShutdown func(context.Context) error
}

// New connects to the database and optional infrastructure, runs migrations
// and seed when enabled, and wires services and routes.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, Log: log, DB: pool, bus: events.NewNoop()}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.traceShutdown, err = tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Warn("tracing init failed, continuing without traces", zap.Error(err))
		app.traceShutdown = nil
	}

	var dashCache cache.Cache = cache.Noop{}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if err != nil {
			log.Warn("redis unavailable, dashboard cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			app.redis = rc
			dashCache = rc
		}
	}

	if cfg.NATSURL != "" {
		bus, err := events.NewNATSBus(cfg.NATSURL, log)
		if err != nil {
			log.Warn("nats unavailable, events are not broadcast", zap.String("url", cfg.NATSURL), zap.Error(err))
		} else {
			app.bus = bus
		}
	}

	field, err := crypto.NewField(cfg.DataEncryptionKey)
	if err != nil {
		app.Close(ctx)
		return nil, err
	}

	registry := prometheus.NewRegistry()
	if cfg.MetricsEnabled {
		if err := metrics.Register(registry); err != nil {
			app.Close(ctx)
			return nil, err
		}
	}

	app.Jobs = jobs.New(pool, log.Named("jobs"), cfg.JobWorkers, cfg.JobQueueSize)

	auditSvc := audit.New(pool)
	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.JWTTTL, log.Named("auth"))
	webhookSvc := webhook.NewService(webhook.NewStore(pool), app.bus, app.Jobs, cfg.WebhookTimeout, log.Named("webhook"))
	consentSvc := consent.NewService(consent.NewStore(pool), webhookSvc, auditSvc, log.Named("consent"))
	noticeSvc := notice.NewService(notice.NewStore(pool), webhookSvc, auditSvc, log.Named("notice"))
	preferenceSvc := preference.NewService(preference.NewStore(pool), auditSvc, log.Named("preference"))
	partySvc := party.NewService(party.NewStore(pool), cfg.PublicBaseURL)
	dashboardSvc := dashboard.NewService(dashboard.NewStore(pool), dashCache, cfg.DashboardCacheTTL, log.Named("dashboard"))
	dsarSvc := dsar.NewService(
		dsar.NewStore(pool),
		dsar.NewSubjectStore(pool),
		webhookSvc,
		auditSvc,
		app.Jobs,
		field,
		dsar.Options{
			SLADays:        cfg.DSARSLADays,
			ExportTTL:      cfg.DSARExportTTL,
			SimulatedDelay: cfg.DSARSimulatedDelay,
			PublicBaseURL:  cfg.PublicBaseURL,
			PhoneRegion:    cfg.DefaultPhoneRegion,
		},
		log.Named("dsar"),
	)

	sweep := func(ctx context.Context) (any, error) {
		count, err := dsarSvc.SweepOverdue(ctx)
		return map[string]int{"overdue": count}, err
	}
	app.Jobs.Every(jobs.JobDSAROverdueSweep, cfg.DSAROverdueInterval, sweep)

	idem := middleware.NewIdempotencyStore(pool)
	app.Router = NewRouter(RouterConfig{
		Config:   cfg,
		Log:      log,
		Gatherer: registry,
		Ready:    pool.Ping,
	},
		authhandler.NewHandler(authSvc, auditSvc, log.Named("http.auth")),
		adminhandler.NewHandler(dashboardSvc, authSvc).WithJobs(app.Jobs, map[string]jobs.Runner{
			jobs.JobDSAROverdueSweep: sweep,
		}),
		preferencehandler.NewHandler(preferenceSvc, authSvc),
		dsarhandler.NewHandler(dsarSvc, authSvc, idem, log.Named("http.dsar")),
		consenthandler.NewHandler(consentSvc, authSvc, log.Named("http.consent")),
		noticehandler.NewHandler(noticeSvc, authSvc),
		tmfhandler.NewHandler(consentSvc, webhookSvc, partySvc, authSvc, cfg.PublicBaseURL, log.Named("http.tmf")),
		audithandler.NewHandler(auditSvc, authSvc, log.Named("http.audit")),
	)
	return app, nil
}

// Run serves HTTP and the job workers until ctx is cancelled, then drains
// in-flight requests and jobs.
func (a *App) Run(ctx context.Context) error {
	jobsCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer stopJobs()
	a.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              a.Config.Addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("consenthub listening", zap.String("addr", a.Config.Addr), zap.String("env", a.Config.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Warn("http shutdown incomplete", zap.Error(err))
	}
	stopJobs()
	a.Jobs.Wait()
	return nil
}

// Close releases infrastructure connections. It is safe on a partly built App.
func (a *App) Close(ctx context.Context) {
	if a.traceShutdown != nil {
		if err := a.traceShutdown(ctx); err != nil {
			a.Log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}
	if a.bus != nil {
		a.bus.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Log.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
