package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"consenthub/internal/platform/metrics"
	"consenthub/internal/platform/querier"
)

const (
	JobDSARAutoProcess  = "dsar_auto_process"
	JobDSAROverdueSweep = "dsar_overdue_sweep"
	JobWebhookDelivery  = "webhook_delivery"
)

// Runner is the body of a job. Its result is stored as the run's details.
type Runner func(context.Context) (any, error)

// Service is an in-process queue with a fixed worker pool. Every run is
// recorded in job_runs when a database is attached.
type Service struct {
	db        querier.Querier
	log       *zap.Logger
	queue     chan job
	workers   int
	schedules []schedule
	wg        sync.WaitGroup
}

type job struct {
	Type      string
	SubjectID string
	Run       Runner
}

type schedule struct {
	Type     string
	Interval time.Duration
	Run      Runner
}

func New(db querier.Querier, log *zap.Logger, workers, queueSize int) *Service {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Service{
		db:      db,
		log:     log,
		queue:   make(chan job, queueSize),
		workers: workers,
	}
}

// Every registers a periodic job. It must be called before Start.
func (s *Service) Every(jobType string, interval time.Duration, run Runner) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{Type: jobType, Interval: interval, Run: run})
}

// Start launches the workers and schedulers. When ctx is done the schedulers
// stop and the workers finish every job still queued before exiting.
func (s *Service) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	for _, sch := range s.schedules {
		s.wg.Add(1)
		go s.schedule(ctx, sch)
	}
}

// Wait blocks until every worker and scheduler has exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Enqueue hands a job to the worker pool without blocking. It reports false
// when the queue is full and the job was dropped.
func (s *Service) Enqueue(jobType, subjectID string, run Runner) bool {
	select {
	case s.queue <- job{Type: jobType, SubjectID: subjectID, Run: run}:
		return true
	default:
		metrics.JobsDroppedTotal.WithLabelValues(jobType).Inc()
		s.log.Warn("job queue full", zap.String("jobType", jobType), zap.String("subjectId", subjectID))
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, subjectID string, run Runner) (any, error) {
	return s.runJob(ctx, job{Type: jobType, SubjectID: subjectID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return
		case j := <-s.queue:
			if ctx.Err() != nil {
				s.execute(context.WithoutCancel(ctx), j)
				continue
			}
			s.execute(ctx, j)
		}
	}
}

// drain runs whatever is still queued once the workers are told to stop.
// Jobs enqueued after the queue empties are not picked up.
func (s *Service) drain(ctx context.Context) {
	for {
		select {
		case j := <-s.queue:
			s.execute(ctx, j)
		default:
			return
		}
	}
}

func (s *Service) execute(ctx context.Context, j job) {
	if _, err := s.runJob(ctx, j); err != nil {
		s.log.Warn("job run failed", zap.String("jobType", j.Type), zap.String("subjectId", j.SubjectID), zap.Error(err))
	}
}

func (s *Service) schedule(ctx context.Context, sch schedule) {
	defer s.wg.Done()
	ticker := time.NewTicker(sch.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sch.Type, "", sch.Run)
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	runID := s.recordStart(ctx, j)

	defer func() {
		if p := recover(); p != nil {
			s.log.Error("job panicked", zap.String("jobType", j.Type), zap.Any("panic", p))
			err = errPanic{value: p}
		}
		outcome := "completed"
		if err != nil {
			outcome = "failed"
		}
		metrics.JobRunsTotal.WithLabelValues(j.Type, outcome).Inc()
		s.recordFinish(ctx, runID, outcome, details)
	}()

	return j.Run(ctx)
}

func (s *Service) recordStart(ctx context.Context, j job) string {
	if s.db == nil {
		return ""
	}
	runID := ""
	if err := s.db.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, subject_id, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.Type, j.SubjectID, "running").Scan(&runID); err != nil {
		s.log.Warn("job run insert failed", zap.Error(err))
	}
	return runID
}

func (s *Service) recordFinish(ctx context.Context, runID, status string, details any) {
	if s.db == nil || runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		s.log.Warn("job details marshal failed", zap.Error(err))
		detailsJSON = []byte("{}")
	}
	if _, err := s.db.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); err != nil {
		s.log.Warn("job run update failed", zap.Error(err))
	}
}

type errPanic struct {
	value any
}

func (e errPanic) Error() string {
	return "job panicked"
}
