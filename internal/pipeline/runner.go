package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/monitoring"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("runner is stopped")
)

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxReports int `mapstructure:"max_reports"`
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Workers: 4, QueueSize: 64, MaxReports: 1000}
}

// Runner executes jobs on a bounded pool of workers and keeps a report per
// session.
type Runner struct {
	proc    *Processor
	cfg     RunnerConfig
	metrics *monitoring.Metrics
	logger  *zap.Logger
	now     func() time.Time

	jobs     chan Job
	stopChan chan struct{}
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool
	reports map[string]*SessionReport
	order   []string
}

// NewRunner creates a stopped runner.
func NewRunner(proc *Processor, cfg RunnerConfig, logger *zap.Logger) *Runner {
	d := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	if cfg.MaxReports <= 0 {
		cfg.MaxReports = d.MaxReports
	}
	return &Runner{
		proc:     proc,
		cfg:      cfg,
		metrics:  proc.metrics,
		logger:   logger.Named("runner"),
		now:      proc.now,
		jobs:     make(chan Job, cfg.QueueSize),
		stopChan: make(chan struct{}),
		reports:  make(map[string]*SessionReport),
	}
}

// Start launches the workers. Sessions run under ctx.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.logger.Info("runner started", zap.Int("workers", r.cfg.Workers), zap.Int("queue_size", r.cfg.QueueSize))
}

// Stop stops accepting jobs and waits for running sessions. When ctx expires
// first, running sessions are cancelled and stop between URLs. Jobs still
// queued are marked cancelled.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stopChan)
	started := r.started
	r.mu.Unlock()

	var err error
	if started {
		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
			r.cancel()
			<-done
		}
		r.cancel()
	}

	for {
		select {
		case job := <-r.jobs:
			r.update(job.ID, func(rep *SessionReport) {
				rep.Status = StatusCancelled
				now := r.now()
				rep.FinishedAt = &now
			})
		default:
			r.metrics.SetQueueDepth(0)
			r.logger.Info("runner stopped")
			return err
		}
	}
}

// Submit queues job and returns its session ID. It never blocks: a full
// queue returns ErrQueueFull.
func (r *Runner) Submit(job Job) (string, error) {
	job, err := normalize(job)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return "", ErrStopped
	}
	select {
	case r.jobs <- job:
	default:
		return "", ErrQueueFull
	}
	r.store(newReport(job, r.now()))
	r.metrics.SetQueueDepth(len(r.jobs))
	return job.ID, nil
}

// RunAll processes jobs now, at most Workers at a time, and returns their
// reports in job order. The first session that cannot start cancels the rest.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) ([]*SessionReport, error) {
	normalized := make([]Job, len(jobs))
	for i, job := range jobs {
		job, err := normalize(job)
		if err != nil {
			return nil, err
		}
		normalized[i] = job
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	reports := make([]*SessionReport, len(normalized))
	for i, job := range normalized {
		r.mu.Lock()
		r.store(newReport(job, r.now()))
		r.mu.Unlock()
		g.Go(func() error {
			reports[i] = r.run(gctx, job)
			if reports[i].Status == StatusFailed {
				return errors.New(reports[i].Error)
			}
			return nil
		})
	}
	return reports, g.Wait()
}

// Session returns a snapshot of the report of id.
func (r *Runner) Session(id string) (*SessionReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, false
	}
	return rep.clone(), true
}

// Sessions returns snapshots of all kept reports, newest first.
func (r *Runner) Sessions() []*SessionReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*SessionReport, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.reports[r.order[i]].clone())
	}
	return out
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for {
		select {
		case job := <-r.jobs:
			r.metrics.SetQueueDepth(len(r.jobs))
			r.run(r.ctx, job)
		case <-r.stopChan:
			return
		}
	}
}

func (r *Runner) run(ctx context.Context, job Job) *SessionReport {
	started := r.now()
	var rep *SessionReport
	r.update(job.ID, func(cur *SessionReport) {
		cur.Status = StatusRunning
		cur.StartedAt = &started
		rep = cur.clone()
	})
	if rep == nil {
		rep = newReport(job, started)
	}

	err := r.proc.Process(ctx, job, rep)
	finished := r.now()
	rep.FinishedAt = &finished
	switch {
	case err != nil:
		rep.Status = StatusFailed
		rep.Error = err.Error()
		r.logger.Error("crawl session failed to start",
			zap.String("session_id", job.ID), zap.String("source", job.Source),
			zap.String("kind", string(domain.KindOf(err))), zap.Error(err))
	case rep.Stats.Degraded:
		rep.Status = StatusDegraded
	case ctx.Err() != nil:
		rep.Status = StatusCancelled
	default:
		rep.Status = StatusCompleted
	}

	r.mu.Lock()
	r.store(rep)
	r.mu.Unlock()
	return rep.clone()
}

func (r *Runner) update(id string, fn func(*SessionReport)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[id]; ok {
		fn(rep)
	}
}

// store must be called with mu held. It evicts the oldest finished reports
// beyond MaxReports.
func (r *Runner) store(rep *SessionReport) {
	if _, ok := r.reports[rep.ID]; !ok {
		r.order = append(r.order, rep.ID)
	}
	r.reports[rep.ID] = rep
	for len(r.order) > r.cfg.MaxReports {
		i := slices.IndexFunc(r.order, func(id string) bool { return r.reports[id].Status.Finished() })
		if i < 0 {
			return
		}
		delete(r.reports, r.order[i])
		r.order = slices.Delete(r.order, i, i+1)
	}
}

func normalize(job Job) (Job, error) {
	job.Source = strings.ToLower(strings.TrimSpace(job.Source))
	if job.Source == "" {
		return job, domain.ConfigError("job has no source")
	}
	if len(job.URLs) == 0 {
		return job, domain.ConfigError("job for %s has no urls", job.Source)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return job, nil
}
