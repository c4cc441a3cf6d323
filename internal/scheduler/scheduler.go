package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
)

// JobSpec is a crawl job run on a cron schedule.
type JobSpec struct {
	Name     string            `mapstructure:"name"`
	Schedule string            `mapstructure:"schedule"`
	Source   string            `mapstructure:"source"`
	URLs     []string          `mapstructure:"urls"`
	Options  crawler.Overrides `mapstructure:"options"`
}

// Config lists the scheduled jobs and tunes failed-URL retries.
type Config struct {
	Jobs []JobSpec `mapstructure:"jobs"`
	// RetrySchedule runs the failed-URL retry; empty disables it.
	RetrySchedule string `mapstructure:"retry_schedule"`
	RetryBatch    int    `mapstructure:"retry_batch"`
	// RetryCooldown stops a URL from being resubmitted while its retry is
	// still queued or running.
	RetryCooldown time.Duration `mapstructure:"retry_cooldown"`
}

func DefaultConfig() Config {
	return Config{RetrySchedule: "@every 5m", RetryBatch: 50, RetryCooldown: 15 * time.Minute}
}

// Submitter accepts crawl jobs. *pipeline.Runner implements it.
type Submitter interface {
	Submit(job pipeline.Job) (string, error)
}

// FailureSource lists failed URLs that are due for another attempt.
type FailureSource interface {
	DueFailures(ctx context.Context, limit int) ([]domain.URLFailure, error)
}

// Scheduler submits jobs to the runner on cron schedules.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	submit   Submitter
	failures FailureSource
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	jobs     map[string]JobSpec
	inflight map[string]time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New validates cfg and registers its jobs. failures may be nil, which
// disables retries.
func New(cfg Config, submit Submitter, failures FailureSource, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	d := DefaultConfig()
	if cfg.RetryBatch <= 0 {
		cfg.RetryBatch = d.RetryBatch
	}
	if cfg.RetryCooldown <= 0 {
		cfg.RetryCooldown = d.RetryCooldown
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl)),
		cfg:      cfg,
		submit:   submit,
		failures: failures,
		logger:   logger,
		now:      time.Now,
		jobs:     make(map[string]JobSpec),
		inflight: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}

	for i, spec := range cfg.Jobs {
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("%s-%d", spec.Source, i)
		}
		if strings.TrimSpace(spec.Source) == "" || len(spec.URLs) == 0 {
			return nil, domain.ConfigError("scheduled job %q needs a source and urls", spec.Name)
		}
		if _, dup := s.jobs[spec.Name]; dup {
			return nil, domain.ConfigError("scheduled job %q is defined twice", spec.Name)
		}
		if _, err := s.cron.AddFunc(spec.Schedule, func() { s.RunJob(spec.Name) }); err != nil {
			return nil, domain.ConfigError("scheduled job %q: invalid schedule %q: %v", spec.Name, spec.Schedule, err)
		}
		s.jobs[spec.Name] = spec
	}

	if cfg.RetrySchedule != "" && failures != nil {
		if _, err := s.cron.AddFunc(cfg.RetrySchedule, func() {
			if _, err := s.RetryFailures(context.Background()); err != nil {
				s.logger.Error("failed url retry failed", zap.Error(err))
			}
		}); err != nil {
			return nil, domain.ConfigError("invalid retry schedule %q: %v", cfg.RetrySchedule, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)), zap.Int("entries", len(s.cron.Entries())))
}

// Stop halts the schedules and returns a context done when running
// submissions have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Jobs returns the names of the scheduled jobs in order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// RunJob submits the scheduled job name now.
func (s *Scheduler) RunJob(name string) (string, error) {
	s.mu.Lock()
	spec, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown scheduled job %q", name)
	}
	id, err := s.submit.Submit(pipeline.Job{Source: spec.Source, URLs: spec.URLs, Options: spec.Options})
	if err != nil {
		s.logger.Warn("scheduled job not submitted", zap.String("job", name), zap.Error(err))
		return "", err
	}
	s.logger.Info("scheduled job submitted", zap.String("job", name), zap.String("session_id", id))
	return id, nil
}

// RetryFailures submits due failed URLs grouped by source and returns how
// many URLs were submitted.
func (s *Scheduler) RetryFailures(ctx context.Context) (int, error) {
	if s.failures == nil {
		return 0, nil
	}
	due, err := s.failures.DueFailures(ctx, s.cfg.RetryBatch)
	if err != nil {
		return 0, fmt.Errorf("list due failures: %w", err)
	}

	now := s.now()
	bySource := make(map[string][]string)
	var sources []string
	s.mu.Lock()
	for u, at := range s.inflight {
		if now.Sub(at) >= s.cfg.RetryCooldown {
			delete(s.inflight, u)
		}
	}
	for _, f := range due {
		if _, busy := s.inflight[f.URL]; busy || f.Source == "" {
			continue
		}
		if _, seen := bySource[f.Source]; !seen {
			sources = append(sources, f.Source)
		}
		bySource[f.Source] = append(bySource[f.Source], f.URL)
	}
	s.mu.Unlock()

	submitted := 0
	for _, src := range sources {
		urls := bySource[src]
		id, err := s.submit.Submit(pipeline.Job{Source: src, URLs: urls})
		if err != nil {
			s.logger.Warn("retry job not submitted", zap.String("source", src), zap.Int("urls", len(urls)), zap.Error(err))
			continue
		}
		s.mu.Lock()
		for _, u := range urls {
			s.inflight[u] = now
		}
		s.mu.Unlock()
		submitted += len(urls)
		s.logger.Info("retrying failed urls", zap.String("source", src), zap.Int("urls", len(urls)), zap.String("session_id", id))
	}
	return submitted, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
