package crawler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/browser"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/dedup"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/extract"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/monitoring"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/ratelimit"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
)

// Request asks the engine to crawl URLs of one source.
type Request struct {
	SessionID string
	Source    string
	URLs      []string
	Overrides Overrides
}

// Engine crawls batches of URLs. Each Scrape call is an isolated session
// with its own page, limiter and dedup window; sessions may run concurrently.
type Engine struct {
	browser   browser.Browser
	parser    *extract.Parser
	profiles  *stealth.Manager
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	opts      Options
	newFilter func(Options) dedup.Filter
	sleep     ratelimit.SleepFunc
	now       func() time.Time
	limOpts   []ratelimit.Option

	rngMu sync.Mutex
	rng   *rand.Rand
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMetrics records session counters.
func WithMetrics(m *monitoring.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithFilterFactory replaces the per-session in-memory dedup window, for
// example with a Redis-backed filter shared across sessions.
func WithFilterFactory(fn func(Options) dedup.Filter) EngineOption {
	return func(e *Engine) { e.newFilter = fn }
}

// WithSleep replaces the sleeper used for retries, pauses and limiter waits.
func WithSleep(fn ratelimit.SleepFunc) EngineOption {
	return func(e *Engine) { e.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRand replaces the random source used for backoff jitter and pauses.
func WithRand(r *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = r }
}

// WithLimiterOptions passes options to every session limiter.
func WithLimiterOptions(opts ...ratelimit.Option) EngineOption {
	return func(e *Engine) { e.limOpts = append(e.limOpts, opts...) }
}

// NewEngine creates an engine.
func NewEngine(b browser.Browser, p *extract.Parser, profiles *stealth.Manager, opts Options, logger *zap.Logger, eopts ...EngineOption) *Engine {
	e := &Engine{
		browser:  b,
		parser:   p,
		profiles: profiles,
		logger:   logger.Named("engine"),
		opts:     opts.withDefaults(),
		newFilter: func(o Options) dedup.Filter {
			return dedup.NewDeduplicator(o.DedupEnabled, o.DedupTTL)
		},
		sleep: ratelimit.Sleep,
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0xc4a71)),
	}
	for _, opt := range eopts {
		opt(e)
	}
	return e
}

// Scrape runs one crawl session. Per-URL failures are recorded in the result,
// not returned. An error is returned only when the session cannot start.
// Cancelling ctx stops the session between URLs with a partial result.
func (e *Engine) Scrape(ctx context.Context, req Request) (*domain.BatchResult, error) {
	start := e.now()
	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		return nil, domain.ConfigError("crawl request has no source")
	}
	if len(req.URLs) == 0 {
		return nil, domain.ConfigError("crawl request for %s has no urls", source)
	}
	tmpl, err := e.parser.Template(source)
	if err != nil {
		return nil, err
	}

	opts := e.opts.apply(req.Overrides)
	profile := e.profiles.NewProfile()
	if req.Overrides.BlockResources != nil {
		profile.BlockResources = *req.Overrides.BlockResources
	}

	logger := e.logger.With(zap.String("source", source), zap.String("session_id", req.SessionID))
	page, err := e.browser.NewPage(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("open page for %s: %w", source, err)
	}
	defer page.Close()

	limOpts := append([]ratelimit.Option{ratelimit.WithSleep(e.sleep), ratelimit.WithClock(e.now)}, e.limOpts...)
	s := &session{
		engine:  e,
		opts:    opts,
		source:  source,
		tmpl:    tmpl,
		page:    page,
		limiter: ratelimit.NewAdaptive(opts.Limiter, limOpts...),
		filter:  e.newFilter(opts),
		logger:  logger,
		result: &domain.BatchResult{
			SessionID: req.SessionID,
			Source:    source,
			Postings:  []*domain.ParsedJobPosting{},
		},
	}

	logger.Info("crawl session started", zap.Int("urls", len(req.URLs)), zap.String("user_agent", profile.UserAgent))
	s.run(ctx, req.URLs)

	stats := &s.result.Stats
	stats.CurrentDelay = s.limiter.CurrentDelay()
	stats.Duration = e.now().Sub(start)

	status := "completed"
	switch {
	case stats.Degraded:
		status = "degraded"
	case ctx.Err() != nil:
		status = "cancelled"
	}
	e.metrics.ObserveSession(source, status, stats.Duration, stats.CurrentDelay)
	logger.Info("crawl session finished",
		zap.String("status", status),
		zap.Int("pages_scraped", stats.PagesScraped),
		zap.Int("jobs_found", stats.JobsFound),
		zap.Int("duplicates_filtered", stats.DuplicatesFiltered),
		zap.Int("errors", stats.Errors),
		zap.Int("captchas_detected", stats.CaptchasDetected),
		zap.Int("rate_limits_hit", stats.RateLimitsHit),
		zap.Duration("current_delay", stats.CurrentDelay),
		zap.Duration("duration", stats.Duration),
	)
	return s.result, nil
}

func (e *Engine) randFloat() float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Float64()
}

// uniform returns a random duration in [lo, hi].
func (e *Engine) uniform(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(e.randFloat()*float64(hi-lo))
}
