package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Config tunes an Adaptive limiter.
type Config struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffFactor     float64       `mapstructure:"backoff_factor"`
	SuccessWindow     time.Duration `mapstructure:"success_window"`
	JitterFraction    float64       `mapstructure:"jitter_fraction"`
	MicroPauses       bool          `mapstructure:"micro_pauses"`
	MicroPauseMin     time.Duration `mapstructure:"micro_pause_min"`
	MicroPauseMax     time.Duration `mapstructure:"micro_pause_max"`
	MaxMicroPauses    int           `mapstructure:"max_micro_pauses"`
}

// DefaultConfig returns conservative pacing for a single crawl session.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0.5,
		Burst:             1,
		BaseDelay:         2 * time.Second,
		MaxDelay:          60 * time.Second,
		BackoffFactor:     1.5,
		SuccessWindow:     60 * time.Second,
		JitterFraction:    0.2,
		MicroPauses:       true,
		MicroPauseMin:     50 * time.Millisecond,
		MicroPauseMax:     300 * time.Millisecond,
		MaxMicroPauses:    3,
	}
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option customizes an Adaptive limiter.
type Option func(*Adaptive)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adaptive) { a.now = now }
}

// WithSleep replaces the sleeper used between requests.
func WithSleep(sleep SleepFunc) Option {
	return func(a *Adaptive) { a.sleep = sleep }
}

// WithRand replaces the random source used for jitter and micro-pauses.
func WithRand(r *rand.Rand) Option {
	return func(a *Adaptive) { a.rng = r }
}

// Adaptive paces requests with a token bucket plus a delay that grows on
// errors and relaxes after a quiet period.
type Adaptive struct {
	cfg    Config
	bucket *TokenBucket
	now    func() time.Time
	sleep  SleepFunc
	rng    *rand.Rand

	mu          sync.Mutex
	delay       time.Duration
	lastError   time.Time
	windowStart time.Time
}

// NewAdaptive creates a limiter starting at cfg.BaseDelay.
func NewAdaptive(cfg Config, opts ...Option) *Adaptive {
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = 1.5
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	a := &Adaptive{
		cfg:    cfg,
		bucket: NewTokenBucket(cfg.RequestsPerSecond, cfg.Burst),
		now:    time.Now,
		sleep:  Sleep,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		delay:  cfg.BaseDelay,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.windowStart = a.now()
	return a
}

// Acquire waits for a token, then for the current delay with jitter, then for
// a few short randomized pauses.
func (a *Adaptive) Acquire(ctx context.Context, timeout time.Duration) error {
	if err := a.bucket.Acquire(ctx, timeout); err != nil {
		return err
	}
	if err := a.sleep(ctx, a.jittered()); err != nil {
		return err
	}
	for _, p := range a.microPauses() {
		if err := a.sleep(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordError grows the delay by the backoff factor, up to MaxDelay.
func (a *Adaptive) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := time.Duration(float64(a.delay) * a.cfg.BackoffFactor)
	a.delay = min(next, a.cfg.MaxDelay)
	a.lastError = a.now()
}

// RecordSuccess relaxes the delay toward BaseDelay once SuccessWindow has
// passed without an error. Each relaxation starts a new window.
func (a *Adaptive) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	since := a.windowStart
	if a.lastError.After(since) {
		since = a.lastError
	}
	if now.Sub(since) < a.cfg.SuccessWindow || a.delay <= a.cfg.BaseDelay {
		return
	}
	next := time.Duration(float64(a.delay) / a.cfg.BackoffFactor)
	a.delay = max(next, a.cfg.BaseDelay)
	a.windowStart = now
}

// CurrentDelay returns the delay applied before the next request.
func (a *Adaptive) CurrentDelay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delay
}

func (a *Adaptive) jittered() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.JitterFraction <= 0 || a.delay <= 0 {
		return a.delay
	}
	f := 1 + (a.rng.Float64()*2-1)*a.cfg.JitterFraction
	return time.Duration(float64(a.delay) * f)
}

func (a *Adaptive) microPauses() []time.Duration {
	if !a.cfg.MicroPauses || a.cfg.MaxMicroPauses < 1 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 1 + a.rng.IntN(a.cfg.MaxMicroPauses)
	span := a.cfg.MicroPauseMax - a.cfg.MicroPauseMin
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = a.cfg.MicroPauseMin
		if span > 0 {
			out[i] += time.Duration(a.rng.Int64N(int64(span)))
		}
	}
	return out
}
