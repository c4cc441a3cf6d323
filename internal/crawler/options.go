package crawler

import (
	"time"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/ratelimit"
)

// Options tune the engine. Zero values are replaced by DefaultOptions.
type Options struct {
	MaxRetries             int              `mapstructure:"max_retries"`
	RetryBaseDelay         time.Duration    `mapstructure:"retry_base_delay"`
	AcquireTimeout         time.Duration    `mapstructure:"acquire_timeout"`
	SelectorTimeout        time.Duration    `mapstructure:"selector_timeout"`
	EngineTimeout          time.Duration    `mapstructure:"engine_timeout"`
	MaxConsecutiveFailures int              `mapstructure:"max_consecutive_failures"`
	CaptchaPauseMin        time.Duration    `mapstructure:"captcha_pause_min"`
	CaptchaPauseMax        time.Duration    `mapstructure:"captcha_pause_max"`
	RateLimitBackoff       time.Duration    `mapstructure:"rate_limit_backoff"`
	MaxRateLimitPause      time.Duration    `mapstructure:"max_rate_limit_pause"`
	DynamicContent         bool             `mapstructure:"dynamic_content"`
	DynamicContentDelay    time.Duration    `mapstructure:"dynamic_content_delay"`
	DedupEnabled           bool             `mapstructure:"dedup_enabled"`
	DedupTTL               time.Duration    `mapstructure:"dedup_ttl"`
	Limiter                ratelimit.Config `mapstructure:"limiter"`
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:             3,
		RetryBaseDelay:         time.Second,
		AcquireTimeout:         60 * time.Second,
		SelectorTimeout:        10 * time.Second,
		EngineTimeout:          30 * time.Second,
		MaxConsecutiveFailures: 5,
		CaptchaPauseMin:        30 * time.Second,
		CaptchaPauseMax:        60 * time.Second,
		RateLimitBackoff:       30 * time.Second,
		MaxRateLimitPause:      5 * time.Minute,
		DynamicContent:         true,
		DynamicContentDelay:    time.Second,
		DedupEnabled:           true,
		DedupTTL:               24 * time.Hour,
		Limiter:                ratelimit.DefaultConfig(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = d.RetryBaseDelay
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = d.AcquireTimeout
	}
	if o.EngineTimeout <= 0 {
		o.EngineTimeout = d.EngineTimeout
	}
	if o.SelectorTimeout <= 0 || o.SelectorTimeout > o.EngineTimeout {
		o.SelectorTimeout = min(d.SelectorTimeout, o.EngineTimeout)
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = d.MaxConsecutiveFailures
	}
	if o.CaptchaPauseMin <= 0 {
		o.CaptchaPauseMin = d.CaptchaPauseMin
	}
	if o.CaptchaPauseMax < o.CaptchaPauseMin {
		o.CaptchaPauseMax = max(d.CaptchaPauseMax, o.CaptchaPauseMin)
	}
	if o.RateLimitBackoff <= 0 {
		o.RateLimitBackoff = d.RateLimitBackoff
	}
	if o.MaxRateLimitPause <= 0 {
		o.MaxRateLimitPause = d.MaxRateLimitPause
	}
	if o.DedupTTL <= 0 {
		o.DedupTTL = d.DedupTTL
	}
	if o.Limiter.BackoffFactor == 0 {
		o.Limiter = d.Limiter
	}
	return o
}

// Overrides adjust one session's pacing. Zero fields keep the engine options.
type Overrides struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
	BaseDelayMS       int     `json:"base_delay_ms,omitempty" mapstructure:"base_delay_ms"`
	MaxDelayMS        int     `json:"max_delay_ms,omitempty" mapstructure:"max_delay_ms"`
	MaxRetries        int     `json:"max_retries,omitempty" mapstructure:"max_retries"`
	BlockResources    *bool   `json:"block_resources,omitempty" mapstructure:"block_resources"`
	DynamicContent    *bool   `json:"dynamic_content,omitempty" mapstructure:"dynamic_content"`
}

func (o Options) apply(ov Overrides) Options {
	if ov.RequestsPerSecond > 0 {
		o.Limiter.RequestsPerSecond = ov.RequestsPerSecond
	}
	if ov.BaseDelayMS > 0 {
		o.Limiter.BaseDelay = time.Duration(ov.BaseDelayMS) * time.Millisecond
	}
	if ov.MaxDelayMS > 0 {
		o.Limiter.MaxDelay = time.Duration(ov.MaxDelayMS) * time.Millisecond
	}
	if ov.MaxRetries > 0 {
		o.MaxRetries = ov.MaxRetries
	}
	if ov.DynamicContent != nil {
		o.DynamicContent = *ov.DynamicContent
	}
	return o
}
