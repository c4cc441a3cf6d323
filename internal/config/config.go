package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/browser"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/extract"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/quality"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/scheduler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/storage"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/validator"
)

// EnvPrefix prefixes every environment override, e.g. CRAWLER_SERVER_PORT.
const EnvPrefix = "CRAWLER"

// Config stores all configuration for the application.
type Config struct {
	Log       LogConfig             `mapstructure:"log"`
	Server    ServerConfig          `mapstructure:"server"`
	Postgres  PostgresConfig        `mapstructure:"postgres"`
	Redis     RedisConfig           `mapstructure:"redis"`
	Browser   browser.Options       `mapstructure:"browser"`
	Stealth   stealth.Config        `mapstructure:"stealth"`
	Crawler   crawler.Options       `mapstructure:"crawler"`
	Extract   ExtractConfig         `mapstructure:"extract"`
	Quality   quality.Config        `mapstructure:"quality"`
	Validator validator.Config      `mapstructure:"validator"`
	Runner    pipeline.RunnerConfig `mapstructure:"runner"`
	Scheduler SchedulerConfig       `mapstructure:"scheduler"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PostgresConfig selects the posting store. An empty URL keeps postings in
// memory.
type PostgresConfig struct {
	URL     string                  `mapstructure:"url"`
	Migrate bool                    `mapstructure:"migrate"`
	Store   storage.PostgresOptions `mapstructure:",squash"`
}

// RedisConfig enables the shared dedup window and the job queue. An empty
// Addr keeps both in process.
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	DedupPrefix   string        `mapstructure:"dedup_prefix"`
	QueueKey      string        `mapstructure:"queue_key"`
	QueueInterval time.Duration `mapstructure:"queue_interval"`
}

type ExtractConfig struct {
	// TemplatesFile is an optional YAML file overriding built-in templates.
	TemplatesFile string          `mapstructure:"templates_file"`
	Weights       extract.Weights `mapstructure:"weights"`
}

type SchedulerConfig struct {
	Enabled  bool             `mapstructure:"enabled"`
	Schedule scheduler.Config `mapstructure:",squash"`
}

// Load reads configuration from path (optional), then environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("crawler")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	pg := storage.DefaultPostgresOptions()
	v.SetDefault("postgres.url", "")
	v.SetDefault("postgres.migrate", true)
	v.SetDefault("postgres.repost_window", pg.RepostWindow)
	v.SetDefault("postgres.retry_after", pg.RetryAfter)
	v.SetDefault("postgres.max_retries", pg.MaxRetries)
	v.SetDefault("postgres.candidate_limit", pg.CandidateLimit)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.dedup_prefix", "crawler:dedup")
	v.SetDefault("redis.queue_key", "crawler:queue")
	v.SetDefault("redis.queue_interval", 2*time.Second)

	b := browser.DefaultOptions()
	v.SetDefault("browser.headless", b.Headless)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.no_sandbox", b.NoSandbox)
	v.SetDefault("browser.navigation_timeout", b.NavigationTimeout)
	v.SetDefault("browser.action_timeout", b.ActionTimeout)

	v.SetDefault("stealth.proxies", []string{})
	v.SetDefault("stealth.user_agents", []string{})
	v.SetDefault("stealth.block_resources", false)

	c := crawler.DefaultOptions()
	v.SetDefault("crawler.max_retries", c.MaxRetries)
	v.SetDefault("crawler.retry_base_delay", c.RetryBaseDelay)
	v.SetDefault("crawler.acquire_timeout", c.AcquireTimeout)
	v.SetDefault("crawler.selector_timeout", c.SelectorTimeout)
	v.SetDefault("crawler.engine_timeout", c.EngineTimeout)
	v.SetDefault("crawler.max_consecutive_failures", c.MaxConsecutiveFailures)
	v.SetDefault("crawler.captcha_pause_min", c.CaptchaPauseMin)
	v.SetDefault("crawler.captcha_pause_max", c.CaptchaPauseMax)
	v.SetDefault("crawler.rate_limit_backoff", c.RateLimitBackoff)
	v.SetDefault("crawler.max_rate_limit_pause", c.MaxRateLimitPause)
	v.SetDefault("crawler.dynamic_content", c.DynamicContent)
	v.SetDefault("crawler.dynamic_content_delay", c.DynamicContentDelay)
	v.SetDefault("crawler.dedup_enabled", c.DedupEnabled)
	v.SetDefault("crawler.dedup_ttl", c.DedupTTL)
	l := c.Limiter
	v.SetDefault("crawler.limiter.requests_per_second", l.RequestsPerSecond)
	v.SetDefault("crawler.limiter.burst", l.Burst)
	v.SetDefault("crawler.limiter.base_delay", l.BaseDelay)
	v.SetDefault("crawler.limiter.max_delay", l.MaxDelay)
	v.SetDefault("crawler.limiter.backoff_factor", l.BackoffFactor)
	v.SetDefault("crawler.limiter.success_window", l.SuccessWindow)
	v.SetDefault("crawler.limiter.jitter_fraction", l.JitterFraction)
	v.SetDefault("crawler.limiter.micro_pauses", l.MicroPauses)
	v.SetDefault("crawler.limiter.micro_pause_min", l.MicroPauseMin)
	v.SetDefault("crawler.limiter.micro_pause_max", l.MicroPauseMax)
	v.SetDefault("crawler.limiter.max_micro_pauses", l.MaxMicroPauses)

	w := extract.DefaultWeights()
	v.SetDefault("extract.templates_file", "")
	v.SetDefault("extract.weights.title", w.Title)
	v.SetDefault("extract.weights.company", w.Company)
	v.SetDefault("extract.weights.location", w.Location)
	v.SetDefault("extract.weights.description", w.Description)
	v.SetDefault("extract.weights.salary", w.Salary)
	v.SetDefault("extract.weights.application_url", w.ApplicationURL)

	q := quality.DefaultConfig()
	v.SetDefault("quality.duplicate_threshold", q.DuplicateThreshold)
	v.SetDefault("quality.exact_window", q.ExactWindow)
	v.SetDefault("quality.similar_window", q.SimilarWindow)
	v.SetDefault("quality.spam_threshold", q.SpamThreshold)
	v.SetDefault("quality.similarity.title", q.Similarity.Title)
	v.SetDefault("quality.similarity.company", q.Similarity.Company)
	v.SetDefault("quality.similarity.location", q.Similarity.Location)
	v.SetDefault("quality.components.title", q.Components.Title)
	v.SetDefault("quality.components.description", q.Components.Description)
	v.SetDefault("quality.components.company", q.Components.Company)
	v.SetDefault("quality.components.salary", q.Components.Salary)
	v.SetDefault("quality.components.location", q.Components.Location)
	v.SetDefault("quality.components.freshness", q.Components.Freshness)

	val := validator.DefaultConfig()
	v.SetDefault("validator.valid_threshold", val.ValidThreshold)
	v.SetDefault("validator.critical_penalty", val.CriticalPenalty)
	v.SetDefault("validator.error_penalty", val.ErrorPenalty)
	v.SetDefault("validator.min_overlap", val.MinOverlap)

	r := pipeline.DefaultRunnerConfig()
	v.SetDefault("runner.workers", r.Workers)
	v.SetDefault("runner.queue_size", r.QueueSize)
	v.SetDefault("runner.max_reports", r.MaxReports)

	s := scheduler.DefaultConfig()
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.retry_schedule", s.RetrySchedule)
	v.SetDefault("scheduler.retry_batch", s.RetryBatch)
	v.SetDefault("scheduler.retry_cooldown", s.RetryCooldown)
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port == "" {
		problems = append(problems, "server.port is empty")
	}
	if c.Runner.Workers <= 0 {
		problems = append(problems, "runner.workers must be positive")
	}
	if c.Crawler.MaxRetries <= 0 {
		problems = append(problems, "crawler.max_retries must be positive")
	}
	if c.Crawler.Limiter.RequestsPerSecond < 0 {
		problems = append(problems, "crawler.limiter.requests_per_second must not be negative")
	}
	if c.Crawler.Limiter.BackoffFactor < 1 {
		problems = append(problems, "crawler.limiter.backoff_factor must be at least 1")
	}
	if c.Crawler.Limiter.MaxDelay < c.Crawler.Limiter.BaseDelay {
		problems = append(problems, "crawler.limiter.max_delay is below base_delay")
	}
	if t := c.Quality.DuplicateThreshold; t <= 0 || t > 1 {
		problems = append(problems, "quality.duplicate_threshold must be in (0,1]")
	}
	if t := c.Validator.ValidThreshold; t < 0 || t > 1 {
		problems = append(problems, "validator.valid_threshold must be in [0,1]")
	}
	if len(problems) > 0 {
		return domain.ConfigError("%s", strings.Join(problems, "; "))
	}
	return nil
}

// UsePostgres reports whether postings go to postgres instead of memory.
func (c *Config) UsePostgres() bool { return c.Postgres.URL != "" }

// UseRedis reports whether dedup and the job queue are shared through redis.
func (c *Config) UseRedis() bool { return c.Redis.Addr != "" }
