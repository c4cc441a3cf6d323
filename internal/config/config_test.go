package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/quality"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.UsePostgres())
	assert.False(t, cfg.UseRedis())
	assert.Equal(t, storage.DefaultPostgresOptions(), cfg.Postgres.Store)
	assert.Equal(t, crawler.DefaultOptions(), cfg.Crawler)
	assert.Equal(t, quality.DefaultConfig(), cfg.Quality)
	assert.Equal(t, 0.85, cfg.Quality.DuplicateThreshold)
	assert.Equal(t, 1.5, cfg.Crawler.Limiter.BackoffFactor)
	assert.Equal(t, "@every 5m", cfg.Scheduler.Schedule.RetrySchedule)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRAWLER_SERVER_PORT", "9090")
	t.Setenv("CRAWLER_POSTGRES_URL", "postgres://crawler@localhost/jobs")
	t.Setenv("CRAWLER_CRAWLER_LIMITER_BASE_DELAY", "750ms")
	t.Setenv("CRAWLER_QUALITY_DUPLICATE_THRESHOLD", "0.9")
	t.Setenv("CRAWLER_POSTGRES_REPOST_WINDOW", "240h")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.True(t, cfg.UsePostgres())
	assert.Equal(t, 750*time.Millisecond, cfg.Crawler.Limiter.BaseDelay)
	assert.Equal(t, 0.9, cfg.Quality.DuplicateThreshold)
	assert.Equal(t, 240*time.Hour, cfg.Postgres.Store.RepostWindow)
}

const fileConfig = `
log:
  level: debug
redis:
  addr: localhost:6379
crawler:
  max_retries: 5
  limiter:
    requests_per_second: 1.5
    max_delay: 2m
scheduler:
  enabled: true
  retry_schedule: "@every 10m"
  jobs:
    - name: remote-go
      schedule: "0 */6 * * *"
      source: linkedin
      urls:
        - https://www.linkedin.com/jobs/search?keywords=golang
      options:
        max_retries: 2
        block_resources: true
`

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fileConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, 5, cfg.Crawler.MaxRetries)
	assert.Equal(t, 1.5, cfg.Crawler.Limiter.RequestsPerSecond)
	assert.Equal(t, 2*time.Minute, cfg.Crawler.Limiter.MaxDelay)
	assert.Equal(t, 2*time.Second, cfg.Crawler.Limiter.BaseDelay, "unset keys keep defaults")

	require.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "@every 10m", cfg.Scheduler.Schedule.RetrySchedule)
	require.Len(t, cfg.Scheduler.Schedule.Jobs, 1)
	job := cfg.Scheduler.Schedule.Jobs[0]
	assert.Equal(t, "remote-go", job.Name)
	assert.Equal(t, "linkedin", job.Source)
	assert.Len(t, job.URLs, 1)
	assert.Equal(t, 2, job.Options.MaxRetries)
	require.NotNil(t, job.Options.BlockResources)
	assert.True(t, *job.Options.BlockResources)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Runner.Workers = 0
	cfg.Crawler.Limiter.BackoffFactor = 0.5
	cfg.Quality.DuplicateThreshold = 1.2
	err = cfg.Validate()
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.ErrorContains(t, err, "runner.workers")
	assert.ErrorContains(t, err, "backoff_factor")
	assert.ErrorContains(t, err, "duplicate_threshold")
}
