package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
)

type recordingSubmitter struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	err  error
}

func (r *recordingSubmitter) Submit(job pipeline.Job) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.jobs = append(r.jobs, job)
	return "session-" + job.Source, nil
}

type dueList struct {
	failures []domain.URLFailure
	err      error
	limit    int
}

func (d *dueList) DueFailures(_ context.Context, limit int) ([]domain.URLFailure, error) {
	d.limit = limit
	return d.failures, d.err
}

func TestNew_ValidatesJobs(t *testing.T) {
	sub := &recordingSubmitter{}
	cases := map[string]Config{
		"bad schedule": {Jobs: []JobSpec{{Name: "a", Schedule: "every tuesday", Source: "acme", URLs: []string{"https://a"}}}},
		"no urls":      {Jobs: []JobSpec{{Name: "a", Schedule: "@hourly", Source: "acme"}}},
		"no source":    {Jobs: []JobSpec{{Name: "a", Schedule: "@hourly", URLs: []string{"https://a"}}}},
		"duplicate": {Jobs: []JobSpec{
			{Name: "a", Schedule: "@hourly", Source: "acme", URLs: []string{"https://a"}},
			{Name: "a", Schedule: "@daily", Source: "acme", URLs: []string{"https://b"}},
		}},
		"bad retry schedule": {RetrySchedule: "often"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, sub, &dueList{}, zap.NewNop())
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestScheduler_RunJob(t *testing.T) {
	sub := &recordingSubmitter{}
	s, err := New(Config{Jobs: []JobSpec{
		{Name: "linkedin-go", Schedule: "0 */6 * * *", Source: "linkedin", URLs: []string{"https://www.linkedin.com/jobs/search?keywords=go"}},
		{Schedule: "@daily", Source: "indeed", URLs: []string{"https://www.indeed.com/jobs?q=go"}},
	}}, sub, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"indeed-1", "linkedin-go"}, s.Jobs())

	id, err := s.RunJob("linkedin-go")
	require.NoError(t, err)
	assert.Equal(t, "session-linkedin", id)
	require.Len(t, sub.jobs, 1)
	assert.Equal(t, "linkedin", sub.jobs[0].Source)

	_, err = s.RunJob("missing")
	assert.Error(t, err)

	sub.err = pipeline.ErrQueueFull
	_, err = s.RunJob("indeed-1")
	assert.ErrorIs(t, err, pipeline.ErrQueueFull)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := New(DefaultConfig(), &recordingSubmitter{}, &dueList{}, zap.NewNop())
	require.NoError(t, err)
	s.Start()
	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RetryFailuresGroupsBySource(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &recordingSubmitter{}
	due := &dueList{failures: []domain.URLFailure{
		{URL: "https://a/1", Source: "acme"},
		{URL: "https://g/1", Source: "globex"},
		{URL: "https://a/2", Source: "acme"},
		{URL: "https://x/1"},
	}}
	s, err := New(Config{RetryBatch: 10, RetryCooldown: time.Hour}, sub, due, zap.NewNop(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	n, err := s.RetryFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 10, due.limit)
	require.Len(t, sub.jobs, 2)
	assert.Equal(t, pipeline.Job{Source: "acme", URLs: []string{"https://a/1", "https://a/2"}}, sub.jobs[0])
	assert.Equal(t, pipeline.Job{Source: "globex", URLs: []string{"https://g/1"}}, sub.jobs[1])

	n, err = s.RetryFailures(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "urls submitted within the cooldown are skipped")

	now = now.Add(2 * time.Hour)
	n, err = s.RetryFailures(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestScheduler_RetryFailuresErrors(t *testing.T) {
	sub := &recordingSubmitter{}
	s, err := New(Config{}, sub, &dueList{err: errors.New("db down")}, zap.NewNop())
	require.NoError(t, err)
	_, err = s.RetryFailures(context.Background())
	assert.ErrorContains(t, err, "db down")

	sub.err = pipeline.ErrQueueFull
	s, err = New(Config{}, sub, &dueList{failures: []domain.URLFailure{{URL: "https://a", Source: "acme"}}}, zap.NewNop())
	require.NoError(t, err)
	n, err := s.RetryFailures(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	s, err = New(Config{}, sub, nil, zap.NewNop())
	require.NoError(t, err)
	n, err = s.RetryFailures(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
