package pipeline

import (
	"time"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// Job is one crawl session request: a batch of URLs of a single source.
type Job struct {
	ID      string            `json:"id,omitempty"`
	Source  string            `json:"source"`
	URLs    []string          `json:"urls"`
	Options crawler.Overrides `json:"options,omitempty"`
}

// Status is the lifecycle state of a session.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusDegraded  Status = "degraded"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Finished reports whether s is terminal.
func (s Status) Finished() bool {
	switch s {
	case StatusCompleted, StatusDegraded, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// SessionReport summarizes one processed job.
type SessionReport struct {
	ID             string                         `json:"id"`
	Source         string                         `json:"source"`
	Status         Status                         `json:"status"`
	URLs           int                            `json:"urls"`
	Stats          domain.CrawlStats              `json:"stats"`
	Accepted       int                            `json:"accepted"`
	Unchanged      int                            `json:"unchanged"`
	Rejected       map[domain.RejectionReason]int `json:"rejected"`
	Failed         int                            `json:"failed"`
	StoreErrors    int                            `json:"store_errors"`
	AverageQuality float64                        `json:"average_quality"`
	Error          string                         `json:"error,omitempty"`
	SubmittedAt    time.Time                      `json:"submitted_at"`
	StartedAt      *time.Time                     `json:"started_at,omitempty"`
	FinishedAt     *time.Time                     `json:"finished_at,omitempty"`
}

func newReport(job Job, now time.Time) *SessionReport {
	return &SessionReport{
		ID:          job.ID,
		Source:      job.Source,
		Status:      StatusQueued,
		URLs:        len(job.URLs),
		Rejected:    make(map[domain.RejectionReason]int),
		SubmittedAt: now,
	}
}

func (r *SessionReport) clone() *SessionReport {
	c := *r
	c.Rejected = make(map[domain.RejectionReason]int, len(r.Rejected))
	for k, v := range r.Rejected {
		c.Rejected[k] = v
	}
	return &c
}
