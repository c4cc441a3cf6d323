package domain

import "time"

// CrawlStats are the counters of one crawl session.
type CrawlStats struct {
	PagesScraped       int           `json:"pages_scraped"`
	JobsFound          int           `json:"jobs_found"`
	DuplicatesFiltered int           `json:"duplicates_filtered"`
	Errors             int           `json:"errors"`
	CaptchasDetected   int           `json:"captchas_detected"`
	RateLimitsHit      int           `json:"rate_limits_hit"`
	Degraded           bool          `json:"degraded"`
	CurrentDelay       time.Duration `json:"current_delay"`
	Duration           time.Duration `json:"duration"`
}

// URLFailure records why a URL yielded nothing.
type URLFailure struct {
	URL        string    `json:"url"`
	Source     string    `json:"source"`
	Kind       ErrorKind `json:"kind"`
	Reason     string    `json:"reason"`
	StatusCode int       `json:"status_code,omitempty"`
	Attempts   int       `json:"attempts"`
	At         time.Time `json:"at"`
}

// RejectionReason says why an item did not reach persistence.
type RejectionReason string

const (
	RejectDuplicateURL     RejectionReason = "duplicate_url"
	RejectDuplicateContent RejectionReason = "duplicate_content"
	RejectDuplicatePosting RejectionReason = "duplicate_posting"
	RejectInvalid          RejectionReason = "invalid"
)

// DuplicateMatch describes the stored posting a new one collided with.
type DuplicateMatch struct {
	IsDuplicate  bool    `json:"is_duplicate"`
	Similarity   float64 `json:"similarity"`
	Exact        bool    `json:"exact"`
	MatchedID    string  `json:"matched_id,omitempty"`
	MatchedTitle string  `json:"matched_title,omitempty"`
}

// Rejection is an item that was dropped, with the evidence for dropping it.
type Rejection struct {
	SessionID string            `json:"session_id"`
	Source    string            `json:"source"`
	URL       string            `json:"url"`
	Reason    RejectionReason   `json:"reason"`
	Posting   *ParsedJobPosting `json:"posting,omitempty"`
	Match     *DuplicateMatch   `json:"match,omitempty"`
	Issues    []ValidationIssue `json:"issues,omitempty"`
	At        time.Time         `json:"at"`
}

// BatchResult is what one crawl session returns to its caller.
type BatchResult struct {
	SessionID string              `json:"session_id"`
	Source    string              `json:"source"`
	Postings  []*ParsedJobPosting `json:"postings"`
	Stats     CrawlStats          `json:"stats"`
	Failures  []URLFailure        `json:"failures,omitempty"`
	Skipped   []Rejection         `json:"skipped,omitempty"`
	// Scraped lists the URLs whose pages were loaded and extracted.
	Scraped []string `json:"scraped,omitempty"`
}

// PostingRef is the part of a stored posting needed to compare new ones against it.
type PostingRef struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}
