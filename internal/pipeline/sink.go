package pipeline

import (
	"context"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// Sink persists the outcome of a session.
type Sink interface {
	// Upsert stores p keyed by its fingerprint and reports whether a row was
	// written. A fingerprint stored inside the repost window is a no-op.
	Upsert(ctx context.Context, p *domain.ParsedJobPosting) (bool, error)
	RecordRejection(ctx context.Context, r domain.Rejection) error
	RecordFailure(ctx context.Context, f domain.URLFailure) error
}

// FailureResolver is implemented by sinks that track failed URLs for retry.
type FailureResolver interface {
	ResolveFailures(ctx context.Context, urls []string) error
}
