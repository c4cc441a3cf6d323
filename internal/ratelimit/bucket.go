package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// TokenBucket admits requests at a sustained rate with a bounded burst.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a bucket refilling at perSecond tokens per second.
// A non-positive rate disables limiting.
func NewTokenBucket(perSecond float64, burst int) *TokenBucket {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Acquire blocks until a token is available. If no token can be granted within
// timeout the returned error wraps domain.ErrRateLimitExceeded. Cancellation
// of ctx is reported as ctx.Err().
func (b *TokenBucket) Acquire(ctx context.Context, timeout time.Duration) error {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := b.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: no token within %s", domain.ErrRateLimitExceeded, timeout)
	}
	return nil
}

// TryAcquire takes a token without waiting.
func (b *TokenBucket) TryAcquire() bool {
	return b.limiter.Allow()
}
