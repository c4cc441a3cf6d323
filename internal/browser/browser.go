package browser

import (
	"context"
	"time"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
)

// Browser opens isolated pages, one per crawl session.
type Browser interface {
	NewPage(ctx context.Context, profile stealth.Profile) (Page, error)
	Close() error
}

// Page is a single browser tab. Every method blocks until the operation
// completes, the timeout elapses or ctx is cancelled.
type Page interface {
	// Navigate loads url and returns the HTTP status of the main document.
	Navigate(ctx context.Context, url string) (int, error)
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	ScrollToBottom(ctx context.Context) error
	Close() error
}
