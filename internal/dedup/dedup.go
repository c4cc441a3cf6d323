package dedup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/utils"
)

// DefaultTTL is how long a seen URL or content hash suppresses repeats.
const DefaultTTL = 24 * time.Hour

// Filter reports whether a URL or a piece of content was already seen within
// the dedup window. IsDuplicateContent records the text it checks. URLs are
// only recorded by MarkURL, once their page was scraped, so a URL whose crawl
// failed stays eligible for a retry.
type Filter interface {
	IsDuplicateURL(ctx context.Context, url string) (bool, error)
	MarkURL(ctx context.Context, url string) error
	IsDuplicateContent(ctx context.Context, text string) (bool, error)
}

// URLKey is the hash under which a URL is remembered.
func URLKey(raw string) string {
	return utils.HashURL(raw)
}

// ContentKey is the hash under which page content is remembered.
func ContentKey(text string) string {
	return utils.HashString(NormalizeContent(text))
}

// NormalizeContent lowercases text and collapses whitespace runs.
func NormalizeContent(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Deduplicator is a process-local Filter with a sliding TTL window.
type Deduplicator struct {
	enabled bool
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	urls    map[string]time.Time
	content map[string]time.Time
}

// NewDeduplicator creates an in-memory filter. A non-positive ttl uses DefaultTTL.
func NewDeduplicator(enabled bool, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Deduplicator{
		enabled: enabled,
		ttl:     ttl,
		now:     time.Now,
		urls:    make(map[string]time.Time),
		content: make(map[string]time.Time),
	}
}

// WithClock replaces time.Now, for tests.
func (d *Deduplicator) WithClock(now func() time.Time) *Deduplicator {
	d.now = now
	return d
}

func (d *Deduplicator) IsDuplicateURL(_ context.Context, url string) (bool, error) {
	if !d.enabled {
		return false, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.purge(d.now())
	_, ok := d.urls[URLKey(url)]
	return ok, nil
}

func (d *Deduplicator) MarkURL(_ context.Context, url string) error {
	if !d.enabled {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls[URLKey(url)] = d.now()
	return nil
}

func (d *Deduplicator) IsDuplicateContent(_ context.Context, text string) (bool, error) {
	return d.seen(d.content, ContentKey(text)), nil
}

// Len returns the number of remembered URL and content hashes.
func (d *Deduplicator) Len() (urls, content int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls), len(d.content)
}

func (d *Deduplicator) seen(set map[string]time.Time, key string) bool {
	if !d.enabled {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.purge(now)
	if _, ok := set[key]; ok {
		return true
	}
	set[key] = now
	return false
}

func (d *Deduplicator) purge(now time.Time) {
	cutoff := now.Add(-d.ttl)
	for _, set := range []map[string]time.Time{d.urls, d.content} {
		for k, at := range set {
			if at.Before(cutoff) {
				delete(set, k)
			}
		}
	}
}
