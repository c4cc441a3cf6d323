package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

type storedPosting struct {
	id      string
	posting *domain.ParsedJobPosting
	at      time.Time
}

type storedFailure struct {
	failure   domain.URLFailure
	retries   int
	nextRetry time.Time
}

// MemoryStore is an in-process store with the same semantics as PostgresStore.
// It serves tests and single-process runs without a database.
type MemoryStore struct {
	opts PostgresOptions
	now  func() time.Time

	mu         sync.RWMutex
	postings   map[string]*storedPosting
	rejections []domain.Rejection
	failures   map[string]*storedFailure
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts PostgresOptions) *MemoryStore {
	d := DefaultPostgresOptions()
	if opts.RepostWindow <= 0 {
		opts.RepostWindow = d.RepostWindow
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = d.RetryAfter
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = d.MaxRetries
	}
	return &MemoryStore{
		opts:     opts,
		now:      time.Now,
		postings: make(map[string]*storedPosting),
		failures: make(map[string]*storedFailure),
	}
}

// WithClock replaces time.Now, for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Upsert(_ context.Context, p *domain.ParsedJobPosting) (bool, error) {
	if p.Fingerprint == "" {
		return false, errNoFingerprint
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if cur, ok := m.postings[p.Fingerprint]; ok {
		if !cur.at.Before(now.Add(-m.opts.RepostWindow)) {
			return false, nil
		}
		cur.posting, cur.at = p, now
		return true, nil
	}
	m.postings[p.Fingerprint] = &storedPosting{id: uuid.NewString(), posting: p, at: now}
	return true, nil
}

func (m *MemoryStore) RecordRejection(_ context.Context, r domain.Rejection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, r)
	return nil
}

func (m *MemoryStore) RecordFailure(_ context.Context, f domain.URLFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.At.IsZero() {
		f.At = m.now()
	}
	sf, ok := m.failures[f.URL]
	if !ok {
		sf = &storedFailure{}
		m.failures[f.URL] = sf
	}
	sf.failure = f
	sf.retries++
	sf.nextRetry = f.At.Add(m.opts.RetryAfter)
	return nil
}

func (m *MemoryStore) DueFailures(_ context.Context, limit int) ([]domain.URLFailure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	var due []*storedFailure
	for _, sf := range m.failures {
		if !sf.nextRetry.After(now) && sf.retries < m.opts.MaxRetries {
			due = append(due, sf)
		}
	}
	slices.SortFunc(due, func(a, b *storedFailure) int { return a.nextRetry.Compare(b.nextRetry) })
	out := make([]domain.URLFailure, 0, min(len(due), max(limit, 1)))
	for _, sf := range due {
		if len(out) == cap(out) {
			break
		}
		out = append(out, sf.failure)
	}
	return out, nil
}

func (m *MemoryStore) ResolveFailures(_ context.Context, urls []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range urls {
		delete(m.failures, u)
	}
	return nil
}

func (m *MemoryStore) FindByFingerprint(_ context.Context, fingerprint string, since time.Time) ([]domain.PostingRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sp, ok := m.postings[fingerprint]
	if !ok || sp.at.Before(since) {
		return nil, nil
	}
	return []domain.PostingRef{sp.ref()}, nil
}

func (m *MemoryStore) FindByCompany(_ context.Context, company string, since time.Time) ([]domain.PostingRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PostingRef
	for _, sp := range m.postings {
		if strings.EqualFold(sp.posting.Company, company) && !sp.at.Before(since) {
			out = append(out, sp.ref())
		}
	}
	slices.SortFunc(out, func(a, b domain.PostingRef) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// Postings returns the stored postings, newest first.
func (m *MemoryStore) Postings() []*domain.ParsedJobPosting {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*storedPosting, 0, len(m.postings))
	for _, sp := range m.postings {
		all = append(all, sp)
	}
	slices.SortFunc(all, func(a, b *storedPosting) int { return b.at.Compare(a.at) })
	out := make([]*domain.ParsedJobPosting, len(all))
	for i, sp := range all {
		out[i] = sp.posting
	}
	return out
}

// Rejections returns the recorded rejections in order.
func (m *MemoryStore) Rejections() []domain.Rejection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.rejections)
}

// Failures returns the failed URLs currently tracked.
func (m *MemoryStore) Failures() []domain.URLFailure {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.URLFailure, 0, len(m.failures))
	for _, sf := range m.failures {
		out = append(out, sf.failure)
	}
	slices.SortFunc(out, func(a, b domain.URLFailure) int { return strings.Compare(a.URL, b.URL) })
	return out
}

func (sp *storedPosting) ref() domain.PostingRef {
	return domain.PostingRef{
		ID:          sp.id,
		Title:       sp.posting.Title,
		Company:     sp.posting.Company,
		Location:    sp.posting.Location,
		Fingerprint: sp.posting.Fingerprint,
		CreatedAt:   sp.at,
	}
}
