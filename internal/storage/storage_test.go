package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/quality"
)

var (
	_ quality.Repository = (*MemoryStore)(nil)
	_ quality.Repository = (*PostgresStore)(nil)
)

var t0 = time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func posting(fp, title, company string) *domain.ParsedJobPosting {
	p := domain.NewPosting("https://jobs.example.com/"+fp, "generic")
	p.Fingerprint, p.Title, p.Company = fp, title, company
	p.Skills.Append("go", "sql")
	return p
}

func TestMemoryStore_UpsertIsIdempotentWithinWindow(t *testing.T) {
	c := &clock{now: t0}
	m := NewMemoryStore(PostgresOptions{RepostWindow: 48 * time.Hour}).WithClock(c.Now)
	ctx := context.Background()

	ok, err := m.Upsert(ctx, posting("fp1", "Backend Engineer", "Acme"))
	require.NoError(t, err)
	assert.True(t, ok)

	c.now = t0.Add(time.Hour)
	ok, err = m.Upsert(ctx, posting("fp1", "Backend Engineer (v2)", "Acme"))
	require.NoError(t, err)
	assert.False(t, ok, "same fingerprint inside the window is a no-op")
	assert.Equal(t, "Backend Engineer", m.Postings()[0].Title)

	c.now = t0.Add(72 * time.Hour)
	ok, err = m.Upsert(ctx, posting("fp1", "Backend Engineer (v3)", "Acme"))
	require.NoError(t, err)
	assert.True(t, ok, "a repost after the window refreshes the row")
	assert.Len(t, m.Postings(), 1)
	assert.Equal(t, "Backend Engineer (v3)", m.Postings()[0].Title)

	_, err = m.Upsert(ctx, posting("", "x", "y"))
	assert.Error(t, err)
}

func TestMemoryStore_Lookups(t *testing.T) {
	c := &clock{now: t0}
	m := NewMemoryStore(PostgresOptions{}).WithClock(c.Now)
	ctx := context.Background()

	_, _ = m.Upsert(ctx, posting("a", "Backend Engineer", "Acme Corp"))
	c.now = t0.Add(24 * time.Hour)
	_, _ = m.Upsert(ctx, posting("b", "Data Engineer", "ACME CORP"))
	_, _ = m.Upsert(ctx, posting("c", "Designer", "Globex"))

	refs, err := m.FindByFingerprint(ctx, "a", t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "Backend Engineer", refs[0].Title)
	assert.NotEmpty(t, refs[0].ID)

	refs, err = m.FindByFingerprint(ctx, "a", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, refs, "outside the window")

	refs, err = m.FindByCompany(ctx, "acme corp", t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "Data Engineer", refs[0].Title, "newest first")
}

func TestMemoryStore_FailureLifecycle(t *testing.T) {
	c := &clock{now: t0}
	m := NewMemoryStore(PostgresOptions{RetryAfter: 10 * time.Minute, MaxRetries: 2}).WithClock(c.Now)
	ctx := context.Background()

	require.NoError(t, m.RecordFailure(ctx, domain.URLFailure{URL: "https://a", Source: "acme", Kind: domain.KindNetwork}))
	require.NoError(t, m.RecordFailure(ctx, domain.URLFailure{URL: "https://b", Source: "acme", Kind: domain.KindTimeout}))

	due, err := m.DueFailures(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "not yet due")

	c.now = t0.Add(11 * time.Minute)
	due, err = m.DueFailures(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	require.NoError(t, m.RecordFailure(ctx, domain.URLFailure{URL: "https://a", Source: "acme", Kind: domain.KindNetwork}))
	c.now = t0.Add(30 * time.Minute)
	due, err = m.DueFailures(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 1, "a reached the retry limit")
	assert.Equal(t, "https://b", due[0].URL)

	require.NoError(t, m.ResolveFailures(ctx, []string{"https://a", "https://b"}))
	assert.Empty(t, m.Failures())
}

func TestMemoryStore_Rejections(t *testing.T) {
	m := NewMemoryStore(PostgresOptions{})
	r := domain.Rejection{URL: "https://a", Reason: domain.RejectInvalid}
	require.NoError(t, m.RecordRejection(context.Background(), r))
	assert.Equal(t, []domain.Rejection{r}, m.Rejections())
}

func newTestPostgres() *PostgresStore {
	s := newPostgresStore(nil, PostgresOptions{RepostWindow: 24 * time.Hour, MaxRetries: 4}, zap.NewNop())
	s.now = func() time.Time { return t0 }
	return s
}

func TestPostgresStore_UpsertQuery(t *testing.T) {
	s := newTestPostgres()
	lo, hi := 100000.0, 120000.0
	p := posting("fp1", "Backend Engineer", "Acme")
	p.SetSalary(&lo, &hi, "USD")

	query, args, err := s.upsertQuery(p, t0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO job_postings"))
	assert.Contains(t, query, "ON CONFLICT (fingerprint) DO UPDATE SET")
	assert.Contains(t, query, "WHERE job_postings.created_at < $28")
	assert.Contains(t, query, "RETURNING id")
	require.Len(t, args, 28)
	assert.Equal(t, "fp1", args[1])
	assert.Equal(t, []string{"go", "sql"}, args[17])
	assert.Equal(t, t0.Add(-24*time.Hour), args[27])

	_, _, err = s.upsertQuery(posting("", "x", "y"), t0)
	assert.Error(t, err)
}

func TestPostgresStore_FailureQueries(t *testing.T) {
	s := newTestPostgres()
	query, args, err := s.failureQuery(domain.URLFailure{URL: "https://a", Source: "acme", Kind: domain.KindNetwork, At: t0})
	require.NoError(t, err)
	assert.Contains(t, query, "retry_count = failed_urls.retry_count + 1")
	require.Len(t, args, 9)
	assert.Equal(t, t0.Add(DefaultPostgresOptions().RetryAfter), args[8])

	query, args, err = s.dueQuery(25)
	require.NoError(t, err)
	assert.Contains(t, query, "FROM failed_urls WHERE next_retry_at <= $1 AND retry_count < $2")
	assert.Contains(t, query, "LIMIT 25")
	assert.Equal(t, []any{t0, 4}, args)
}

func TestPostgresStore_RejectionQuery(t *testing.T) {
	s := newTestPostgres()
	query, args, err := s.rejectionQuery(domain.Rejection{
		SessionID: "s1", Source: "acme", URL: "https://a", Reason: domain.RejectDuplicatePosting,
		Posting: posting("fp", "t", "c"),
		Match:   &domain.DuplicateMatch{IsDuplicate: true, Similarity: 0.9},
		At:      t0,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "INSERT INTO posting_rejections"))
	require.Len(t, args, 11)
	assert.Equal(t, "duplicate_posting", args[4])
	assert.Contains(t, args[8], `"similarity":0.9`)
	assert.Nil(t, args[9], "no issues")
}

func TestSchemaDeclaresConflictTargets(t *testing.T) {
	assert.Contains(t, Schema, "fingerprint      TEXT NOT NULL UNIQUE")
	assert.Contains(t, Schema, "url                    TEXT PRIMARY KEY")
}
