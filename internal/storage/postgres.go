package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

//go:embed schema.sql
var Schema string

var errNoFingerprint = errors.New("posting has no fingerprint")

// PostgresOptions tune the postgres store.
type PostgresOptions struct {
	// RepostWindow is how long a stored fingerprint blocks a new insert.
	// After it, an upsert refreshes the stored posting.
	RepostWindow time.Duration `mapstructure:"repost_window"`
	// RetryAfter delays the next retry of a failed URL.
	RetryAfter time.Duration `mapstructure:"retry_after"`
	// MaxRetries stops retrying a URL after this many failures.
	MaxRetries int `mapstructure:"max_retries"`
	// CandidateLimit caps the rows returned by FindByCompany.
	CandidateLimit uint64 `mapstructure:"candidate_limit"`
}

// DefaultPostgresOptions returns the stock options.
func DefaultPostgresOptions() PostgresOptions {
	return PostgresOptions{
		RepostWindow:   30 * 24 * time.Hour,
		RetryAfter:     15 * time.Minute,
		MaxRetries:     5,
		CandidateLimit: 200,
	}
}

// PostgresStore persists postings, rejections and failed URLs.
type PostgresStore struct {
	db     *pgxpool.Pool
	sb     sq.StatementBuilderType
	opts   PostgresOptions
	now    func() time.Time
	logger *zap.Logger
}

// NewPostgresStore connects a pool to dsn.
func NewPostgresStore(ctx context.Context, dsn string, opts PostgresOptions, logger *zap.Logger) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return newPostgresStore(db, opts, logger), nil
}

func newPostgresStore(db *pgxpool.Pool, opts PostgresOptions, logger *zap.Logger) *PostgresStore {
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
	if opts.CandidateLimit == 0 {
		opts.CandidateLimit = d.CandidateLimit
	}
	return &PostgresStore{
		db:     db,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		opts:   opts,
		now:    time.Now,
		logger: logger.Named("postgres"),
	}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Upsert stores p keyed by fingerprint. It is a no-op returning false when the
// fingerprint was stored within the repost window.
func (s *PostgresStore) Upsert(ctx context.Context, p *domain.ParsedJobPosting) (bool, error) {
	query, args, err := s.upsertQuery(p, s.now())
	if err != nil {
		return false, err
	}
	var id string
	err = s.db.QueryRow(ctx, query, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("upsert posting %s: %w", p.Fingerprint, err)
	}
	return true, nil
}

func (s *PostgresStore) upsertQuery(p *domain.ParsedJobPosting, now time.Time) (string, []any, error) {
	if p.Fingerprint == "" {
		return "", nil, errNoFingerprint
	}
	meta, err := json.Marshal(p.RawMetadata)
	if err != nil {
		return "", nil, fmt.Errorf("marshal raw metadata: %w", err)
	}
	return s.sb.Insert("job_postings").
		Columns(
			"id", "fingerprint", "title", "company", "location", "description", "requirements",
			"salary_min", "salary_max", "salary_currency", "job_type", "experience_level", "posted_date",
			"application_url", "company_url", "remote_friendly", "benefits", "skills", "tags",
			"source_url", "source_platform", "raw_metadata",
			"confidence_score", "quality_score", "spam_score", "quality_grade", "created_at",
		).
		Values(
			uuid.NewString(), p.Fingerprint, p.Title, p.Company, p.Location, p.Description, p.Requirements,
			p.SalaryMin, p.SalaryMax, p.SalaryCurrency, string(p.JobType), string(p.ExperienceLevel), p.PostedDate,
			p.ApplicationURL, p.CompanyURL, p.RemoteFriendly,
			domain.SortedSet(p.Benefits), domain.SortedSet(p.Skills), domain.SortedSet(p.Tags),
			p.SourceURL, p.SourcePlatform, string(meta),
			p.ConfidenceScore, p.QualityScore, p.SpamScore, p.QualityGrade, now,
		).
		Suffix(`ON CONFLICT (fingerprint) DO UPDATE SET
			title = EXCLUDED.title,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			requirements = EXCLUDED.requirements,
			salary_min = EXCLUDED.salary_min,
			salary_max = EXCLUDED.salary_max,
			salary_currency = EXCLUDED.salary_currency,
			posted_date = EXCLUDED.posted_date,
			application_url = EXCLUDED.application_url,
			source_url = EXCLUDED.source_url,
			raw_metadata = EXCLUDED.raw_metadata,
			confidence_score = EXCLUDED.confidence_score,
			quality_score = EXCLUDED.quality_score,
			spam_score = EXCLUDED.spam_score,
			quality_grade = EXCLUDED.quality_grade,
			created_at = EXCLUDED.created_at
		WHERE job_postings.created_at < ?
		RETURNING id`, now.Add(-s.opts.RepostWindow)).
		ToSql()
}

// RecordRejection stores why a posting was dropped.
func (s *PostgresStore) RecordRejection(ctx context.Context, r domain.Rejection) error {
	query, args, err := s.rejectionQuery(r)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record rejection for %s: %w", r.URL, err)
	}
	return nil
}

func (s *PostgresStore) rejectionQuery(r domain.Rejection) (string, []any, error) {
	var fingerprint, title, company string
	if r.Posting != nil {
		fingerprint, title, company = r.Posting.Fingerprint, r.Posting.Title, r.Posting.Company
	}
	match, err := nullableJSON(r.Match)
	if err != nil {
		return "", nil, err
	}
	var issues any
	if len(r.Issues) > 0 {
		if issues, err = nullableJSON(r.Issues); err != nil {
			return "", nil, err
		}
	}
	return s.sb.Insert("posting_rejections").
		Columns("id", "session_id", "source", "url", "reason", "fingerprint", "title", "company", "match", "issues", "created_at").
		Values(uuid.NewString(), r.SessionID, r.Source, r.URL, string(r.Reason), fingerprint, title, company, match, issues, r.At).
		ToSql()
}

func nullableJSON(v any) (any, error) {
	switch x := v.(type) {
	case *domain.DuplicateMatch:
		if x == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal rejection detail: %w", err)
	}
	return string(b), nil
}

// RecordFailure creates or updates the failed_urls row of f.URL. Repeated
// failures increment retry_count.
func (s *PostgresStore) RecordFailure(ctx context.Context, f domain.URLFailure) error {
	query, args, err := s.failureQuery(f)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record failure for %s: %w", f.URL, err)
	}
	return nil
}

func (s *PostgresStore) failureQuery(f domain.URLFailure) (string, []any, error) {
	at := f.At
	if at.IsZero() {
		at = s.now()
	}
	return s.sb.Insert("failed_urls").
		Columns("url", "source", "kind", "failure_reason", "http_status_code", "attempts",
			"last_attempt_timestamp", "retry_count", "next_retry_at").
		Values(f.URL, f.Source, string(f.Kind), f.Reason, f.StatusCode, f.Attempts, at, 1, at.Add(s.opts.RetryAfter)).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			kind = EXCLUDED.kind,
			failure_reason = EXCLUDED.failure_reason,
			http_status_code = EXCLUDED.http_status_code,
			attempts = EXCLUDED.attempts,
			last_attempt_timestamp = EXCLUDED.last_attempt_timestamp,
			retry_count = failed_urls.retry_count + 1,
			next_retry_at = EXCLUDED.next_retry_at`).
		ToSql()
}

// DueFailures returns failed URLs whose retry time has come, oldest first.
func (s *PostgresStore) DueFailures(ctx context.Context, limit int) ([]domain.URLFailure, error) {
	query, args, err := s.dueQuery(limit)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query due failures: %w", err)
	}
	defer rows.Close()

	var out []domain.URLFailure
	for rows.Next() {
		var f domain.URLFailure
		var kind string
		if err := rows.Scan(&f.URL, &f.Source, &kind, &f.Reason, &f.StatusCode, &f.Attempts, &f.At); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		f.Kind = domain.ErrorKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) dueQuery(limit int) (string, []any, error) {
	return s.sb.Select("url", "source", "kind", "failure_reason", "http_status_code", "attempts", "last_attempt_timestamp").
		From("failed_urls").
		Where(sq.LtOrEq{"next_retry_at": s.now()}).
		Where(sq.Lt{"retry_count": s.opts.MaxRetries}).
		OrderBy("next_retry_at ASC").
		Limit(uint64(max(limit, 1))).
		ToSql()
}

// ResolveFailures removes the failed_urls rows of urls that were crawled.
func (s *PostgresStore) ResolveFailures(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	query, args, err := s.sb.Delete("failed_urls").Where(sq.Eq{"url": urls}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("resolve failures: %w", err)
	}
	return nil
}

// FindByFingerprint returns postings with fingerprint stored since since.
func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]domain.PostingRef, error) {
	return s.findRefs(ctx, s.refSelect().
		Where(sq.Eq{"fingerprint": fingerprint}).
		Where(sq.GtOrEq{"created_at": since}).
		Limit(1))
}

// FindByCompany returns the newest postings of company stored since since.
func (s *PostgresStore) FindByCompany(ctx context.Context, company string, since time.Time) ([]domain.PostingRef, error) {
	return s.findRefs(ctx, s.refSelect().
		Where("lower(company) = lower(?)", company).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at DESC").
		Limit(s.opts.CandidateLimit))
}

func (s *PostgresStore) refSelect() sq.SelectBuilder {
	return s.sb.Select("id", "title", "company", "location", "fingerprint", "created_at").From("job_postings")
}

func (s *PostgresStore) findRefs(ctx context.Context, b sq.SelectBuilder) ([]domain.PostingRef, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var out []domain.PostingRef
	for rows.Next() {
		var r domain.PostingRef
		if err := rows.Scan(&r.ID, &r.Title, &r.Company, &r.Location, &r.Fingerprint, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
