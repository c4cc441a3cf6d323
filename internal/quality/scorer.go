package quality

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// Repository looks up previously stored postings.
type Repository interface {
	FindByFingerprint(ctx context.Context, fingerprint string, since time.Time) ([]domain.PostingRef, error)
	FindByCompany(ctx context.Context, company string, since time.Time) ([]domain.PostingRef, error)
}

// Option customizes a Scorer.
type Option func(*Scorer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

// Scorer fingerprints postings, finds stored duplicates and grades quality.
type Scorer struct {
	repo   Repository
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewScorer creates a scorer. repo may be nil, in which case CheckDuplicate
// never reports a duplicate.
func NewScorer(repo Repository, cfg Config, logger *zap.Logger, opts ...Option) *Scorer {
	s := &Scorer{
		repo:   repo,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger.Named("quality"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// CheckDuplicate compares p with stored postings. An exact fingerprint match
// inside ExactWindow is a duplicate with similarity 1. Otherwise postings of
// the same company inside SimilarWindow are compared field by field and the
// best match at or above DuplicateThreshold is a duplicate.
func (s *Scorer) CheckDuplicate(ctx context.Context, p *domain.ParsedJobPosting) (domain.DuplicateMatch, error) {
	if s.repo == nil {
		return domain.DuplicateMatch{}, nil
	}
	fp := p.Fingerprint
	if fp == "" {
		fp = Fingerprint(p.Title, p.Company, p.Location)
	}
	now := s.now()

	exact, err := s.repo.FindByFingerprint(ctx, fp, now.Add(-s.cfg.ExactWindow))
	if err != nil {
		return domain.DuplicateMatch{}, fmt.Errorf("find by fingerprint: %w", err)
	}
	if len(exact) > 0 {
		return domain.DuplicateMatch{
			IsDuplicate:  true,
			Similarity:   1,
			Exact:        true,
			MatchedID:    exact[0].ID,
			MatchedTitle: exact[0].Title,
		}, nil
	}

	if strings.TrimSpace(p.Company) == "" {
		return domain.DuplicateMatch{}, nil
	}
	candidates, err := s.repo.FindByCompany(ctx, p.Company, now.Add(-s.cfg.SimilarWindow))
	if err != nil {
		return domain.DuplicateMatch{}, fmt.Errorf("find by company: %w", err)
	}

	var best domain.DuplicateMatch
	for _, c := range candidates {
		sim := s.Similarity(p, c)
		if sim > best.Similarity {
			best = domain.DuplicateMatch{Similarity: sim, MatchedID: c.ID, MatchedTitle: c.Title}
		}
	}
	best.IsDuplicate = best.Similarity >= s.cfg.DuplicateThreshold
	if best.IsDuplicate {
		s.logger.Debug("near duplicate posting",
			zap.String("title", p.Title),
			zap.String("matched_id", best.MatchedID),
			zap.Float64("similarity", best.Similarity))
	}
	return best, nil
}

// Similarity is the weighted character-sequence similarity of p and ref.
func (s *Scorer) Similarity(p *domain.ParsedJobPosting, ref domain.PostingRef) float64 {
	w := s.cfg.Similarity
	total := w.Title + w.Company + w.Location
	if total <= 0 {
		return 0
	}
	sim := w.Title*Ratio(p.Title, ref.Title) +
		w.Company*Ratio(p.Company, ref.Company) +
		w.Location*Ratio(p.Location, ref.Location)
	return domain.Clamp(sim/total, 0, 1)
}

// Ratio is difflib's SequenceMatcher ratio over the characters of the
// simplified strings. Two empty strings are identical.
func Ratio(a, b string) float64 {
	a, b = Simplify(a), Simplify(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return difflib.NewMatcher(chars(a), chars(b)).Ratio()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Apply computes fingerprint, quality, spam and grade and stores them on p.
func (s *Scorer) Apply(p *domain.ParsedJobPosting) Report {
	p.Fingerprint = Fingerprint(p.Title, p.Company, p.Location)
	r := s.Score(p)
	p.SetQualityScore(r.Score)
	p.SetSpamScore(r.Spam)
	p.QualityGrade = r.Grade
	return r
}
