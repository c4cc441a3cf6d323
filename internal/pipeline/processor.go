package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/monitoring"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/quality"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/validator"
)

// Scraper runs one crawl session. *crawler.Engine implements it.
type Scraper interface {
	Scrape(ctx context.Context, req crawler.Request) (*domain.BatchResult, error)
}

// Processor takes a job from crawl to storage: scrape, score, check for
// duplicates, validate and persist.
type Processor struct {
	scraper   Scraper
	scorer    *quality.Scorer
	validator *validator.Validator
	sink      Sink
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// ProcessorOption customizes a Processor.
type ProcessorOption func(*Processor)

func WithMetrics(m *monitoring.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// NewProcessor wires the session stages together.
func NewProcessor(s Scraper, sc *quality.Scorer, v *validator.Validator, sink Sink, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		scraper:   s,
		scorer:    sc,
		validator: v,
		sink:      sink,
		logger:    logger.Named("pipeline"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs job and persists its outcome into rep. The error is non-nil
// only when the session could not start.
func (p *Processor) Process(ctx context.Context, job Job, rep *SessionReport) error {
	res, err := p.scraper.Scrape(ctx, crawler.Request{
		SessionID: job.ID,
		Source:    job.Source,
		URLs:      job.URLs,
		Overrides: job.Options,
	})
	if err != nil {
		return err
	}

	// Writes outlive a cancelled session so partial results are kept.
	store := context.WithoutCancel(ctx)
	logger := p.logger.With(zap.String("session_id", job.ID), zap.String("source", res.Source))
	rep.Stats = res.Stats

	for _, r := range res.Skipped {
		p.reject(store, logger, rep, r)
	}

	for _, f := range res.Failures {
		rep.Failed++
		if err := p.sink.RecordFailure(store, f); err != nil {
			rep.StoreErrors++
			logger.Error("failed to record url failure", zap.String("url", f.URL), zap.Error(err))
		}
	}

	var qualitySum float64
	for _, posting := range res.Postings {
		if p.handlePosting(store, logger, job, posting, rep) {
			qualitySum += posting.QualityScore
		}
	}
	if rep.Accepted > 0 {
		rep.AverageQuality = qualitySum / float64(rep.Accepted)
	}

	// Skipped and unreached URLs keep their failure records.
	if resolver, ok := p.sink.(FailureResolver); ok && len(res.Scraped) > 0 {
		if err := resolver.ResolveFailures(store, res.Scraped); err != nil {
			logger.Warn("failed to clear resolved url failures", zap.Error(err))
		}
	}

	logger.Info("session persisted",
		zap.Int("accepted", rep.Accepted),
		zap.Int("unchanged", rep.Unchanged),
		zap.Int("failed", rep.Failed),
		zap.Any("rejected", rep.Rejected),
		zap.Float64("average_quality", rep.AverageQuality),
	)
	return nil
}

// handlePosting reports whether the posting was written.
func (p *Processor) handlePosting(ctx context.Context, logger *zap.Logger, job Job, posting *domain.ParsedJobPosting, rep *SessionReport) bool {
	report := p.scorer.Apply(posting)
	rejection := domain.Rejection{
		SessionID: job.ID,
		Source:    posting.SourcePlatform,
		URL:       posting.SourceURL,
		Posting:   posting,
		At:        p.now(),
	}

	match, err := p.scorer.CheckDuplicate(ctx, posting)
	if err != nil {
		logger.Warn("duplicate check failed, relying on fingerprint constraint",
			zap.String("url", posting.SourceURL), zap.Error(err))
	}
	if match.IsDuplicate {
		rejection.Reason = domain.RejectDuplicatePosting
		rejection.Match = &match
		p.reject(ctx, logger, rep, rejection)
		return false
	}

	result := p.validator.Validate(posting)
	if !result.IsValid || !posting.IsValid() {
		rejection.Reason = domain.RejectInvalid
		rejection.Issues = result.Issues
		logger.Debug("posting failed validation",
			zap.String("url", posting.SourceURL),
			zap.Float64("validation_score", result.QualityScore),
			zap.Float64("confidence", posting.ConfidenceScore),
			zap.Int("issues", len(result.Issues)))
		p.reject(ctx, logger, rep, rejection)
		return false
	}

	inserted, err := p.sink.Upsert(ctx, posting)
	if err != nil {
		rep.StoreErrors++
		p.metrics.IncPosting(posting.SourcePlatform, "error")
		logger.Error("failed to store posting", zap.String("url", posting.SourceURL), zap.Error(err))
		return false
	}
	if !inserted {
		rep.Unchanged++
		p.metrics.IncPosting(posting.SourcePlatform, "unchanged")
		return false
	}
	rep.Accepted++
	p.metrics.IncPosting(posting.SourcePlatform, "accepted")
	logger.Debug("posting stored",
		zap.String("fingerprint", posting.Fingerprint),
		zap.String("grade", report.Grade),
		zap.Float64("spam", report.Spam))
	return true
}

func (p *Processor) reject(ctx context.Context, logger *zap.Logger, rep *SessionReport, r domain.Rejection) {
	rep.Rejected[r.Reason]++
	p.metrics.IncPosting(r.Source, string(r.Reason))
	if err := p.sink.RecordRejection(ctx, r); err != nil {
		rep.StoreErrors++
		logger.Error("failed to record rejection", zap.String("url", r.URL), zap.Error(err))
	}
}
