package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/browser"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/dedup"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/extract"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/ratelimit"
)

var captchaTitleMarkers = []string{
	"just a moment", "attention required", "cloudflare", "captcha",
	"are you a robot", "verify you are human", "security check", "access denied",
}

// CaptchaSelector matches known challenge widgets.
const CaptchaSelector = ".captcha, .recaptcha, [data-captcha], #captcha, " +
	"iframe[src*='recaptcha'], iframe[src*='hcaptcha'], #challenge-stage, .cf-turnstile"

var rateLimitMarkers = []string{"too many requests", "rate limit", "slow down"}

// session is the state of one Scrape call.
type session struct {
	engine  *Engine
	opts    Options
	source  string
	tmpl    *extract.Template
	page    browser.Page
	limiter *ratelimit.Adaptive
	filter  dedup.Filter
	logger  *zap.Logger
	result  *domain.BatchResult

	consecutiveFailures   int
	consecutiveRateLimits int
}

func (s *session) run(ctx context.Context, urls []string) {
	for _, u := range urls {
		if ctx.Err() != nil {
			s.logger.Info("crawl session cancelled", zap.Error(ctx.Err()))
			return
		}
		s.processURL(ctx, u)
		if s.result.Stats.Degraded {
			return
		}
	}
}

func (s *session) processURL(ctx context.Context, u string) {
	dup, err := s.filter.IsDuplicateURL(ctx, u)
	if err != nil {
		s.logger.Warn("url dedup check failed", zap.String("url", u), zap.Error(err))
	}
	if dup {
		s.result.Stats.DuplicatesFiltered++
		s.result.Skipped = append(s.result.Skipped, domain.Rejection{
			SessionID: s.result.SessionID,
			Source:    s.source,
			URL:       u,
			Reason:    domain.RejectDuplicateURL,
			At:        s.engine.now(),
		})
		s.engine.metrics.IncDuplicate(s.source, "url")
		s.logger.Debug("skipping seen url", zap.String("url", u))
		return
	}

	if err := s.limiter.Acquire(ctx, s.opts.AcquireTimeout); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(ctx, &domain.CrawlError{Kind: domain.KindRateLimit, URL: u, Err: err})
		return
	}

	postings, err := s.scrapeURL(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail(ctx, err)
		return
	}
	// Only scraped URLs enter the window; failed ones stay retryable.
	if err := s.filter.MarkURL(context.WithoutCancel(ctx), u); err != nil {
		s.logger.Warn("url dedup mark failed", zap.String("url", u), zap.Error(err))
	}
	s.succeed(u, postings)
}

func (s *session) scrapeURL(ctx context.Context, u string) ([]*domain.ParsedJobPosting, error) {
	if _, err := s.navigate(ctx, u); err != nil {
		return nil, err
	}
	if err := s.detectBlock(ctx, u); err != nil {
		return nil, err
	}
	s.waitReady(ctx, u)
	if s.opts.DynamicContent {
		s.loadDynamicContent(ctx, u)
	}

	html, err := s.page.HTML(ctx)
	if err != nil {
		return nil, &domain.CrawlError{Kind: kindOr(err, domain.KindNetwork), URL: u, Attempts: 1, Err: err}
	}
	return s.extract(ctx, u, html)
}

// navigate loads u, retrying network failures and timeouts with exponential
// backoff. Rate limit and captcha answers are returned without retry.
func (s *session) navigate(ctx context.Context, u string) (int, error) {
	var lastErr *domain.CrawlError
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		status, err := s.page.Navigate(ctx, u)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = &domain.CrawlError{Kind: kindOr(err, domain.KindNetwork), URL: u, Attempts: attempt, Err: err}
		case status == 429:
			return status, &domain.CrawlError{Kind: domain.KindRateLimit, URL: u, Attempts: attempt, StatusCode: status, Err: domain.ErrRateLimitExceeded}
		case status >= 200 && status < 300:
			return status, nil
		default:
			if status == 403 || status == 503 {
				if err := s.detectBlock(ctx, u); err != nil {
					return status, err
				}
			}
			lastErr = &domain.CrawlError{Kind: domain.KindNetwork, URL: u, Attempts: attempt, StatusCode: status,
				Err: fmt.Errorf("%w: http status %d", domain.ErrNetwork, status)}
		}

		if attempt < s.opts.MaxRetries {
			backoff := s.retryBackoff(attempt)
			s.logger.Debug("navigation failed, retrying",
				zap.String("url", u), zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			if err := s.engine.sleep(ctx, backoff); err != nil {
				return 0, err
			}
		}
	}
	return 0, lastErr
}

// retryBackoff is base·2^attempt plus up to one second of jitter.
func (s *session) retryBackoff(attempt int) time.Duration {
	return s.opts.RetryBaseDelay*time.Duration(1<<attempt) + s.engine.uniform(0, time.Second)
}

// detectBlock reports captcha challenges and rate-limit pages served with a
// success status.
func (s *session) detectBlock(ctx context.Context, u string) error {
	title, err := s.page.Title(ctx)
	if err != nil {
		s.logger.Debug("read title", zap.String("url", u), zap.Error(err))
	}
	lower := strings.ToLower(title)
	for _, m := range rateLimitMarkers {
		if strings.Contains(lower, m) {
			return &domain.CrawlError{Kind: domain.KindRateLimit, URL: u, Attempts: 1, Err: domain.ErrRateLimitExceeded}
		}
	}
	for _, m := range captchaTitleMarkers {
		if strings.Contains(lower, m) {
			return &domain.CrawlError{Kind: domain.KindCaptcha, URL: u, Attempts: 1, Err: fmt.Errorf("%w: title %q", domain.ErrCaptcha, title)}
		}
	}
	found, err := s.page.Exists(ctx, CaptchaSelector)
	if err != nil {
		s.logger.Debug("captcha check failed", zap.String("url", u), zap.Error(err))
	}
	if found {
		return &domain.CrawlError{Kind: domain.KindCaptcha, URL: u, Attempts: 1, Err: fmt.Errorf("%w: challenge element present", domain.ErrCaptcha)}
	}
	return nil
}

func (s *session) waitReady(ctx context.Context, u string) {
	if s.tmpl.ReadySelector == "" {
		return
	}
	if err := s.page.WaitReady(ctx, s.tmpl.ReadySelector, s.opts.SelectorTimeout); err != nil && ctx.Err() == nil {
		s.logger.Warn("content ready signal not seen, extracting anyway",
			zap.String("url", u), zap.String("selector", s.tmpl.ReadySelector), zap.Error(err))
	}
}

func (s *session) loadDynamicContent(ctx context.Context, u string) {
	if sel := s.tmpl.LoadMoreSelector; sel != "" {
		found, err := s.page.Exists(ctx, sel)
		if err == nil && found {
			if err := s.page.Click(ctx, sel); err != nil {
				s.logger.Debug("load more click failed", zap.String("url", u), zap.Error(err))
			} else if err := s.engine.sleep(ctx, s.opts.DynamicContentDelay); err != nil {
				return
			}
		}
	}
	if err := s.page.ScrollToBottom(ctx); err != nil {
		s.logger.Debug("scroll failed", zap.String("url", u), zap.Error(err))
		return
	}
	_ = s.engine.sleep(ctx, s.opts.DynamicContentDelay)
}

// extract splits the page into posting containers and parses each one.
func (s *session) extract(ctx context.Context, u, html string) ([]*domain.ParsedJobPosting, error) {
	records, err := s.containers(u, html)
	if err != nil {
		return nil, err
	}
	var postings []*domain.ParsedJobPosting
	for _, rec := range records {
		dup, err := s.filter.IsDuplicateContent(ctx, contentText(rec.HTML))
		if err != nil {
			s.logger.Warn("content dedup check failed", zap.String("url", u), zap.Error(err))
		}
		if dup {
			s.result.Stats.DuplicatesFiltered++
			s.result.Skipped = append(s.result.Skipped, domain.Rejection{
				SessionID: s.result.SessionID,
				Source:    s.source,
				URL:       u,
				Reason:    domain.RejectDuplicateContent,
				At:        s.engine.now(),
			})
			s.engine.metrics.IncDuplicate(s.source, "content")
			continue
		}
		posting, err := s.engine.parser.Parse(rec)
		if err != nil {
			s.logger.Debug("container skipped", zap.String("url", u), zap.Error(err))
			continue
		}
		postings = append(postings, posting)
	}
	return postings, nil
}

func (s *session) containers(u, html string) ([]extract.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &domain.CrawlError{Kind: domain.KindParsing, URL: u, Attempts: 1, Err: fmt.Errorf("%w: %v", domain.ErrParsing, err)}
	}
	meta := map[string]string{"session_id": s.result.SessionID}

	for _, selector := range listingSelectors(s.tmpl.ListingSelector) {
		matches := doc.Find(selector)
		if matches.Length() == 0 {
			continue
		}
		var records []extract.RawRecord
		matches.Each(func(_ int, sel *goquery.Selection) {
			if sel.ParentsFiltered(selector).Length() > 0 {
				return
			}
			outer, err := goquery.OuterHtml(sel)
			if err != nil {
				return
			}
			records = append(records, extract.RawRecord{Source: s.source, SourceURL: u, HTML: outer, Metadata: meta})
		})
		return records, nil
	}
	return []extract.RawRecord{{Source: s.source, SourceURL: u, HTML: html, FullPage: true, Metadata: meta}}, nil
}

func listingSelectors(primary string) []string {
	if primary == "" || primary == extract.GenericListingSelector {
		return []string{extract.GenericListingSelector}
	}
	return []string{primary, extract.GenericListingSelector}
}

func contentText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

func (s *session) succeed(u string, postings []*domain.ParsedJobPosting) {
	s.limiter.RecordSuccess()
	s.consecutiveFailures = 0
	s.consecutiveRateLimits = 0

	stats := &s.result.Stats
	stats.PagesScraped++
	stats.JobsFound += len(postings)
	s.result.Postings = append(s.result.Postings, postings...)
	s.result.Scraped = append(s.result.Scraped, u)
	s.engine.metrics.IncPagesScraped(s.source)
	s.engine.metrics.AddJobsFound(s.source, len(postings))
	s.logger.Info("page scraped", zap.String("url", u), zap.Int("postings", len(postings)))
}

// fail records a URL failure, adapts pacing and pauses according to the
// failure kind.
func (s *session) fail(ctx context.Context, err error) {
	s.limiter.RecordError()
	s.consecutiveFailures++

	var ce *domain.CrawlError
	if !errors.As(err, &ce) {
		ce = &domain.CrawlError{Kind: kindOr(err, domain.KindNetwork), Attempts: 1, Err: err}
	}

	stats := &s.result.Stats
	var pause time.Duration
	switch ce.Kind {
	case domain.KindCaptcha:
		stats.CaptchasDetected++
		s.consecutiveRateLimits = 0
		pause = s.engine.uniform(s.opts.CaptchaPauseMin, s.opts.CaptchaPauseMax)
		s.engine.metrics.IncCaptcha(s.source)
	case domain.KindRateLimit:
		stats.RateLimitsHit++
		s.consecutiveRateLimits++
		pause = s.rateLimitPause(s.consecutiveRateLimits)
		s.engine.metrics.IncRateLimit(s.source)
	default:
		stats.Errors++
		s.consecutiveRateLimits = 0
	}
	s.engine.metrics.IncError(s.source, string(ce.Kind))

	s.result.Failures = append(s.result.Failures, domain.URLFailure{
		URL:        ce.URL,
		Source:     s.source,
		Kind:       ce.Kind,
		Reason:     ce.Error(),
		StatusCode: ce.StatusCode,
		Attempts:   ce.Attempts,
		At:         s.engine.now(),
	})
	s.logger.Warn("url failed",
		zap.String("url", ce.URL),
		zap.String("kind", string(ce.Kind)),
		zap.Int("consecutive_failures", s.consecutiveFailures),
		zap.Duration("delay", s.limiter.CurrentDelay()),
		zap.Error(err))

	if s.consecutiveFailures > s.opts.MaxConsecutiveFailures {
		stats.Degraded = true
		s.logger.Error("too many consecutive failures, session degraded",
			zap.Int("consecutive_failures", s.consecutiveFailures))
		return
	}
	if pause > 0 {
		s.logger.Info("pausing session", zap.String("kind", string(ce.Kind)), zap.Duration("pause", pause))
		_ = s.engine.sleep(ctx, pause)
	}
}

// rateLimitPause is RateLimitBackoff·2^(n-1) capped at MaxRateLimitPause.
func (s *session) rateLimitPause(n int) time.Duration {
	pause := s.opts.RateLimitBackoff
	for i := 1; i < n && pause < s.opts.MaxRateLimitPause; i++ {
		pause *= 2
	}
	return min(pause, s.opts.MaxRateLimitPause)
}

func kindOr(err error, fallback domain.ErrorKind) domain.ErrorKind {
	if k := domain.KindOf(err); k != domain.KindUnknown {
		return k
	}
	return fallback
}
