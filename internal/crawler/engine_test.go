package crawler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/dedup"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/extract"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
)

const listingHTML = `<html><head><title>Jobs at Acme</title></head><body>
<div class="results">
  <article class="job-card">
    <h2 class="job-title">Backend Engineer</h2>
    <span class="company">Acme Corp</span>
    <span class="location">Austin, TX</span>
    <p class="description">Build APIs in Golang.</p>
    <a class="apply" href="/jobs/1">Apply</a>
  </article>
  <article class="job-card">
    <h2 class="job-title">Frontend Engineer</h2>
    <span class="company">Acme Corp</span>
    <span class="location">Remote</span>
    <p class="description">Build interfaces in React.</p>
    <a class="apply" href="/jobs/2">Apply</a>
  </article>
</div>
</body></html>`

func detailHTML(title string) string {
	return fmt.Sprintf(`<html><body><main>
<h1>%s</h1><div class="company-name">Globex</div><span class="location">Denver, CO</span>
<div class="job-description">Own the reliability of our platform.</div>
</main></body></html>`, title)
}

func ok(html string) fakeResponse { return fakeResponse{status: 200, title: "Jobs", html: html} }

func testOptions() Options {
	o := DefaultOptions()
	o.Limiter.RequestsPerSecond = 0
	o.Limiter.BaseDelay = time.Second
	o.Limiter.MaxDelay = time.Minute
	o.Limiter.JitterFraction = 0
	o.Limiter.MicroPauses = false
	return o
}

func newTestEngine(b *fakeBrowser, opts Options) (*Engine, *sleepRecorder) {
	rec := &sleepRecorder{}
	parser := extract.NewParser(extract.NewBuiltinStore(), zap.NewNop())
	e := NewEngine(b, parser, stealth.NewManager(stealth.Config{}), opts, zap.NewNop(),
		WithSleep(rec.Sleep),
		WithRand(rand.New(rand.NewPCG(1, 1))),
	)
	return e, rec
}

func TestEngine_ScrapeListing(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://acme.example/jobs", ok(listingHTML))
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{SessionID: "s1", Source: "acme", URLs: []string{"https://acme.example/jobs"}})
	require.NoError(t, err)

	require.Len(t, res.Postings, 2)
	assert.Equal(t, "Backend Engineer", res.Postings[0].Title)
	assert.Equal(t, "https://acme.example/jobs/1", res.Postings[0].ApplicationURL)
	assert.Equal(t, "Frontend Engineer", res.Postings[1].Title)
	assert.True(t, res.Postings[1].RemoteFriendly)
	assert.Equal(t, "s1", res.Postings[0].RawMetadata["session_id"])

	assert.Equal(t, 1, res.Stats.PagesScraped)
	assert.Equal(t, 2, res.Stats.JobsFound)
	assert.Zero(t, res.Stats.Errors)
	assert.False(t, res.Stats.Degraded)
	assert.Equal(t, "acme", res.Source)
	assert.Equal(t, []string{"https://acme.example/jobs"}, res.Scraped)
	require.Len(t, b.profiles, 1)
	assert.NotEmpty(t, b.profiles[0].UserAgent)
}

func TestEngine_SkipsSeenURLs(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://acme.example/jobs", ok(listingHTML))
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{
		"https://acme.example/jobs",
		"https://acme.example/jobs?utm_source=newsletter",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, b.navigations("https://acme.example/jobs"))
	assert.Zero(t, b.navigations("https://acme.example/jobs?utm_source=newsletter"))
	assert.Equal(t, 1, res.Stats.DuplicatesFiltered)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.RejectDuplicateURL, res.Skipped[0].Reason)
}

func TestEngine_FailedURLIsRetriedByLaterSession(t *testing.T) {
	const u = "https://acme.example/jobs"
	shared := dedup.NewDeduplicator(true, time.Hour)
	b := newFakeBrowser()
	rec := &sleepRecorder{}
	parser := extract.NewParser(extract.NewBuiltinStore(), zap.NewNop())
	e := NewEngine(b, parser, stealth.NewManager(stealth.Config{}), testOptions(), zap.NewNop(),
		WithSleep(rec.Sleep),
		WithFilterFactory(func(Options) dedup.Filter { return shared }),
	)

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{u}})
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Empty(t, res.Scraped)
	urls, _ := shared.Len()
	assert.Zero(t, urls, "a failed url is not recorded")

	b.serve(u, ok(listingHTML))
	res, err = e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{u}})
	require.NoError(t, err)
	assert.Empty(t, res.Skipped)
	assert.Len(t, res.Postings, 2)
	assert.Equal(t, []string{u}, res.Scraped)

	res, err = e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{u}})
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.RejectDuplicateURL, res.Skipped[0].Reason)
}

func TestEngine_FiltersDuplicateContent(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://globex.example/jobs/1", ok(detailHTML("Site Reliability Engineer")))
	b.serve("https://mirror.example/jobs/1", ok(detailHTML("Site Reliability Engineer")))
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "globex", URLs: []string{
		"https://globex.example/jobs/1", "https://mirror.example/jobs/1",
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.PagesScraped)
	assert.Len(t, res.Postings, 1)
	assert.Equal(t, 1, res.Stats.DuplicatesFiltered)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, domain.RejectDuplicateContent, res.Skipped[0].Reason)
	assert.Equal(t, "https://globex.example/jobs/1", res.Postings[0].ApplicationURL, "whole-page records apply at the page URL")
}

func TestEngine_RetriesNavigationWithBackoff(t *testing.T) {
	b := newFakeBrowser()
	url := "https://acme.example/jobs"
	b.serve(url,
		fakeResponse{err: fmt.Errorf("%w: net::ERR_CONNECTION_RESET", domain.ErrNetwork)},
		fakeResponse{err: fmt.Errorf("%w: navigate", domain.ErrTimeout)},
		ok(listingHTML),
	)
	e, rec := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{url}})
	require.NoError(t, err)
	assert.Equal(t, 3, b.navigations(url))
	assert.Len(t, res.Postings, 2)
	assert.Zero(t, res.Stats.Errors)
	assert.Len(t, rec.within(2*time.Second, 3*time.Second), 1, "first backoff is 2s plus jitter")
	assert.Len(t, rec.within(4*time.Second, 5*time.Second), 1, "second backoff is 4s plus jitter")
}

func TestEngine_NetworkFailureDoesNotAbortBatch(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://acme.example/broken", fakeResponse{status: 500, title: "Server Error"})
	b.serve("https://acme.example/jobs", ok(listingHTML))
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{
		"https://acme.example/broken", "https://acme.example/jobs",
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, b.navigations("https://acme.example/broken"))
	assert.Equal(t, 1, res.Stats.Errors)
	assert.Equal(t, 1, res.Stats.PagesScraped)
	assert.Len(t, res.Postings, 2)

	require.Len(t, res.Failures, 1)
	f := res.Failures[0]
	assert.Equal(t, domain.KindNetwork, f.Kind)
	assert.Equal(t, 500, f.StatusCode)
	assert.Equal(t, 3, f.Attempts)
}

func TestEngine_RateLimitSignalsRaiseDelay(t *testing.T) {
	b := newFakeBrowser()
	urls := []string{"https://acme.example/a", "https://acme.example/b", "https://acme.example/c"}
	for _, u := range urls {
		b.serve(u, fakeResponse{status: 429, title: "Too Many Requests"})
	}
	opts := testOptions()
	e, rec := newTestEngine(b, opts)

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: urls})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.RateLimitsHit)
	assert.Equal(t, 3375*time.Millisecond, res.Stats.CurrentDelay, "base grown by 1.5 three times")
	assert.False(t, res.Stats.Degraded)
	for _, u := range urls {
		assert.Equal(t, 1, b.navigations(u), "rate limits are not retried locally")
	}
	for _, f := range res.Failures {
		assert.Equal(t, domain.KindRateLimit, f.Kind)
	}
	// exponential pause: 30s, 60s, 120s
	assert.Len(t, rec.within(30*time.Second, 30*time.Second), 1)
	assert.Len(t, rec.within(60*time.Second, 60*time.Second), 1)
	assert.Len(t, rec.within(120*time.Second, 120*time.Second), 1)
}

func TestEngine_RateLimitPauseIsCapped(t *testing.T) {
	s := &session{opts: testOptions().withDefaults()}
	assert.Equal(t, 30*time.Second, s.rateLimitPause(1))
	assert.Equal(t, 240*time.Second, s.rateLimitPause(4))
	assert.Equal(t, 5*time.Minute, s.rateLimitPause(5))
	assert.Equal(t, 5*time.Minute, s.rateLimitPause(12))
}

func TestEngine_CaptchaDetection(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://acme.example/a", fakeResponse{status: 200, title: "Just a moment...", html: listingHTML})
	b.serve("https://acme.example/b", fakeResponse{status: 200, title: "Jobs", html: listingHTML, captcha: true})
	e, rec := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{"https://acme.example/a", "https://acme.example/b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.CaptchasDetected)
	assert.Empty(t, res.Postings)
	assert.Equal(t, 1, b.navigations("https://acme.example/a"))
	assert.Len(t, rec.within(30*time.Second, 60*time.Second), 2)
	for _, f := range res.Failures {
		assert.Equal(t, domain.KindCaptcha, f.Kind)
	}
}

func TestEngine_DegradesAfterConsecutiveFailures(t *testing.T) {
	b := newFakeBrowser()
	var urls []string
	for i := 0; i < 8; i++ {
		urls = append(urls, fmt.Sprintf("https://down.example/%d", i))
	}
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: urls})
	require.NoError(t, err, "degraded sessions return partial results")
	assert.True(t, res.Stats.Degraded)
	assert.Equal(t, 6, res.Stats.Errors)
	assert.Zero(t, b.navigations(urls[6]))
	assert.Zero(t, b.navigations(urls[7]))
}

func TestEngine_SuccessResetsFailureStreak(t *testing.T) {
	b := newFakeBrowser()
	var urls []string
	for i := 0; i < 10; i++ {
		u := fmt.Sprintf("https://flaky.example/%d", i)
		urls = append(urls, u)
		if i%4 == 3 {
			b.serve(u, ok(detailHTML(fmt.Sprintf("Engineer %d", i))))
		}
	}
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: urls})
	require.NoError(t, err)
	assert.False(t, res.Stats.Degraded)
	assert.Equal(t, 8, res.Stats.Errors)
	assert.Equal(t, 2, res.Stats.PagesScraped)
}

func TestEngine_ConfigurationErrors(t *testing.T) {
	e, _ := newTestEngine(newFakeBrowser(), testOptions())

	_, err := e.Scrape(context.Background(), Request{Source: "", URLs: []string{"https://a.example"}})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = e.Scrape(context.Background(), Request{Source: "acme"})
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestEngine_BrowserUnavailable(t *testing.T) {
	b := newFakeBrowser()
	b.newErr = errors.New("chrome not found")
	e, _ := newTestEngine(b, testOptions())
	_, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{"https://a.example"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestEngine_CancellationBetweenURLs(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://acme.example/1", ok(detailHTML("Engineer One")))
	b.serve("https://acme.example/2", ok(detailHTML("Engineer Two")))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onNav = func(string) { cancel() }
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(ctx, Request{Source: "acme", URLs: []string{"https://acme.example/1", "https://acme.example/2"}})
	require.NoError(t, err)
	assert.Equal(t, 1, b.navigations("https://acme.example/1"))
	assert.Zero(t, b.navigations("https://acme.example/2"))
	assert.Len(t, res.Postings, 1)
}

func TestEngine_MissingReadySignalStillExtracts(t *testing.T) {
	b := newFakeBrowser()
	b.readyErr = fmt.Errorf("%w: selector", domain.ErrTimeout)
	b.serve("https://acme.example/jobs", ok(listingHTML))
	e, _ := newTestEngine(b, testOptions())

	res, err := e.Scrape(context.Background(), Request{Source: "acme", URLs: []string{"https://acme.example/jobs"}})
	require.NoError(t, err)
	assert.Len(t, res.Postings, 2)
}

func TestEngine_LoadMoreAndOverrides(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://www.glassdoor.com/Job/jobs.htm", ok(`<html><body><ul>
		<li class="react-job-listing"><div data-test="job-title">Analyst</div><div data-test="employer-name">Initech</div></li>
	</ul></body></html>`))
	e, _ := newTestEngine(b, testOptions())

	block := true
	res, err := e.Scrape(context.Background(), Request{
		Source:    "glassdoor",
		URLs:      []string{"https://www.glassdoor.com/Job/jobs.htm"},
		Overrides: Overrides{BlockResources: &block, BaseDelayMS: 250},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"[data-test='load-more']"}, b.clicks)
	require.Len(t, res.Postings, 1)
	assert.Equal(t, "Initech", res.Postings[0].Company)
	assert.True(t, b.profiles[0].BlockResources)
	assert.Equal(t, 250*time.Millisecond, res.Stats.CurrentDelay)
}
