package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/browser"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
)

// fakeResponse is what the fake page serves for one URL. When several are
// queued for a URL, each navigation consumes the next one.
type fakeResponse struct {
	status  int
	title   string
	html    string
	err     error
	captcha bool
}

type fakeBrowser struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	navigated map[string]int
	clicks    []string
	profiles  []stealth.Profile
	onNav     func(url string)
	newErr    error
	readyErr  error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{responses: map[string][]fakeResponse{}, navigated: map[string]int{}}
}

func (b *fakeBrowser) serve(url string, rs ...fakeResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[url] = append(b.responses[url], rs...)
}

func (b *fakeBrowser) navigations(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.navigated[url]
}

func (b *fakeBrowser) NewPage(_ context.Context, p stealth.Profile) (browser.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newErr != nil {
		return nil, b.newErr
	}
	b.profiles = append(b.profiles, p)
	return &fakePage{b: b}, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakePage struct {
	b       *fakeBrowser
	current fakeResponse
}

func (p *fakePage) Navigate(ctx context.Context, url string) (int, error) {
	if p.b.onNav != nil {
		p.b.onNav(url)
	}
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.navigated[url]++
	queue := p.b.responses[url]
	if len(queue) == 0 {
		p.current = fakeResponse{}
		return 0, fmt.Errorf("%w: net::ERR_NAME_NOT_RESOLVED %s", domain.ErrNetwork, url)
	}
	p.current = queue[0]
	if len(queue) > 1 {
		p.b.responses[url] = queue[1:]
	}
	if p.current.err != nil {
		return 0, p.current.err
	}
	return p.current.status, nil
}

func (p *fakePage) WaitReady(context.Context, string, time.Duration) error { return p.b.readyErr }

func (p *fakePage) Title(context.Context) (string, error) { return p.current.title, nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.current.html == "" {
		return "", errors.New("no document")
	}
	return p.current.html, nil
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	if selector == CaptchaSelector {
		return p.current.captcha, nil
	}
	return true, nil
}

func (p *fakePage) Click(_ context.Context, selector string) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.clicks = append(p.b.clicks, selector)
	return nil
}

func (p *fakePage) ScrollToBottom(context.Context) error { return nil }

func (p *fakePage) Close() error { return nil }

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) within(lo, hi time.Duration) []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []time.Duration
	for _, d := range r.calls {
		if d >= lo && d <= hi {
			out = append(out, d)
		}
	}
	return out
}
