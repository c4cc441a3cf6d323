package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
)

// Options configures the Chrome process.
type Options struct {
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout"`
}

// DefaultOptions returns a headless setup with the engine's 30s navigation bound.
func DefaultOptions() Options {
	return Options{Headless: true, NoSandbox: true, NavigationTimeout: 30 * time.Second, ActionTimeout: 10 * time.Second}
}

var (
	_ Browser = (*Chrome)(nil)
	_ Page    = (*chromePage)(nil)
)

var blockedResources = []network.ResourceType{
	network.ResourceTypeImage,
	network.ResourceTypeStylesheet,
	network.ResourceTypeFont,
	network.ResourceTypeMedia,
}

// Chrome drives a headless Chrome through chromedp. Pages without a proxy
// share one browser process, each in its own incognito browser context;
// pages with a proxy get a dedicated process.
type Chrome struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
}

// NewChrome launches the shared browser process.
func NewChrome(opts Options, logger *zap.Logger) (*Chrome, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 10 * time.Second
	}
	c := &Chrome{opts: opts, logger: logger.Named("browser")}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions("")...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(c.logger.Sugar().Debugf))
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	c.allocCancel, c.rootCtx, c.rootCancel = allocCancel, rootCtx, rootCancel
	return c, nil
}

func (c *Chrome) allocatorOptions(proxy string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", c.opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	if proxy != "" {
		opts = append(opts, chromedp.ProxyServer(proxy))
	}
	return opts
}

// NewPage opens a tab presenting profile.
func (c *Chrome) NewPage(ctx context.Context, profile stealth.Profile) (Page, error) {
	c.mu.Lock()
	rootCtx := c.rootCtx
	c.mu.Unlock()
	if rootCtx == nil {
		return nil, errors.New("browser is closed")
	}

	var p *chromePage
	if profile.Proxy != "" {
		allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions(profile.Proxy)...)
		tabCtx, cancel := chromedp.NewContext(allocCtx)
		p = &chromePage{ctx: tabCtx, cancels: []context.CancelFunc{cancel, allocCancel}, opts: c.opts, logger: c.logger}
	} else {
		tabCtx, cancel := chromedp.NewContext(rootCtx, chromedp.WithNewBrowserContext())
		p = &chromePage{ctx: tabCtx, cancels: []context.CancelFunc{cancel}, opts: c.opts, logger: c.logger}
	}
	if err := p.start(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := p.setup(ctx, profile); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Close shuts down the shared browser process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rootCancel != nil {
		c.rootCancel()
		c.allocCancel()
		c.rootCtx, c.rootCancel, c.allocCancel = nil, nil, nil
	}
	return nil
}

type chromePage struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    Options
	logger  *zap.Logger
}

// start attaches the tab. The first Run on a chromedp context binds the
// target (and a proxy page's browser) to the context it is given, so it runs
// on the tab context itself; ctx and the navigation timeout only abort the
// wait by closing the page.
func (p *chromePage) start(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(p.ctx) }()

	timer := time.NewTimer(p.opts.NavigationTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("open tab: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = p.Close()
		<-done
		return ctx.Err()
	case <-timer.C:
		_ = p.Close()
		<-done
		return fmt.Errorf("%w: open tab", domain.ErrTimeout)
	}
}

func (p *chromePage) setup(ctx context.Context, profile stealth.Profile) error {
	actions := []chromedp.Action{}
	if profile.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(profile.UserAgent).
			WithAcceptLanguage(profile.AcceptLanguage).
			WithPlatform(profile.Platform))
	}
	if profile.Viewport.Width > 0 && profile.Viewport.Height > 0 {
		actions = append(actions, emulation.SetDeviceMetricsOverride(profile.Viewport.Width, profile.Viewport.Height, 1, false))
	}
	if profile.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(profile.Timezone))
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealth.Script(profile)).Do(ctx)
		return err
	}))
	if profile.BlockResources {
		p.blockResources()
		patterns := make([]*fetch.RequestPattern, 0, len(blockedResources))
		for _, rt := range blockedResources {
			patterns = append(patterns, &fetch.RequestPattern{URLPattern: "*", ResourceType: rt, RequestStage: fetch.RequestStageRequest})
		}
		actions = append(actions, fetch.Enable().WithPatterns(patterns))
	}
	if err := p.run(ctx, p.opts.ActionTimeout, actions...); err != nil {
		return fmt.Errorf("page setup: %w", err)
	}
	return nil
}

// blockResources fails paused requests, which after fetch.Enable are only
// the blocked resource types.
func (p *chromePage) blockResources() {
	chromedp.ListenTarget(p.ctx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(p.ctx)
			if c == nil || c.Target == nil {
				return
			}
			execCtx := cdp.WithExecutor(p.ctx, c.Target)
			if err := fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
				p.logger.Debug("fail request", zap.String("url", e.Request.URL), zap.Error(err))
			}
		}()
	})
}

// run executes actions on the tab, bounded by timeout and by ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	default:
		return err
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) (int, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return 0, fmt.Errorf("%w: navigate %s", domain.ErrTimeout, url)
		case strings.Contains(err.Error(), "net::ERR_"):
			return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
		default:
			return 0, err
		}
	}
	if resp == nil {
		return 200, nil
	}
	return int(resp.Status), nil
}

func (p *chromePage) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Title(&title))
	return title, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.opts.ActionTimeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	return len(nodes) > 0, err
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, p.opts.ActionTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) ScrollToBottom(ctx context.Context) error {
	var done bool
	return p.run(ctx, p.opts.ActionTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &done),
	)
}

func (p *chromePage) Close() error {
	for _, cancel := range p.cancels {
		cancel()
	}
	return nil
}
