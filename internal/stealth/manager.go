package stealth

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Viewport is a browser window size.
type Viewport struct {
	Width  int64
	Height int64
}

// Profile is the browser fingerprint one crawl session presents.
type Profile struct {
	UserAgent      string
	Platform       string
	AcceptLanguage string
	Timezone       string
	Viewport       Viewport
	Proxy          string
	BlockResources bool
}

// Config controls profile generation.
type Config struct {
	Proxies        []string `mapstructure:"proxies"`
	UserAgents     []string `mapstructure:"user_agents"`
	BlockResources bool     `mapstructure:"block_resources"`
}

var defaultUserAgents = []struct{ ua, platform string }{
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "Win32"},
	{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0", "Win32"},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "MacIntel"},
	{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15", "MacIntel"},
	{"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36", "Linux x86_64"},
}

var viewports = []Viewport{
	{1920, 1080}, {1536, 864}, {1440, 900}, {1366, 768}, {1680, 1050}, {1280, 800},
}

var locales = []struct{ language, timezone string }{
	{"en-US,en;q=0.9", "America/New_York"},
	{"en-US,en;q=0.9", "America/Chicago"},
	{"en-US,en;q=0.9", "America/Los_Angeles"},
	{"en-GB,en;q=0.9", "Europe/London"},
}

// Manager hands out per-session profiles, rotating proxies sequentially.
type Manager struct {
	proxies        []string
	userAgents     []string
	blockResources bool

	mu         sync.Mutex
	proxyIndex int
	rng        *rand.Rand
}

// NewManager creates a manager. Without configured user agents a built-in
// set of current desktop browsers is used.
func NewManager(cfg Config) *Manager {
	return &Manager{
		proxies:        cfg.Proxies,
		userAgents:     cfg.UserAgents,
		blockResources: cfg.BlockResources,
		rng:            rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x57ea17)),
	}
}

// WithRand replaces the random source, for tests.
func (m *Manager) WithRand(r *rand.Rand) *Manager {
	m.rng = r
	return m
}

// NextProxy returns the next proxy URL, or "" when none are configured.
func (m *Manager) NextProxy() string {
	if len(m.proxies) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	proxy := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return proxy
}

// NewProfile returns a randomized, internally consistent profile.
func (m *Manager) NewProfile() Profile {
	proxy := m.NextProxy()

	m.mu.Lock()
	defer m.mu.Unlock()
	p := Profile{Proxy: proxy, BlockResources: m.blockResources}
	if len(m.userAgents) > 0 {
		p.UserAgent = m.userAgents[m.rng.IntN(len(m.userAgents))]
		p.Platform = platformFor(p.UserAgent)
	} else {
		ua := defaultUserAgents[m.rng.IntN(len(defaultUserAgents))]
		p.UserAgent, p.Platform = ua.ua, ua.platform
	}
	p.Viewport = viewports[m.rng.IntN(len(viewports))]
	loc := locales[m.rng.IntN(len(locales))]
	p.AcceptLanguage, p.Timezone = loc.language, loc.timezone
	return p
}

func platformFor(ua string) string {
	switch {
	case containsFold(ua, "Macintosh"):
		return "MacIntel"
	case containsFold(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}
