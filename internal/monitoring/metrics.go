package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the crawler. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	PagesScraped  *prometheus.CounterVec
	JobsFound     *prometheus.CounterVec
	Duplicates    *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Captchas      *prometheus.CounterVec
	RateLimits    *prometheus.CounterVec
	Postings      *prometheus.CounterVec
	Sessions      *prometheus.CounterVec
	CrawlDuration *prometheus.HistogramVec
	CurrentDelay  *prometheus.GaugeVec
	QueueDepth    prometheus.Gauge
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

// NewMetrics registers the crawler metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PagesScraped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_pages_scraped_total",
			Help: "Pages loaded and extracted successfully.",
		}, []string{"source"}),
		JobsFound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_jobs_found_total",
			Help: "Postings extracted from scraped pages.",
		}, []string{"source"}),
		Duplicates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_duplicates_total",
			Help: "Items dropped as duplicates.",
		}, []string{"source", "kind"}), // url, content, posting
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "URL failures by error kind.",
		}, []string{"source", "kind"}),
		Captchas: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_captchas_detected_total",
			Help: "Pages answered with a captcha challenge.",
		}, []string{"source"}),
		RateLimits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_rate_limits_hit_total",
			Help: "Rate limit signals from sources or the local limiter.",
		}, []string{"source"}),
		Postings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_postings_total",
			Help: "Postings by admission outcome.",
		}, []string{"source", "outcome"}), // accepted, rejected, duplicate
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_sessions_total",
			Help: "Crawl sessions by final status.",
		}, []string{"source", "status"}),
		CrawlDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crawler_session_duration_seconds",
			Help:    "Duration of crawl sessions.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"source"}),
		CurrentDelay: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crawler_current_delay_seconds",
			Help: "Adaptive delay at the end of the last session.",
		}, []string{"source"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_jobs_in_queue",
			Help: "Crawl jobs waiting for a worker.",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncPagesScraped(source string) {
	if m == nil {
		return
	}
	m.PagesScraped.WithLabelValues(source).Inc()
}

func (m *Metrics) AddJobsFound(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsFound.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) IncDuplicate(source, kind string) {
	if m == nil {
		return
	}
	m.Duplicates.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) IncError(source, kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) IncCaptcha(source string) {
	if m == nil {
		return
	}
	m.Captchas.WithLabelValues(source).Inc()
}

func (m *Metrics) IncRateLimit(source string) {
	if m == nil {
		return
	}
	m.RateLimits.WithLabelValues(source).Inc()
}

func (m *Metrics) IncPosting(source, outcome string) {
	if m == nil {
		return
	}
	m.Postings.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveSession(source, status string, d time.Duration, delay time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(source, status).Inc()
	m.CrawlDuration.WithLabelValues(source).Observe(d.Seconds())
	m.CurrentDelay.WithLabelValues(source).Set(delay.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
