package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/handler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/middleware"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/monitoring"
)

// New builds the HTTP API. gatherer backs /metrics.
func New(h *handler.Handler, m *monitoring.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger.Named("access")))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Post("/crawl", h.HandleSubmitCrawl)
		r.Get("/sessions", h.HandleListSessions)
		r.Get("/sessions/{id}", h.HandleGetSession)
		r.Get("/schedules", h.HandleListSchedules)
		r.Post("/schedules/{name}/run", h.HandleRunSchedule)
	})

	return r
}
