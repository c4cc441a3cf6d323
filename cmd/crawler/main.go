package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/browser"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/config"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/dedup"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/handler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/delivery/http/router"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/extract"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/monitoring"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/quality"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/scheduler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/stealth"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/storage"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/validator"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/logger"
)

// postingStore is what both storage backends provide.
type postingStore interface {
	pipeline.Sink
	quality.Repository
	scheduler.FailureSource
	Ping(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", os.Getenv("CRAWLER_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// --- Configuration ---
	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("could not load config", zap.Error(err))
	}

	// --- Logger ---
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		zap.NewExample().Fatal("could not build logger", zap.Error(err))
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("crawler exited with error", zap.Error(err))
	}
	log.Info("crawler exiting")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(reg)

	// --- Storage ---
	var store postingStore
	if cfg.UsePostgres() {
		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL, cfg.Postgres.Store, log)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.Ping(ctx); err != nil {
			return err
		}
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		store = pg
		log.Info("PostgreSQL connection pool established")
	} else {
		store = storage.NewMemoryStore(cfg.Postgres.Store)
		log.Warn("no postgres url configured, postings are kept in memory")
	}

	// Redis
	var rdb *redis.Client
	if cfg.UseRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		log.Info("Redis connection established")
	}

	// --- Extraction ---
	var templates extract.TemplateStore = extract.NewBuiltinStore()
	if cfg.Extract.TemplatesFile != "" {
		fs, err := extract.LoadFileStore(cfg.Extract.TemplatesFile, templates)
		if err != nil {
			return err
		}
		templates = fs
		log.Info("extraction templates loaded", zap.String("file", cfg.Extract.TemplatesFile), zap.Strings("sources", fs.Sources()))
	}
	parser := extract.NewParser(templates, log, extract.WithWeights(cfg.Extract.Weights))

	// --- Crawl engine ---
	chrome, err := browser.NewChrome(cfg.Browser, log)
	if err != nil {
		return err
	}
	defer chrome.Close()

	engineOpts := []crawler.EngineOption{crawler.WithMetrics(metrics)}
	if rdb != nil {
		engineOpts = append(engineOpts, crawler.WithFilterFactory(func(o crawler.Options) dedup.Filter {
			if !o.DedupEnabled {
				return dedup.NewDeduplicator(false, o.DedupTTL)
			}
			return dedup.NewRedisFilter(rdb, cfg.Redis.DedupPrefix, o.DedupTTL)
		}))
	}
	engine := crawler.NewEngine(chrome, parser, stealth.NewManager(cfg.Stealth), cfg.Crawler, log, engineOpts...)

	// --- Pipeline ---
	scorer := quality.NewScorer(store, cfg.Quality, log)
	proc := pipeline.NewProcessor(engine, scorer, validator.New(cfg.Validator, log), store, log, pipeline.WithMetrics(metrics))
	runner := pipeline.NewRunner(proc, cfg.Runner, log)
	// Sessions outlive the signal; Stop decides how long they may finish.
	runner.Start(context.WithoutCancel(ctx))

	handlerOpts := []handler.Option{handler.WithCheck("store", store.Ping)}
	if rdb != nil {
		queue := pipeline.NewRedisQueue(rdb, cfg.Redis.QueueKey)
		go runner.Consume(ctx, queue, cfg.Redis.QueueInterval)
		handlerOpts = append(handlerOpts,
			handler.WithOverflow(queue),
			handler.WithCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}

	// --- Scheduler ---
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler.Schedule, runner, store, log)
		if err != nil {
			return err
		}
		sched.Start()
		handlerOpts = append(handlerOpts, handler.WithSchedules(sched))
	}

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router.New(handler.NewHandler(runner, log, handlerOpts...), metrics, reg, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var listenErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down server...")
	case listenErr = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		<-sched.Stop().Done()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Warn("running sessions cancelled at shutdown", zap.Error(err))
	}
	return listenErr
}
