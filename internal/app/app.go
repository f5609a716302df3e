package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/usercheck/internal/config"
	"github.com/MrSnakeDoc/usercheck/internal/events"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver"
	"github.com/MrSnakeDoc/usercheck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/usercheck/internal/index"
	"github.com/MrSnakeDoc/usercheck/internal/logger"
	"github.com/MrSnakeDoc/usercheck/internal/normalizer"
	"github.com/MrSnakeDoc/usercheck/internal/orchestrator"
	"github.com/MrSnakeDoc/usercheck/internal/platforms"
	"github.com/MrSnakeDoc/usercheck/internal/proxy"
	"github.com/MrSnakeDoc/usercheck/internal/redis"
	"github.com/MrSnakeDoc/usercheck/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/usercheck/internal/store/redis"
	"github.com/MrSnakeDoc/usercheck/internal/utils"
	"github.com/MrSnakeDoc/usercheck/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	publisher   *events.Publisher
	reloader    *scheduler.CatalogReloader
	collector   *scheduler.HistoryCollector
}

// engine is the check pipeline shared by the server and the CLI.
type engine struct {
	loader       *platforms.Loader
	catalog      *platforms.Catalog
	registry     *platforms.Registry
	probeOpts    platforms.HTTPOptions
	history      *index.MemoryIndex
	orchestrator *orchestrator.Orchestrator
}

func newEngine(cfg *config.Config, log logger.Logger, opts ...orchestrator.Option) (*engine, error) {
	e := &engine{
		loader:   platforms.NewLoader(cfg.PlatformFile, cfg.ExpandCatalogHeaders),
		catalog:  platforms.NewCatalog(nil),
		registry: platforms.NewRegistry(),
		probeOpts: platforms.HTTPOptions{
			Timeout:   cfg.ProbeTimeout,
			UserAgent: cfg.UserAgent,
		},
		history: index.NewMemoryIndex(),
	}

	base := []orchestrator.Option{
		orchestrator.WithHistory(e.history),
		orchestrator.WithIDGenerator(orchestrator.IDGeneratorFor(cfg.IDScheme)),
		orchestrator.WithDefaultPriority(cfg.DefaultPriority),
		orchestrator.WithBatchMaxConcurrent(cfg.BatchMaxConcurrent),
	}

	if len(cfg.ProxyList) > 0 {
		provider, err := proxy.NewStaticProvider(cfg.ProxyList)
		if err != nil {
			return nil, fmt.Errorf("failed to build proxy provider: %w", err)
		}
		log.Info("proxy provider enabled",
			logger.Int("proxies", provider.Len()),
			logger.String("country", cfg.ProxyCountry))
		base = append(base, orchestrator.WithProxyProvider(provider, proxy.GeoConstraints{Country: cfg.ProxyCountry}))
	}

	if len(cfg.APIKeys) > 0 {
		names := make([]string, 0, len(cfg.APIKeys))
		for name := range cfg.APIKeys {
			names = append(names, name)
		}
		sort.Strings(names)
		log.Info("platform api keys configured", logger.Strings("platforms", names))
	}

	e.orchestrator = orchestrator.New(e.catalog, e.registry, normalizer.New(), log, append(base, opts...)...)
	return e, nil
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	var (
		sinks       []orchestrator.ResultSink
		redisClient *goredis.Client
		store       *redisstore.Store
		publisher   *events.Publisher
	)

	// Redis is optional, but once configured it must be reachable - fail fast
	if cfg.RedisEnabled() {
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(context.Background(), redis.OptionsFromConfig(cfg), loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		loggerClient.Info("Redis initialized successfully")
		redisClient = client
		store = redisstore.NewStore(client, cfg.ResultTTL)
		sinks = append(sinks, store)
	} else {
		loggerClient.Info("redis address not configured, result persistence disabled")
	}

	if cfg.KafkaEnabled() {
		publisher = events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		sinks = append(sinks, publisher)
		loggerClient.Info("kafka publishing enabled",
			logger.Strings("brokers", cfg.KafkaBrokers),
			logger.String("topic", cfg.KafkaTopic))
	}

	e, err := newEngine(cfg, loggerClient, orchestrator.WithSinks(sinks...))
	if err != nil {
		loggerClient.Errorf("Failed to build check engine: %v", err)
		os.Exit(1)
	}

	// Restore recent history so /results survives restarts
	if store != nil {
		syncer := scheduler.NewRedisSyncer(store, e.history, loggerClient, cfg.HistoryRetention)
		if err := syncer.Sync(context.Background()); err != nil {
			loggerClient.Warn("failed to sync check history from redis on startup",
				logger.Error(err))
		}
	}

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	reloader := scheduler.NewCatalogReloader(
		e.loader,
		e.catalog,
		e.registry,
		e.probeOpts,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	var pruner scheduler.ResultPruner
	if store != nil {
		pruner = store
	}
	collector := scheduler.NewHistoryCollector(
		pruner,
		e.history,
		loggerClient,
		cfg.HistoryGCInterval,
		cfg.HistoryRetention,
	)

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RateBurst:         cfg.RateBurst,
		BatchMaxUsernames: cfg.BatchMaxSize,
		Orchestrator:      e.orchestrator,
		Catalog:           e.catalog,
		CatalogSource:     e.loader.Source(),
		RedisClient:       redisClient,
		ReloadTrigger:     reloadTrigger,
	}
	// typed nil pointers would read as configured
	if store != nil {
		d.Results = store
	}
	if publisher != nil {
		d.Publisher = publisher
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		publisher:   publisher,
		reloader:    reloader,
		collector:   collector,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting usercheck v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the catalog and start periodic refresh
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start catalog reloader: %w", err)
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if err := a.collector.Start(ctx); err != nil {
		return fmt.Errorf("failed to start history collector: %w", err)
	}
	if a.collector.Enabled() {
		a.logger.Info("history collector started",
			logger.Duration("interval", a.cfg.HistoryGCInterval),
			logger.Duration("retention", a.cfg.HistoryRetention))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.collector.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// sinks are closed after the server so in-flight checks can still publish
	if a.publisher != nil {
		utils.CloseLogged(a.publisher, "kafka publisher", a.logger)
	}
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}

	a.logger.Info("✅ usercheck stopped cleanly")
	// stdout sync returns EINVAL on most terminals
	_ = a.logger.Sync()
	return nil
}
