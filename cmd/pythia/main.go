package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/Pythia/adapters/theoddsapi"
	"github.com/XavierBriggs/Pythia/internal/api"
	"github.com/XavierBriggs/Pythia/internal/arbitrage"
	"github.com/XavierBriggs/Pythia/internal/cache"
	"github.com/XavierBriggs/Pythia/internal/config"
	"github.com/XavierBriggs/Pythia/internal/hub"
	"github.com/XavierBriggs/Pythia/internal/ledger"
	"github.com/XavierBriggs/Pythia/internal/logger"
	"github.com/XavierBriggs/Pythia/internal/metrics"
	"github.com/XavierBriggs/Pythia/internal/notifier"
	"github.com/XavierBriggs/Pythia/internal/registry"
	"github.com/XavierBriggs/Pythia/internal/scheduler"
	"github.com/XavierBriggs/Pythia/internal/writer"
	"github.com/XavierBriggs/Pythia/pkg/contracts"
	nfl "github.com/XavierBriggs/Pythia/sports/americanfootball_nfl"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		fmt.Printf("✗ Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("pythia exited", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("=== Pythia odds service ===")

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	healthChecks := map[string]metrics.HealthFunc{}

	// Redis
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		opts, err := cfg.RedisOptions()
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		healthChecks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		fmt.Println("✓ Connected to Redis")
	}

	// Postgres
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		healthChecks["postgres"] = db.PingContext
		fmt.Println("✓ Connected to Postgres")
	}

	// Usage ledger
	var store ledger.Store
	switch cfg.LedgerBackend {
	case config.LedgerPostgres:
		pg := ledger.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
	case config.LedgerRedis:
		store = ledger.NewRedisStore(redisClient)
	default:
		store = ledger.NewMemoryStore()
	}
	usageLedger := ledger.New(store, cfg.MonthlyLimit, log)
	fmt.Printf("✓ Usage ledger: %s (limit %d/month)\n", cfg.LedgerBackend, cfg.MonthlyLimit)

	// Cache and schedule state follow the ledger's storage
	var (
		oddsCache cache.Cache
		states    scheduler.StateStore
	)
	if redisClient != nil {
		oddsCache = cache.NewRedisCache(redisClient, cfg.CacheTTL)
		states = scheduler.NewRedisStateStore(redisClient)
	} else {
		oddsCache = cache.NewMemoryCache()
		states = scheduler.NewMemoryStateStore()
	}

	// Vendor adapter
	var clientOpts []theoddsapi.Option
	if cfg.OddsAPIBaseURL != "" {
		clientOpts = append(clientOpts, theoddsapi.WithBaseURL(cfg.OddsAPIBaseURL))
	}
	adapter := theoddsapi.NewClient(cfg.OddsAPIKey, clientOpts...)
	fmt.Println("✓ Initialized The Odds API adapter")

	// Sports
	sportRegistry := registry.NewSportRegistry(adapter)
	if err := sportRegistry.Register(nfl.NewModule(nil)); err != nil {
		return fmt.Errorf("register NFL module: %w", err)
	}
	fmt.Printf("✓ Registered %d sport(s)\n", sportRegistry.Count())

	// Update listeners
	detector := arbitrage.NewDetector(arbitrage.Config{MinValueMargin: cfg.MinValueMargin})
	liveHub := hub.NewHub(cfg.CORSAllowedOrigins, log)
	go liveHub.Run(ctx)

	var listeners []contracts.UpdateListener
	if db != nil {
		snapshotWriter := writer.NewWriter(db, redisClient, log)
		if err := snapshotWriter.EnsureSchema(ctx); err != nil {
			return err
		}
		listeners = append(listeners, snapshotWriter)
		fmt.Println("✓ Snapshot writer enabled")
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := notifier.NewPublisher(
			notifier.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopicOpportunities),
			detector, collector, log,
		)
		defer publisher.Close()
		listeners = append(listeners, publisher)
		fmt.Printf("✓ Publishing opportunities to %s\n", cfg.KafkaTopicOpportunities)
	}
	listeners = append(listeners, liveHub)

	// Schedulers
	dailyCap := cfg.DailyCallCap
	if dailyCap == 0 {
		dailyCap = scheduler.DeriveDailyCap(cfg.MonthlyLimit, cfg.UpdateSlotHours)
	}
	schedCfg := scheduler.Config{
		Interval:     cfg.UpdateInterval,
		DailyCallCap: dailyCap,
		SlotHours:    cfg.UpdateSlotHours,
		FetchTimeout: cfg.FetchTimeout,
	}

	var updaters []api.SportUpdater
	for _, sport := range sportRegistry.GetAll() {
		sched, err := scheduler.NewScheduler(
			sport, adapter, usageLedger, oddsCache, states, schedCfg, log,
			scheduler.WithListeners(listeners...),
			scheduler.WithMetrics(collector),
		)
		if err != nil {
			return fmt.Errorf("create scheduler for %s: %w", sport.GetSportKey(), err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler for %s: %w", sport.GetSportKey(), err)
		}
		defer sched.Stop()
		updaters = append(updaters, sched)

		fmt.Printf("  [%s]\n", sport.GetDisplayName())
		fmt.Printf("    Regions: %v\n", sport.GetRegions())
		fmt.Printf("    Markets: %v\n", sport.GetMarkets())
		fmt.Printf("    Interval: %v, daily cap: %d\n", cfg.UpdateInterval, dailyCap)
	}

	// Servers
	metricsSrv := metrics.StartServer(cfg.MetricsPort, prometheus.DefaultGatherer, healthChecks)
	fmt.Printf("✓ Metrics on :%s/metrics\n", cfg.MetricsPort)

	handler := api.NewHandler(
		cfg.ServiceName, sportRegistry.GetAll(), updaters, usageLedger, adapter, detector, log,
	)
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.NewRouter(handler, cfg.CORSAllowedOrigins, liveHub.ServeWS(ctx)),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		fmt.Printf("✓ API listening on :%s\n", cfg.HTTPPort)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	fmt.Println("✓ Pythia started")

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Println("\n✓ Shutting down gracefully...")
	case err := <-serverErrors:
		runErr = fmt.Errorf("api server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api server shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics server shutdown", zap.Error(err))
	}

	fmt.Println("✓ Pythia stopped")
	return runErr
}
