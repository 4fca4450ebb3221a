package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"echowatch/internal/adapters/clickhouse"
	"echowatch/internal/adapters/config"
	"echowatch/internal/adapters/errors/noop"
	"echowatch/internal/adapters/errors/sentry"
	"echowatch/internal/adapters/kafka"
	"echowatch/internal/adapters/postgres"
	"echowatch/internal/adapters/redis"
	"echowatch/internal/adapters/twitter"
	"echowatch/internal/consumers"
	"echowatch/internal/metrics"
	chrepo "echowatch/internal/repository/clickhouse"
	pgrepo "echowatch/internal/repository/postgres"
	redisrepo "echowatch/internal/repository/redis"
	keywordsvc "echowatch/internal/services/keyword"
	"echowatch/internal/services/optimizer"
	postingsvc "echowatch/internal/services/posting"
	quotasvc "echowatch/internal/services/quota"
	cachesvc "echowatch/internal/services/searchcache"
	"echowatch/internal/workers"
	"echowatch/internal/workers/maintenance"
	postingworker "echowatch/internal/workers/posting"
	searchworker "echowatch/internal/workers/search"
	"echowatch/pkg/errors"
	"echowatch/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := initLogger(cfg); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Initialize metrics
	metrics.Init()

	// Initialize database connections
	db := initDatabases(cfg, log)
	defer db.Close()

	// Initialize repositories
	repos := initRepositories(db)

	// Initialize services
	services := initServices(cfg, repos)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the ClickHouse usage event batcher
	repos.UsageEvents.Start(ctx)

	// Initialize and start workers
	scheduler := initWorkers(cfg, services, repos)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// Start the classification consumer
	classificationConsumer := initClassificationConsumer(cfg, services)
	go func() {
		if err := classificationConsumer.Start(ctx); err != nil {
			log.Errorf("Classification consumer error: %v", err)
		}
	}()

	// Start metrics endpoint
	startMetricsServer(cfg, log)

	log.Info("System initialized successfully")

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, scheduler, classificationConsumer, repos, errorTracker, log)
}

// loadConfig loads application configuration from environment
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// initLogger initializes structured logging
func initLogger(cfg *config.Config) error {
	return logger.Init(cfg.App.LogLevel, cfg.App.Env)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// Database holds all database connections
type Database struct {
	Postgres   *postgres.Client
	ClickHouse *clickhouse.Client
	Redis      *redis.Client
}

// Close closes all database connections
func (d *Database) Close() {
	if d.Postgres != nil {
		_ = d.Postgres.Close()
	}
	if d.ClickHouse != nil {
		_ = d.ClickHouse.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}

// initDatabases initializes database connections (PostgreSQL, ClickHouse, Redis)
func initDatabases(cfg *config.Config, log *logger.Logger) *Database {
	log.Info("Initializing databases...")

	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	chClient, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	log.Info("Databases initialized")
	return &Database{
		Postgres:   pgClient,
		ClickHouse: chClient,
		Redis:      redisClient,
	}
}

// Repositories holds all data repositories
type Repositories struct {
	Quota       *pgrepo.QuotaRepository
	Keyword     *pgrepo.KeywordRepository
	Reply       *pgrepo.ReplyRepository
	SearchCache *redisrepo.SearchCacheRepository
	UsageEvents *chrepo.UsageEventRepository
}

// initRepositories initializes data repositories
func initRepositories(db *Database) *Repositories {
	return &Repositories{
		Quota:       pgrepo.NewQuotaRepository(db.Postgres.DB()),
		Keyword:     pgrepo.NewKeywordRepository(db.Postgres.DB()),
		Reply:       pgrepo.NewReplyRepository(db.Postgres.DB()),
		SearchCache: redisrepo.NewSearchCacheRepository(db.Redis),
		UsageEvents: chrepo.NewUsageEventRepository(db.ClickHouse.Conn()),
	}
}

// Services holds all business logic services
type Services struct {
	Quota     *quotasvc.Service
	Tracker   *keywordsvc.Tracker
	Learner   *keywordsvc.Learner
	Cache     *cachesvc.Service
	Optimizer *optimizer.Service
	Twitter   *twitter.Client
}

// initServices initializes business logic services
func initServices(cfg *config.Config, repos *Repositories) *Services {
	quotaService := quotasvc.NewService(repos.Quota, repos.UsageEvents, quotasvc.Config{
		PageSize: cfg.Search.PageSize,
	})

	tracker := keywordsvc.NewTracker(repos.Keyword)

	learnerConfig := keywordsvc.DefaultLearnerConfig()
	learnerConfig.MinimumSampleSize = cfg.Search.MinimumSampleSize
	learner := keywordsvc.NewLearner(repos.Keyword, learnerConfig)

	cacheService := cachesvc.NewService(repos.SearchCache, cachesvc.Config{
		FreshnessWindow: cfg.Search.CacheFreshnessWindow,
	})

	optimizerService := optimizer.NewService(cacheService, optimizer.Config{
		PageSize:               cfg.Search.PageSize,
		TargetTweetsPerKeyword: cfg.Search.TargetTweetsPerKeyword,
	})

	return &Services{
		Quota:     quotaService,
		Tracker:   tracker,
		Learner:   learner,
		Cache:     cacheService,
		Optimizer: optimizerService,
		Twitter:   twitter.NewClient(cfg.Twitter),
	}
}

// initWorkers initializes background workers
func initWorkers(cfg *config.Config, services *Services, repos *Repositories) *workers.Scheduler {
	scheduler := workers.NewScheduler()

	scheduler.RegisterWorker(searchworker.NewWorker(
		services.Twitter,
		services.Quota,
		services.Optimizer,
		services.Learner,
		services.Tracker,
		services.Cache,
		searchworker.Config{
			Keywords:               cfg.Search.Keywords,
			TargetTweetsPerKeyword: cfg.Search.TargetTweetsPerKeyword,
			PageSize:               cfg.Search.PageSize,
		},
		workers.NewBaseWorker("search", cfg.Workers.SearchInterval, cfg.Workers.SearchEnabled),
	))

	controller := postingsvc.NewController(postingsvc.Config{
		MaxConsecutiveFailures: cfg.Posting.MaxConsecutiveFailures,
	})
	scheduler.RegisterWorker(postingworker.NewWorker(
		services.Twitter,
		controller,
		repos.Reply,
		postingworker.Config{BatchSize: cfg.Posting.BatchSize},
		workers.NewBaseWorker("posting", cfg.Workers.PostingInterval, cfg.Workers.PostingEnabled),
	))

	scheduler.RegisterWorker(maintenance.NewWorker(
		services.Cache,
		workers.NewBaseWorker("cache_cleanup", cfg.Workers.CacheCleanupInterval, cfg.Workers.CacheCleanupEnabled),
	))

	return scheduler
}

// initClassificationConsumer initializes the Kafka classification consumer
func initClassificationConsumer(cfg *config.Config, services *Services) *consumers.ClassificationConsumer {
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.ClassificationTopic,
	})

	return consumers.NewClassificationConsumer(consumer, services.Tracker, services.Learner)
}

// startMetricsServer starts the Prometheus metrics endpoint
func startMetricsServer(cfg *config.Config, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
	go func() {
		log.Info("Metrics endpoint listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	scheduler *workers.Scheduler,
	consumer *consumers.ClassificationConsumer,
	repos *Repositories,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown error: %v", err)
	}

	if err := consumer.Close(); err != nil {
		log.Warnf("Failed to close classification consumer: %v", err)
	}

	// Flush buffered analytics before closing connections
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := repos.UsageEvents.Stop(flushCtx); err != nil {
		log.Warnf("Failed to flush usage events: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(flushCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
