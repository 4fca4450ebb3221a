package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"echowatch/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Twitter       TwitterConfig
	Search        SearchConfig
	Posting       PostingConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"echowatch"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	MetricsPort int    `envconfig:"METRICS_PORT" default:"9090"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"echowatch"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers             []string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID             string   `envconfig:"KAFKA_GROUP_ID" default:"echowatch"`
	ClassificationTopic string   `envconfig:"KAFKA_CLASSIFICATION_TOPIC" default:"tweets.classified"`
}

type TwitterConfig struct {
	BearerToken       string `envconfig:"TWITTER_BEARER_TOKEN" required:"true"`
	BaseURL           string `envconfig:"TWITTER_BASE_URL" default:"https://api.twitter.com/2"`
	RequestsPerMinute int    `envconfig:"TWITTER_REQUESTS_PER_MINUTE" default:"30"`
}

// SearchConfig controls the quota ledger, cache, and planner.
// MonthlyQuotaLimit is the provider's hard monthly cap on search API calls.
type SearchConfig struct {
	MonthlyQuotaLimit      int           `envconfig:"SEARCH_MONTHLY_QUOTA_LIMIT" default:"10000"`
	PageSize               int           `envconfig:"SEARCH_PAGE_SIZE" default:"100"`
	TargetTweetsPerKeyword int           `envconfig:"SEARCH_TARGET_TWEETS_PER_KEYWORD" default:"100"`
	CacheFreshnessWindow   time.Duration `envconfig:"SEARCH_CACHE_FRESHNESS_WINDOW" default:"96h"`
	MinimumSampleSize      int           `envconfig:"SEARCH_MINIMUM_SAMPLE_SIZE" default:"5"`
	Keywords               []string      `envconfig:"SEARCH_KEYWORDS"`
}

type PostingConfig struct {
	MaxConsecutiveFailures int `envconfig:"POSTING_MAX_CONSECUTIVE_FAILURES" default:"10"`
	BatchSize              int `envconfig:"POSTING_BATCH_SIZE" default:"50"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig contains intervals for the background workers.
// Search runs infrequently because every uncached keyword costs quota;
// posting drains the moderated queue more often.
type WorkerConfig struct {
	SearchInterval       time.Duration `envconfig:"WORKER_SEARCH_INTERVAL" default:"6h"`
	SearchEnabled        bool          `envconfig:"WORKER_SEARCH_ENABLED" default:"true"`
	PostingInterval      time.Duration `envconfig:"WORKER_POSTING_INTERVAL" default:"15m"`
	PostingEnabled       bool          `envconfig:"WORKER_POSTING_ENABLED" default:"true"`
	CacheCleanupInterval time.Duration `envconfig:"WORKER_CACHE_CLEANUP_INTERVAL" default:"12h"`
	CacheCleanupEnabled  bool          `envconfig:"WORKER_CACHE_CLEANUP_ENABLED" default:"true"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Search.MonthlyQuotaLimit <= 0 {
		return errors.NewValidationError("SEARCH_MONTHLY_QUOTA_LIMIT", "must be positive", c.Search.MonthlyQuotaLimit)
	}
	if c.Search.PageSize <= 0 {
		return errors.NewValidationError("SEARCH_PAGE_SIZE", "must be positive", c.Search.PageSize)
	}
	if c.Posting.MaxConsecutiveFailures <= 0 {
		return errors.NewValidationError("POSTING_MAX_CONSECUTIVE_FAILURES", "must be positive", c.Posting.MaxConsecutiveFailures)
	}
	return nil
}
