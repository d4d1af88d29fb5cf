// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/korrarahuldev/company-crawler/internal/jobstore/postgres"
	"github.com/korrarahuldev/company-crawler/internal/publisher/pubsub"
	"github.com/korrarahuldev/company-crawler/internal/queue/natsqueue"
	"github.com/korrarahuldev/company-crawler/internal/scrape"
	"github.com/korrarahuldev/company-crawler/internal/storage/local"
)

// Provider names accepted in the provider fields below.
const (
	ProviderNATS     = "nats"
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Queue     QueueConfig     `mapstructure:"queue"`
	JobStore  JobStoreConfig  `mapstructure:"jobstore"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Scrape    scrape.Config   `mapstructure:"scrape"`
	Tier1     Tier1Config     `mapstructure:"tier1"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Browser   BrowserConfig   `mapstructure:"browser"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// QueueConfig selects the queue transport and names the logical queues.
type QueueConfig struct {
	Provider      string           `mapstructure:"provider"`
	PrimaryQueue  string           `mapstructure:"primary_queue"`
	FallbackQueue string           `mapstructure:"fallback_queue"`
	NATS          natsqueue.Config `mapstructure:"nats"`
	Visibility    time.Duration    `mapstructure:"visibility"`
}

// JobStoreConfig selects the job store backend.
type JobStoreConfig struct {
	Provider string          `mapstructure:"provider"`
	Postgres postgres.Config `mapstructure:"postgres"`
}

// StorageConfig selects where crawl artifacts are written.
type StorageConfig struct {
	Provider  string       `mapstructure:"provider"`
	Local     local.Config `mapstructure:"local"`
	GCSBucket string       `mapstructure:"gcs_bucket"`
}

// PublisherConfig selects the completion-event publisher.
type PublisherConfig struct {
	Provider string        `mapstructure:"provider"`
	PubSub   pubsub.Config `mapstructure:"pubsub"`
}

// Tier1Config sizes the scrape-service worker pool.
type Tier1Config struct {
	Concurrency int `mapstructure:"concurrency"`
}

// CrawlerConfig governs the fallback traversal engine.
type CrawlerConfig struct {
	MaxPages         int      `mapstructure:"max_pages"`
	RespectRobots    bool     `mapstructure:"respect_robots"`
	UserAgent        string   `mapstructure:"user_agent"`
	ExcludedPatterns []string `mapstructure:"excluded_patterns"`
	QPS              float64  `mapstructure:"qps"`
}

// BrowserConfig selects and tunes the rendering backend.
type BrowserConfig struct {
	Backend           string        `mapstructure:"backend"`
	Headless          bool          `mapstructure:"headless"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleWait        time.Duration `mapstructure:"settle_wait"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("queue.provider", ProviderMemory)
	v.SetDefault("queue.primary_queue", "company_scrape_queue")
	v.SetDefault("queue.fallback_queue", "company_crawl_queue")
	v.SetDefault("queue.visibility", 5*time.Minute)
	v.SetDefault("queue.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("jobstore.provider", ProviderMemory)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.local.base_dir", "scraped_data")
	v.SetDefault("publisher.provider", ProviderMemory)
	v.SetDefault("scrape.page_limit", 10)
	v.SetDefault("scrape.timeout", 2*time.Minute)
	v.SetDefault("scrape.exclude_paths", []string{"/news/", "/Blog*", "/blog*", "/tag/", "/category/"})
	v.SetDefault("tier1.concurrency", 5)
	v.SetDefault("crawler.max_pages", 10)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.user_agent", "company-crawler-bot/0.1")
	v.SetDefault("crawler.qps", 1.0)
	v.SetDefault("browser.backend", "chromedp")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.settle_wait", 2*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Queue.Provider {
	case ProviderNATS, ProviderMemory:
	default:
		return fmt.Errorf("queue.provider must be %q or %q", ProviderNATS, ProviderMemory)
	}
	if c.Queue.PrimaryQueue == "" || c.Queue.FallbackQueue == "" {
		return fmt.Errorf("queue.primary_queue and queue.fallback_queue are required")
	}
	if c.Queue.PrimaryQueue == c.Queue.FallbackQueue {
		return fmt.Errorf("queue.primary_queue and queue.fallback_queue must differ")
	}
	switch c.JobStore.Provider {
	case ProviderPostgres:
		if c.JobStore.Postgres.DSN == "" {
			return fmt.Errorf("jobstore.postgres.dsn is required when jobstore.provider is %q", ProviderPostgres)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("jobstore.provider must be %q or %q", ProviderPostgres, ProviderMemory)
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Storage.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required when storage.provider is %q", ProviderLocal)
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required when storage.provider is %q", ProviderGCS)
		}
	default:
		return fmt.Errorf("storage.provider must be %q or %q", ProviderLocal, ProviderGCS)
	}
	switch c.Publisher.Provider {
	case ProviderPubSub:
		if c.Publisher.PubSub.ProjectID == "" || c.Publisher.PubSub.Topic == "" {
			return fmt.Errorf("publisher.pubsub.project_id and publisher.pubsub.topic are required when publisher.provider is %q", ProviderPubSub)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("publisher.provider must be %q or %q", ProviderPubSub, ProviderMemory)
	}
	if c.Tier1.Concurrency <= 0 {
		return fmt.Errorf("tier1.concurrency must be > 0")
	}
	if c.Crawler.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	return nil
}
