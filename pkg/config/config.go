// Package config loads and validates crawl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Spider   SpiderConfig   `mapstructure:"spider"`
	Server   ServerConfig   `mapstructure:"server"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SpiderConfig governs scheduling and retry behavior of a crawl.
type SpiderConfig struct {
	ConcurrentRequests          int                       `mapstructure:"concurrent_requests"`
	ConcurrentRequestsPerDomain int                       `mapstructure:"concurrent_requests_per_domain"`
	DownloadDelay               time.Duration             `mapstructure:"download_delay"`
	DomainDelay                 map[string]time.Duration  `mapstructure:"domain_delay"`
	MaxBlockedRetries           int                       `mapstructure:"max_blocked_retries"`
	RetryPriorityPenalty        int                       `mapstructure:"retry_priority_penalty"`
	CrawlStateDir               string                    `mapstructure:"crawl_state_dir"`
	CheckpointEvery             int                       `mapstructure:"checkpoint_every"`
	KeepCheckpoint              bool                      `mapstructure:"keep_checkpoint"`
	DeadlineSeconds             int                       `mapstructure:"deadline_seconds"`
	UseAcceleratedEventLoop     bool                      `mapstructure:"use_accelerated_event_loop"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the plain HTTP fetch sessions.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the browser fetch sessions.
type HeadlessConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// StorageConfig sets the blob destination for item export dumps.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// DBConfig controls the relational checkpoint store; an empty DSN selects
// the file store under spider.crawl_state_dir instead.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PoolMaxConns converts the configured connection cap into the int32 the
// pgx pool settings expect.
func (d DBConfig) PoolMaxConns() int32 {
	return int32(d.MaxConns)
}

// PubSubConfig holds metadata for streaming kept items.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. Environment variables use the
// SPINDLE_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPINDLE")
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
	v.SetDefault("spider.concurrent_requests", 4)
	v.SetDefault("spider.concurrent_requests_per_domain", 0)
	v.SetDefault("spider.download_delay", "0s")
	v.SetDefault("spider.max_blocked_retries", 3)
	v.SetDefault("spider.retry_priority_penalty", 0)
	v.SetDefault("spider.checkpoint_every", 0)
	v.SetDefault("spider.keep_checkpoint", false)
	v.SetDefault("spider.use_accelerated_event_loop", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.user_agent", "spindle/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("db.table", "checkpoints")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Spider.ConcurrentRequests <= 0 {
		return fmt.Errorf("spider.concurrent_requests must be > 0")
	}
	if c.Spider.ConcurrentRequestsPerDomain < 0 {
		return fmt.Errorf("spider.concurrent_requests_per_domain must be >= 0")
	}
	if c.Spider.MaxBlockedRetries < 0 {
		return fmt.Errorf("spider.max_blocked_retries must be >= 0")
	}
	if c.Spider.DownloadDelay < 0 {
		return fmt.Errorf("spider.download_delay must be >= 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	return nil
}

// Deadline converts the configured deadline into a duration; 0 disables it.
func (c Config) Deadline() time.Duration {
	return time.Duration(c.Spider.DeadlineSeconds) * time.Second
}
