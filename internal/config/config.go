// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	DB        DBConfig        `mapstructure:"db"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DiscoveryConfig governs candidate URL discovery.
type DiscoveryConfig struct {
	MaxParallelSources int    `mapstructure:"max_parallel_sources"`
	PerSourceLimit     int    `mapstructure:"per_source_limit"`
	SearchBaseURL      string `mapstructure:"search_base_url"`
	SearchAPIKey       string `mapstructure:"search_api_key"`
	MaxQueries         int    `mapstructure:"max_queries"`
	MaxResultsPerQuery int    `mapstructure:"max_results_per_query"`
	MaxTotalLinks      int    `mapstructure:"max_total_links"`
	DevpostBaseURL     string `mapstructure:"devpost_base_url"`
	DevpostMaxPages    int    `mapstructure:"devpost_max_pages"`
	DevpostPageDelayMs int    `mapstructure:"devpost_page_delay_ms"`
}

// FetchConfig configures the page acquisition fallback chain.
type FetchConfig struct {
	Backends            []string `mapstructure:"backends"`
	TimeoutSeconds      int      `mapstructure:"timeout_seconds"`
	MaxRateLimitRetries int      `mapstructure:"max_rate_limit_retries"`
	RateLimitBaseMs     int      `mapstructure:"rate_limit_base_ms"`
	HeadlessMaxParallel int      `mapstructure:"headless_max_parallel"`
	RemoteBaseURL       string   `mapstructure:"remote_base_url"`
	RemoteAPIKey        string   `mapstructure:"remote_api_key"`
	UserAgent           string   `mapstructure:"user_agent"`
}

// ExtractConfig configures the model-backed extraction service.
type ExtractConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Validation     bool   `mapstructure:"validation"`
}

// PipelineConfig governs the enrichment worker pool.
type PipelineConfig struct {
	Workers      int    `mapstructure:"workers"`
	BatchSize    int    `mapstructure:"batch_size"`
	BatchPauseMs int    `mapstructure:"batch_pause_ms"`
	NotifyTopic  string `mapstructure:"notify_topic"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	URLsTable    string `mapstructure:"urls_table"`
	EventsTable  string `mapstructure:"events_table"`
	ActionsTable string `mapstructure:"actions_table"`
}

// SnapshotConfig sets where raw fetched pages are archived. An empty bucket
// disables archiving.
type SnapshotConfig struct {
	GCSBucket   string `mapstructure:"gcs_bucket"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EVENTSCOUT")
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

	// Publishing is usually configured through the pubsub block alone; the
	// pipeline topic only needs setting when it should differ.
	if cfg.Pipeline.NotifyTopic == "" {
		cfg.Pipeline.NotifyTopic = cfg.PubSub.TopicName
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("discovery.max_parallel_sources", 3)
	v.SetDefault("discovery.per_source_limit", 0)
	v.SetDefault("discovery.max_queries", 10)
	v.SetDefault("discovery.max_results_per_query", 5)
	v.SetDefault("discovery.max_total_links", 20)
	v.SetDefault("discovery.devpost_base_url", "https://devpost.com")
	v.SetDefault("discovery.devpost_max_pages", 3)
	v.SetDefault("discovery.devpost_page_delay_ms", 7000)
	v.SetDefault("fetch.backends", []string{"colly", "chromedp"})
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_rate_limit_retries", 3)
	v.SetDefault("fetch.rate_limit_base_ms", 1000)
	v.SetDefault("fetch.headless_max_parallel", 2)
	v.SetDefault("fetch.user_agent", "eventscout-bot/0.1")
	v.SetDefault("extract.model", "gpt-4o-mini")
	v.SetDefault("extract.timeout_seconds", 60)
	v.SetDefault("extract.validation", true)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.batch_pause_ms", 500)
	v.SetDefault("db.urls_table", "collected_urls")
	v.SetDefault("db.events_table", "events")
	v.SetDefault("db.actions_table", "event_actions")
	v.SetDefault("snapshot.content_type", "text/html; charset=utf-8")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if len(c.Fetch.Backends) == 0 {
		return fmt.Errorf("fetch.backends must name at least one backend")
	}
	for _, b := range c.Fetch.Backends {
		switch b {
		case "colly", "chromedp", "remote":
		default:
			return fmt.Errorf("fetch.backends contains unknown backend %q", b)
		}
	}
	if contains(c.Fetch.Backends, "remote") && c.Fetch.RemoteBaseURL == "" {
		return fmt.Errorf("fetch.remote_base_url must be set when the remote backend is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when a topic is configured")
	}
	return nil
}

// FetchTimeout converts the fetch timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BatchPause converts the pipeline pause config into a duration.
func (c Config) BatchPause() time.Duration {
	return time.Duration(c.Pipeline.BatchPauseMs) * time.Millisecond
}

// DevpostPageDelay converts the pagination politeness config into a duration.
func (c Config) DevpostPageDelay() time.Duration {
	return time.Duration(c.Discovery.DevpostPageDelayMs) * time.Millisecond
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
