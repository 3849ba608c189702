// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/quote-harvester/internal/discovery"
	"github.com/JakeFAU/quote-harvester/internal/extract"
)

// EnvPrefix is prepended to every environment override, e.g. HARVESTER_HTTP_TIMEOUT_SECONDS.
const EnvPrefix = "HARVESTER"

// Archive providers.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveGCS   = "gcs"
)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Store    StoreConfig    `mapstructure:"store"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig names the remote collection.
type SourceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	QuotePath string `mapstructure:"quote_path"`
	UserAgent string `mapstructure:"user_agent"`
}

// HTTPConfig configures the per-fetch timeout.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// HarvestConfig sizes the worker pool. Zero means runtime.NumCPU().
type HarvestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// ExtractConfig holds the selectors and date format of the quote markup.
type ExtractConfig struct {
	Body       string `mapstructure:"body"`
	Date       string `mapstructure:"date"`
	Likes      string `mapstructure:"likes"`
	Permalink  string `mapstructure:"permalink"`
	DateLayout string `mapstructure:"date_layout"`
	Timezone   string `mapstructure:"timezone"`
}

// StoreConfig tunes the Postgres pool; SQLite ignores it.
type StoreConfig struct {
	MaxConns int32  `mapstructure:"max_conns"`
	Table    string `mapstructure:"table"`
}

// ArchiveConfig selects where raw pages are kept.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig holds the Pub/Sub topic run summaries are published to.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// MetricsConfig enables the /metrics and /healthz listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// ProgressConfig toggles the terminal progress line.
type ProgressConfig struct {
	Terminal bool `mapstructure:"terminal"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
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

// Every key gets a default, even an empty one, so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("source.base_url", "https://bash.im")
	v.SetDefault("source.quote_path", "/quote/%d")
	v.SetDefault("source.user_agent", "quote-harvester/1.0")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("harvest.concurrency", 0)
	v.SetDefault("extract.body", extract.DefaultBodySelector)
	v.SetDefault("extract.date", extract.DefaultDateSelector)
	v.SetDefault("extract.likes", extract.DefaultLikesSelector)
	v.SetDefault("extract.permalink", discovery.DefaultPermalinkSelector)
	v.SetDefault("extract.date_layout", extract.DefaultDateLayout)
	v.SetDefault("extract.timezone", "Europe/Moscow")
	v.SetDefault("store.max_conns", 0)
	v.SetDefault("store.table", "quote")
	v.SetDefault("archive.provider", ArchiveNone)
	v.SetDefault("archive.base_dir", "")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic_id", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("progress.terminal", true)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("source.base_url must be an absolute URL, got %q", c.Source.BaseURL)
	}
	if strings.Count(c.Source.QuotePath, "%d") != 1 {
		return fmt.Errorf("source.quote_path must contain exactly one %%d, got %q", c.Source.QuotePath)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Harvest.Concurrency < 0 {
		return fmt.Errorf("harvest.concurrency must be >= 0")
	}
	if c.Store.MaxConns < 0 {
		return fmt.Errorf("store.max_conns must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Archive.Provider {
	case ArchiveNone, "":
	case ArchiveLocal:
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.provider is local")
		}
	case ArchiveGCS:
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider must be one of none, local, gcs; got %q", c.Archive.Provider)
	}
	if (c.Notify.ProjectID == "") != (c.Notify.TopicID == "") {
		return fmt.Errorf("notify.project_id and notify.topic_id must be set together")
	}
	return nil
}

// Timeout converts http.timeout_seconds into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Location resolves extract.timezone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Extract.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Extract.Timezone)
	if err != nil {
		return nil, fmt.Errorf("extract.timezone %q: %w", c.Extract.Timezone, err)
	}
	return loc, nil
}

// NotifyEnabled reports whether run summaries should be published.
func (c Config) NotifyEnabled() bool {
	return c.Notify.ProjectID != "" && c.Notify.TopicID != ""
}
