package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for fabricstash.
type Config struct {
	Ingest   IngestConfig   `mapstructure:"ingest"   yaml:"ingest"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Images   ImagesConfig   `mapstructure:"images"   yaml:"images"`
	Store    StoreConfig    `mapstructure:"store"    yaml:"store"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// IngestConfig controls the ingestion orchestrator.
type IngestConfig struct {
	// URLs is the configured list of URLs for scheduled full runs.
	URLs []string `mapstructure:"urls" yaml:"urls"`

	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	MaxPages        int           `mapstructure:"max_pages"        yaml:"max_pages"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"    yaml:"batch_timeout"`
}

// FetcherConfig controls the HTTP fetcher.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
}

// ImagesConfig controls the image store.
type ImagesConfig struct {
	Dir             string        `mapstructure:"dir"              yaml:"dir"`
	MaxSizeMB       int64         `mapstructure:"max_size_mb"      yaml:"max_size_mb"`
	Concurrency     int           `mapstructure:"concurrency"      yaml:"concurrency"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout" yaml:"download_timeout"`
}

// StoreConfig controls the catalog record store.
type StoreConfig struct {
	// Type selects the backend: "mongo" or "memory".
	Type       string `mapstructure:"type"       yaml:"type"`
	URI        string `mapstructure:"uri"        yaml:"uri"`
	Database   string `mapstructure:"database"   yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// APIConfig controls the REST API server.
type APIConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// ScheduleConfig controls the daily ingestion run.
type ScheduleConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Cron is a standard 5-field cron expression. The default fires
	// daily at 02:00.
	Cron string `mapstructure:"cron" yaml:"cron"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			Concurrency:     4,
			MaxPages:        100,
			PolitenessDelay: 1 * time.Second,
			BatchTimeout:    30 * time.Minute,
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  30 * time.Second,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Images: ImagesConfig{
			Dir:             "./static/images",
			MaxSizeMB:       20,
			Concurrency:     4,
			DownloadTimeout: 60 * time.Second,
		},
		Store: StoreConfig{
			Type:       "mongo",
			URI:        "mongodb://localhost:27017",
			Database:   "fabricstash",
			Collection: "fabrics",
		},
		API: APIConfig{
			Port: 8000,
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Cron:    "0 2 * * *",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
