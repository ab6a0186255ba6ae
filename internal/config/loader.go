package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("FABRICSTASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("fabricstash")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".fabricstash"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("ingest.urls", cfg.Ingest.URLs)
	v.SetDefault("ingest.concurrency", cfg.Ingest.Concurrency)
	v.SetDefault("ingest.max_pages", cfg.Ingest.MaxPages)
	v.SetDefault("ingest.politeness_delay", cfg.Ingest.PolitenessDelay)
	v.SetDefault("ingest.batch_timeout", cfg.Ingest.BatchTimeout)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("images.dir", cfg.Images.Dir)
	v.SetDefault("images.max_size_mb", cfg.Images.MaxSizeMB)
	v.SetDefault("images.concurrency", cfg.Images.Concurrency)
	v.SetDefault("images.download_timeout", cfg.Images.DownloadTimeout)

	v.SetDefault("store.type", cfg.Store.Type)
	v.SetDefault("store.uri", cfg.Store.URI)
	v.SetDefault("store.database", cfg.Store.Database)
	v.SetDefault("store.collection", cfg.Store.Collection)

	v.SetDefault("api.port", cfg.API.Port)

	v.SetDefault("schedule.enabled", cfg.Schedule.Enabled)
	v.SetDefault("schedule.cron", cfg.Schedule.Cron)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
