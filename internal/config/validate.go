package config

import (
	"fmt"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest.concurrency must be >= 1, got %d", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.Concurrency > 64 {
		return fmt.Errorf("ingest.concurrency must be <= 64, got %d", cfg.Ingest.Concurrency)
	}
	if cfg.Ingest.MaxPages < 1 {
		return fmt.Errorf("ingest.max_pages must be >= 1, got %d", cfg.Ingest.MaxPages)
	}
	if cfg.Ingest.PolitenessDelay < 0 {
		return fmt.Errorf("ingest.politeness_delay must be >= 0")
	}
	if cfg.Ingest.BatchTimeout <= 0 {
		return fmt.Errorf("ingest.batch_timeout must be > 0")
	}

	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}

	if cfg.Images.Dir == "" {
		return fmt.Errorf("images.dir must not be empty")
	}
	if cfg.Images.Concurrency < 1 {
		return fmt.Errorf("images.concurrency must be >= 1, got %d", cfg.Images.Concurrency)
	}

	if cfg.Store.Type != "mongo" && cfg.Store.Type != "memory" {
		return fmt.Errorf("store.type must be 'mongo' or 'memory', got %q", cfg.Store.Type)
	}
	if cfg.Store.Type == "mongo" && cfg.Store.URI == "" {
		return fmt.Errorf("store.uri must be set for the mongo backend")
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
