package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Crawler.MaxTotal < 1 {
		return fmt.Errorf("crawler.max_total must be >= 1, got %d", cfg.Crawler.MaxTotal)
	}
	if cfg.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0, got %d", cfg.Crawler.MaxDepth)
	}
	if cfg.Crawler.TimeoutGet <= 0 {
		return fmt.Errorf("crawler.timeout_get must be > 0")
	}
	if cfg.Crawler.Concurrency < 1 {
		return fmt.Errorf("crawler.concurrency must be >= 1, got %d", cfg.Crawler.Concurrency)
	}
	if cfg.Crawler.Concurrency > 256 {
		return fmt.Errorf("crawler.concurrency must be <= 256, got %d", cfg.Crawler.Concurrency)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if cfg.Storage.Backend != "mongo" && cfg.Storage.Backend != "memory" {
		return fmt.Errorf("storage.backend must be 'mongo' or 'memory', got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.ExportType != "jsonl" && cfg.Storage.ExportType != "csv" {
		return fmt.Errorf("storage.export_type must be 'jsonl' or 'csv', got %q", cfg.Storage.ExportType)
	}

	if cfg.Pipeline.BatchLimit < 1 {
		return fmt.Errorf("pipeline.batch_limit must be >= 1, got %d", cfg.Pipeline.BatchLimit)
	}
	if cfg.Pipeline.SummaryLen < 1 {
		return fmt.Errorf("pipeline.summary_len must be >= 1, got %d", cfg.Pipeline.SummaryLen)
	}
	if cfg.Pipeline.VolatilityDays < 1 {
		return fmt.Errorf("pipeline.volatility_days must be >= 1, got %d", cfg.Pipeline.VolatilityDays)
	}

	if cfg.Rcmd.TopN < 1 {
		return fmt.Errorf("rcmd.top_n must be >= 1, got %d", cfg.Rcmd.TopN)
	}
	if cfg.Rcmd.PortfolioSize < 1 {
		return fmt.Errorf("rcmd.portfolio_size must be >= 1, got %d", cfg.Rcmd.PortfolioSize)
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

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
