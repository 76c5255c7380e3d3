package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max_total", func(c *Config) { c.Crawler.MaxTotal = 0 }},
		{"negative max_depth", func(c *Config) { c.Crawler.MaxDepth = -1 }},
		{"zero concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }},
		{"excessive concurrency", func(c *Config) { c.Crawler.Concurrency = 1000 }},
		{"unknown fetcher type", func(c *Config) { c.Fetcher.Type = "carrier-pigeon" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"unknown export type", func(c *Config) { c.Storage.ExportType = "xml" }},
		{"zero batch limit", func(c *Config) { c.Pipeline.BatchLimit = 0 }},
		{"zero volatility window", func(c *Config) { c.Pipeline.VolatilityDays = 0 }},
		{"zero portfolio size", func(c *Config) { c.Rcmd.PortfolioSize = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://news.example.com/markets"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, bad := range []string{"ftp://example.com", "https://", "not a url at all ://"} {
		if err := ValidateURL(bad); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", bad)
		}
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawler.MaxTotal != 200 || cfg.Pipeline.SummaryLen != 200 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketpulse.yaml")
	content := `crawler:
  max_total: 50
  max_depth: 1
storage:
  backend: memory
pipeline:
  batch_limit: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Crawler.MaxTotal != 50 || cfg.Crawler.MaxDepth != 1 {
		t.Errorf("crawler overrides not applied: %+v", cfg.Crawler)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Storage.Backend)
	}
	if cfg.Pipeline.BatchLimit != 25 {
		t.Errorf("batch_limit = %d", cfg.Pipeline.BatchLimit)
	}
	// Untouched keys keep their defaults
	if cfg.Pipeline.SummaryLen != 200 {
		t.Errorf("summary_len = %d, want default 200", cfg.Pipeline.SummaryLen)
	}
}
