package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for MarketPulse.
type Config struct {
	Crawler    CrawlerConfig    `mapstructure:"crawler"    yaml:"crawler"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Feeds      FeedsConfig      `mapstructure:"feeds"      yaml:"feeds"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"   yaml:"pipeline"`
	Rcmd       RcmdConfig       `mapstructure:"rcmd"       yaml:"rcmd"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// CrawlerConfig controls the BFS article discovery crawl.
type CrawlerConfig struct {
	MaxTotal       int           `mapstructure:"max_total"        yaml:"max_total"`
	MaxDepth       int           `mapstructure:"max_depth"        yaml:"max_depth"`
	SameDomainOnly bool          `mapstructure:"same_domain_only" yaml:"same_domain_only"`
	TimeoutGet     time.Duration `mapstructure:"timeout_get"      yaml:"timeout_get"`
	RespectRobots  bool          `mapstructure:"respect_robots"   yaml:"respect_robots"`
	Concurrency    int           `mapstructure:"concurrency"      yaml:"concurrency"`
	UserAgents     []string      `mapstructure:"user_agents"      yaml:"user_agents"`
}

// ClassifierConfig feeds the URL classifier heuristics.
type ClassifierConfig struct {
	CategorySlugs []string `mapstructure:"category_slugs" yaml:"category_slugs"`
	IgnoreSlugs   []string `mapstructure:"ignore_slugs"   yaml:"ignore_slugs"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"` // http or browser
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// FeedsConfig lists RSS/Atom feeds used to seed the crawl.
type FeedsConfig struct {
	URLs    []string      `mapstructure:"urls"    yaml:"urls"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StorageConfig controls the record store and export output.
type StorageConfig struct {
	Backend    string `mapstructure:"backend"     yaml:"backend"` // mongo or memory
	MongoURI   string `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_db"    yaml:"mongo_db"`
	OutputPath string `mapstructure:"output_path" yaml:"output_path"`
	ExportType string `mapstructure:"export_type" yaml:"export_type"` // jsonl or csv
}

// PipelineConfig controls the staged IN→PROC→CALC batch processors.
type PipelineConfig struct {
	BatchLimit     int `mapstructure:"batch_limit"     yaml:"batch_limit"`
	SummaryLen     int `mapstructure:"summary_len"     yaml:"summary_len"`
	AnalysisPrefix int `mapstructure:"analysis_prefix" yaml:"analysis_prefix"`
	VolatilityDays int `mapstructure:"volatility_days" yaml:"volatility_days"`
}

// RcmdConfig controls the recommendation generator batch runs.
type RcmdConfig struct {
	TopN          int `mapstructure:"top_n"          yaml:"top_n"`
	PortfolioSize int `mapstructure:"portfolio_size" yaml:"portfolio_size"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			MaxTotal:       200,
			MaxDepth:       3,
			SameDomainOnly: true,
			TimeoutGet:     15 * time.Second,
			RespectRobots:  false,
			Concurrency:    8,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Classifier: ClassifierConfig{
			CategorySlugs: []string{
				"news", "business", "markets", "economy", "finance", "stocks",
				"investing", "tech", "world", "politics", "opinion", "latest",
			},
			IgnoreSlugs: []string{"en", "ko", "us", "kr", "jp", "www", "amp", "global"},
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Feeds: FeedsConfig{
			Timeout: 20 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    "mongo",
			MongoURI:   "mongodb://localhost:27017",
			MongoDB:    "marketpulse",
			OutputPath: "./output",
			ExportType: "jsonl",
		},
		Pipeline: PipelineConfig{
			BatchLimit:     100,
			SummaryLen:     200,
			AnalysisPrefix: 500,
			VolatilityDays: 5,
		},
		Rcmd: RcmdConfig{
			TopN:          10,
			PortfolioSize: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
