package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketpulse/marketpulse/internal/analysis"
	"github.com/marketpulse/marketpulse/internal/classify"
	"github.com/marketpulse/marketpulse/internal/config"
	"github.com/marketpulse/marketpulse/internal/crawl"
	"github.com/marketpulse/marketpulse/internal/feeds"
	"github.com/marketpulse/marketpulse/internal/fetcher"
	"github.com/marketpulse/marketpulse/internal/observability"
	"github.com/marketpulse/marketpulse/internal/parser"
	"github.com/marketpulse/marketpulse/internal/pipeline"
	"github.com/marketpulse/marketpulse/internal/store"
	"github.com/marketpulse/marketpulse/internal/types"
)

var (
	cfgFile  string
	verbose  bool
	baseYmd  string
	maxTotal int
	depth    int
	backend  string
	useFeeds bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "marketpulse",
		Short: "MarketPulse: financial news aggregation and analysis",
		Long: `MarketPulse crawls financial news sites, classifies article URLs,
and runs a staged analysis pipeline over the collected articles:

  crawl      discover and ingest article pages from seed URLs
  process    enrich raw articles with sentiment, tickers, and summaries
  calc       derive per-stock metrics from processed articles
  recommend  generate ranked news, stock, and portfolio recommendations
  run        all of the above, in order`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&baseYmd, "date", time.Now().Format(types.BaseYmdLayout), "business date (YYYYMMDD)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: mongo or memory")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(discoverCmd())
	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(calcCmd())
	rootCmd.AddCommand(recommendCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl seed URLs and ingest article pages",
		Args:  cobra.ArbitraryArgs,
		RunE:  runCrawl,
	}
	cmd.Flags().IntVarP(&maxTotal, "max-total", "m", 0, "stop after this many articles (0 = config default)")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum link depth (-1 = config default)")
	cmd.Flags().BoolVar(&useFeeds, "feeds", false, "also seed from configured RSS/Atom feeds")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seeds, err := collectSeeds(cmd.Context(), cfg, logger, args)
	if err != nil {
		return err
	}

	st, err := newStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, stats, err := crawlAndIngest(ctx, cfg, st, logger, seeds)
	if err != nil {
		return err
	}

	fmt.Printf("Crawl complete: %d stored, %d duplicates, %d failed\n",
		summary.Processed, summary.Skipped, summary.Failed)
	fmt.Printf("Pages fetched: %v, fetch failures: %v\n",
		stats["pages_fetched"], stats["fetch_failures"])
	return nil
}

// discoverCmd creates the "discover" subcommand, a dry run that prints
// classified article URLs without storing anything.
func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover [seed-url...]",
		Short: "List article URLs reachable from the seeds without ingesting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			for _, rawURL := range args {
				if err := config.ValidateURL(rawURL); err != nil {
					return fmt.Errorf("invalid URL %q: %w", rawURL, err)
				}
			}

			f, err := fetcher.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create fetcher: %w", err)
			}
			defer f.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			classifier := classify.New(classify.NewPolicy(cfg.Classifier.CategorySlugs, cfg.Classifier.IgnoreSlugs))
			crawler := crawl.NewCrawler(cfg.Crawler, classifier, f, logger)
			for articleURL, d := range crawler.Discover(ctx, args) {
				fmt.Printf("%d\t%s\n", d, articleURL)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxTotal, "max-total", "m", 0, "stop after this many articles (0 = config default)")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum link depth (-1 = config default)")
	return cmd
}

// processCmd creates the "process" subcommand.
func processCmd() *cobra.Command {
	var newsID string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Enrich unprocessed articles with sentiment, tickers, and summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := newStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			proc := pipeline.NewArticleProcessor(st, analysis.NewSentimentAnalyzer(), analysis.NewTickerExtractor(), &cfg.Pipeline, logger)

			var summary types.BatchSummary
			if newsID != "" {
				var procID string
				procID, summary, err = proc.ProcessByID(cmd.Context(), newsID)
				if err != nil {
					return err
				}
				fmt.Printf("proc_id: %s\n", procID)
			} else {
				summary, err = proc.ProcessUnprocessed(cmd.Context())
				if err != nil {
					return err
				}
			}
			printSummary("Process", summary)
			return nil
		},
	}
	cmd.Flags().StringVar(&newsID, "news-id", "", "process a single article by news_id")
	return cmd
}

// calcCmd creates the "calc" subcommand.
func calcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calc",
		Short: "Derive per-stock metrics from processed articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := newStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			summary, err := pipeline.NewCalcProcessor(st, &cfg.Pipeline, logger).BatchProcess(cmd.Context())
			if err != nil {
				return err
			}
			printSummary("Calc", summary)
			return nil
		},
	}
}

// recommendCmd creates the "recommend" subcommand.
func recommendCmd() *cobra.Command {
	var export bool
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate ranked recommendations from the day's metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := newStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			summary, err := pipeline.NewRcmdGenerator(st, &cfg.Rcmd, logger).GenerateAll(cmd.Context(), baseYmd)
			if err != nil {
				return err
			}
			printSummary("Recommend", summary)

			if export && summary.Processed > 0 {
				path, err := exportRcmds(cmd.Context(), cfg, st)
				if err != nil {
					return err
				}
				fmt.Printf("Exported to %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&export, "export", false, "export results to the configured output path")
	return cmd
}

// runCmd creates the "run" subcommand: all four stages in order.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [seed-url...]",
		Short: "Run the full pipeline: crawl, process, calc, recommend",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			seeds, err := collectSeeds(cmd.Context(), cfg, logger, args)
			if err != nil {
				return err
			}

			st, err := newStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close(context.Background())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var metrics *observability.Metrics
			if cfg.Metrics.Enabled {
				metrics = observability.NewMetrics(logger)
				if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
					logger.Warn("metrics server failed to start", "error", err)
				}
			}

			start := time.Now()

			ingestSum, _, err := crawlAndIngest(ctx, cfg, st, logger, seeds)
			if err != nil {
				return err
			}
			printSummary("Ingest", ingestSum)

			proc := pipeline.NewArticleProcessor(st, analysis.NewSentimentAnalyzer(), analysis.NewTickerExtractor(), &cfg.Pipeline, logger)
			procSum, err := proc.ProcessUnprocessed(ctx)
			if err != nil {
				return err
			}
			printSummary("Process", procSum)

			calcSum, err := pipeline.NewCalcProcessor(st, &cfg.Pipeline, logger).BatchProcess(ctx)
			if err != nil {
				return err
			}
			printSummary("Calc", calcSum)

			rcmdSum, err := pipeline.NewRcmdGenerator(st, &cfg.Rcmd, logger).GenerateAll(ctx, baseYmd)
			if err != nil {
				return err
			}
			printSummary("Recommend", rcmdSum)

			if metrics != nil {
				metrics.ArticlesIngested.Add(int64(ingestSum.Processed))
				metrics.ObserveBatch(procSum.Processed, procSum.Skipped, procSum.Failed, calcSum.MetricsCreated)
				metrics.RcmdsGenerated.Add(int64(rcmdSum.Processed))
			}

			fmt.Printf("\nPipeline complete in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().IntVarP(&maxTotal, "max-total", "m", 0, "stop after this many articles (0 = config default)")
	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "maximum link depth (-1 = config default)")
	cmd.Flags().BoolVar(&useFeeds, "feeds", false, "also seed from configured RSS/Atom feeds")
	return cmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("MarketPulse %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("Crawler:\n")
			fmt.Printf("  Max Articles:      %d\n", cfg.Crawler.MaxTotal)
			fmt.Printf("  Max Depth:         %d\n", cfg.Crawler.MaxDepth)
			fmt.Printf("  Same Domain Only:  %v\n", cfg.Crawler.SameDomainOnly)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Crawler.TimeoutGet)
			fmt.Printf("  Respect robots.txt: %v\n", cfg.Crawler.RespectRobots)
			fmt.Printf("  Concurrency:       %d\n", cfg.Crawler.Concurrency)
			fmt.Printf("\nClassifier:\n")
			fmt.Printf("  Category Slugs:    %s\n", strings.Join(cfg.Classifier.CategorySlugs, ", "))
			fmt.Printf("  Ignored Slugs:     %s\n", strings.Join(cfg.Classifier.IgnoreSlugs, ", "))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Backend:           %s\n", cfg.Storage.Backend)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Export Type:       %s\n", cfg.Storage.ExportType)
			fmt.Printf("\nPipeline:\n")
			fmt.Printf("  Batch Limit:       %d\n", cfg.Pipeline.BatchLimit)
			fmt.Printf("  Summary Length:    %d\n", cfg.Pipeline.SummaryLen)
			fmt.Printf("  Volatility Window: %d days\n", cfg.Pipeline.VolatilityDays)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// crawlAndIngest wires the fetcher, classifier, crawler, and parser
// together and runs the ingest stage over the seeds.
func crawlAndIngest(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger, seeds []string) (types.BatchSummary, map[string]any, error) {
	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return types.BatchSummary{}, nil, fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	classifier := classify.New(classify.NewPolicy(cfg.Classifier.CategorySlugs, cfg.Classifier.IgnoreSlugs))
	crawler := crawl.NewCrawler(cfg.Crawler, classifier, f, logger)
	ingestor := pipeline.NewIngestor(crawler, parser.NewArticleParser(logger), st, logger)

	summary := ingestor.Run(ctx, seeds, baseYmd)
	return summary, crawler.Stats().Snapshot(), nil
}

// collectSeeds merges CLI seed URLs with feed-derived ones.
func collectSeeds(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) ([]string, error) {
	for _, rawURL := range args {
		if err := config.ValidateURL(rawURL); err != nil {
			return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
		}
	}
	seeds := append([]string(nil), args...)

	if useFeeds && len(cfg.Feeds.URLs) > 0 {
		feedSeeds := feeds.NewSource(&cfg.Feeds, logger).SeedURLs(ctx)
		logger.Info("feed seeds collected", "count", len(feedSeeds))
		seeds = append(seeds, feedSeeds...)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed URLs: pass seeds as arguments or enable --feeds")
	}
	return seeds, nil
}

func exportRcmds(ctx context.Context, cfg *config.Config, st store.Store) (string, error) {
	rows, err := st.RcmdsByDate(ctx, baseYmd)
	if err != nil {
		return "", err
	}
	exp, err := store.NewExporter(cfg.Storage.OutputPath, cfg.Storage.ExportType)
	if err != nil {
		return "", err
	}
	return exp.Export(rows, baseYmd)
}

// newStore builds the configured storage backend.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return store.NewMemStore(), nil
	case "mongo", "":
		return store.NewMongoStore(ctx, &cfg.Storage, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

// loadConfig loads the config file and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if maxTotal > 0 {
		cfg.Crawler.MaxTotal = maxTotal
	}
	if depth >= 0 {
		cfg.Crawler.MaxDepth = depth
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.Parse(types.BaseYmdLayout, baseYmd); err != nil {
		return nil, fmt.Errorf("invalid --date %q: want YYYYMMDD", baseYmd)
	}
	return cfg, nil
}

func printSummary(stage string, s types.BatchSummary) {
	fmt.Printf("%s: %d processed, %d skipped, %d failed", stage, s.Processed, s.Skipped, s.Failed)
	if s.MetricsCreated > 0 {
		fmt.Printf(", %d metrics", s.MetricsCreated)
	}
	fmt.Println()
	for _, err := range s.Errors {
		fmt.Printf("  error: %v\n", err)
	}
}

// setupLogger creates a structured logger.
func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
