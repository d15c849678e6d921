package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-drops/catalog"
	"github.com/aluiziolira/go-scrape-drops/config"
	"github.com/aluiziolira/go-scrape-drops/history"
	"github.com/aluiziolira/go-scrape-drops/models"
	"github.com/aluiziolira/go-scrape-drops/pipeline"
	"github.com/aluiziolira/go-scrape-drops/resolver"
	"github.com/aluiziolira/go-scrape-drops/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type options struct {
	cfg         *config.Config
	queueFile   string
	listHistory bool
	monsters    []string
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	cfg := opts.cfg

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath)
		if err != nil {
			slog.Error("opening scrape history", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()
	}

	if opts.listHistory {
		if store == nil {
			slog.Error("scrape history is disabled")
			os.Exit(1)
		}
		if err := printHistory(ctx, os.Stdout, store); err != nil {
			slog.Error("listing scrape history", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	queue, err := buildQueue(cfg.AllowedHost, opts.queueFile, opts.monsters)
	if err != nil {
		slog.Error("building monster queue", slog.Any("error", err))
		os.Exit(1)
	}
	if queue.Len() == 0 {
		slog.Error("no monsters to scrape; pass [name=]url arguments or -queue")
		os.Exit(2)
	}

	items, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		slog.Error("loading item catalog", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("item catalog loaded", slog.String("path", cfg.CatalogPath), slog.Int("items", items.Len()))

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputDir, cfg.Group)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	slog.Info("starting scrape",
		slog.Int("monsters", queue.Len()),
		slog.String("format", cfg.OutputFormat),
		slog.Bool("group", cfg.Group),
	)

	p := pipeline.NewPipeline(writer, resolver.New(items))
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	var rec scraper.Recorder
	if store != nil {
		rec = store
	}

	startTime := time.Now()
	result, runErr := s.Run(ctx, queue, p, rec)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			slog.Warn("scrape interrupted", slog.Any("error", runErr))
		} else {
			slog.Error("scraping failed", slog.Any("error", runErr))
		}
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(os.Stdout, result, time.Since(startTime), cfg.OutputDir, p.GetMetrics())

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}

// parseFlags layers flags over SCRAPER_* environment overrides over the
// defaults.
func parseFlags(args []string, output io.Writer) (*options, error) {
	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: scraper [flags] [name=]url ...\n\n")
		fs.PrintDefaults()
	}

	opts := &options{cfg: cfg}
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Item catalog dataset (.json, .yaml or .yml)")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Directory for drop files")
	fs.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: json, lua, or dual")
	fs.BoolVar(&cfg.Group, "group", cfg.Group, "Also write one list table for the whole batch")
	fs.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "Scrape history file (.json, or .db/.sqlite for SQLite); empty disables it")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts per monster page")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Initial retry backoff")
	fs.DurationVar(&cfg.RetryBackoffMax, "retry-backoff-max", cfg.RetryBackoffMax, "Maximum retry backoff")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header sent to the wiki")
	fs.StringVar(&cfg.AllowedHost, "allowed-host", cfg.AllowedHost, "Host every monster URL must contain")
	fs.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Monster pages kept in memory for the session; 0 disables the cache")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	fs.StringVar(&opts.queueFile, "queue", "", "File with one [name=]url per line")
	fs.BoolVar(&opts.listHistory, "list-history", false, "Print the scrape history and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	opts.monsters = fs.Args()
	return opts, nil
}

func buildQueue(allowedHost, queueFile string, args []string) (*scraper.Queue, error) {
	queue := scraper.NewQueue(allowedHost)

	if queueFile != "" {
		f, err := os.Open(queueFile)
		if err != nil {
			return nil, fmt.Errorf("open queue file: %w", err)
		}
		defer f.Close()
		if err := queue.ReadQueue(f); err != nil {
			return nil, fmt.Errorf("%s: %w", queueFile, err)
		}
	}

	for _, arg := range args {
		name, rawURL := scraper.ParseMonsterArg(arg)
		if err := queue.Add(name, rawURL); err != nil {
			return nil, err
		}
	}
	return queue, nil
}

func createWriter(format, dir string, group bool) (pipeline.OutputWriter, error) {
	var writers []pipeline.OutputWriter

	switch format {
	case config.FormatJSON, config.FormatDual:
		w, err := pipeline.NewJSONWriter(dir)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	case config.FormatLua:
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	if format == config.FormatLua || format == config.FormatDual {
		w, err := pipeline.NewLuaWriter(dir)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if group {
		w, err := pipeline.NewGroupWriter(dir)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}

	if len(writers) == 1 {
		return writers[0], nil
	}
	return pipeline.NewMultiWriter(writers...), nil
}

func printHistory(ctx context.Context, w io.Writer, store history.Store) error {
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No monsters scraped yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-30s %s\n", e.LastScraped.Local().Format("2006-01-02 15:04"), e.Name, e.URL)
	}
	return nil
}

func printSummary(w io.Writer, result *models.ScraperResult, duration time.Duration, outputDir string, metrics map[string]interface{}) {
	if result == nil {
		return
	}

	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Scrape complete")

	succeeded := 0
	totalDrops := 0
	for _, report := range result.Reports {
		if !report.Failed() {
			succeeded++
			totalDrops += report.TotalFoundDrops
		}
	}

	fmt.Fprintf(w, "  Monsters:      %d/%d succeeded\n", succeeded, result.TotalCount)
	fmt.Fprintf(w, "  Drops:         %d\n", totalDrops)
	for _, report := range result.Reports {
		if report.Failed() {
			fmt.Fprintf(w, "    x %s: %s\n", report.Monster, report.Error)
			continue
		}
		fmt.Fprintf(w, "    - %s: %d drops", report.Monster, report.TotalFoundDrops)
		if report.Unresolved > 0 {
			fmt.Fprintf(w, " (%d unresolved)", report.Unresolved)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	fmt.Fprintf(w, "  Retries:       %d\n", result.RetryCount)
	fmt.Fprintf(w, "  Cache hits:    %d\n", result.CacheHits)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Skipped drops: %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintf(w, "  Output dir:    %s\n", outputDir)
	fmt.Fprintln(w, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
