package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aluiziolira/go-scrape-recipes/api"
	"github.com/aluiziolira/go-scrape-recipes/config"
	"github.com/aluiziolira/go-scrape-recipes/models"
	"github.com/aluiziolira/go-scrape-recipes/pipeline"
	"github.com/aluiziolira/go-scrape-recipes/scheduler"
	"github.com/aluiziolira/go-scrape-recipes/scraper"
	"github.com/aluiziolira/go-scrape-recipes/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Listing base URL; sections are appended as path segments")
	sections := flag.String("sections", strings.Join(cfg.Sections, ","), "Comma-separated listing sections, in scrape order")
	flag.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron expression for recurring runs (empty disables)")
	flag.BoolVar(&cfg.RunOnStart, "run-on-start", cfg.RunOnStart, "Run a scrape immediately at startup")
	flag.IntVar(&cfg.DetailWorkers, "detail-workers", cfg.DetailWorkers, "Concurrent detail page fetches")
	flag.IntVar(&cfg.Parallelism, "parallel", cfg.Parallelism, "Maximum concurrent requests per domain")
	flag.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Delay between requests")
	flag.DurationVar(&cfg.RandomDelay, "random-delay", cfg.RandomDelay, "Random jitter added to delay")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header sent with every request")
	flag.BoolVar(&cfg.RespectRobotsTxt, "respect-robots", cfg.RespectRobotsTxt, "Respect robots.txt directives")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for the JSON output files")
	flag.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "PostgreSQL DSN (empty disables database output)")
	flag.IntVar(&cfg.DedupeSize, "dedupe-size", cfg.DedupeSize, "Initial capacity of the per-run dedupe sets")
	flag.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "HTTP listen address")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Enable verbose logging")
	once := flag.Bool("once", false, "Run a single scrape, print a summary and exit")

	flag.Parse()

	cfg.Sections = splitSections(*sections)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	os.Exit(run(cfg, *once))
}

func run(cfg *config.Config, once bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics, nil)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		return 1
	}

	files, err := pipeline.NewJSONFileWriter(cfg.DataDir)
	if err != nil {
		slog.Error("creating file writer", slog.Any("error", err))
		return 1
	}

	var (
		records pipeline.RecordStore
		recipes api.RecipeReader
	)
	if cfg.DatabaseURL != "" {
		db, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connecting to database", slog.Any("error", err))
			return 1
		}
		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("close database", slog.Any("error", err))
			}
		}()
		if err := store.Migrate(db.DB); err != nil {
			slog.Error("migrating database", slog.Any("error", err))
			return 1
		}
		repo := store.NewRepository(db)
		records = repo
		recipes = repo
	} else {
		slog.Warn("no database configured, writing JSON files only")
	}

	writer := pipeline.NewDualWriter(files, records)
	s, err := scraper.New(cfg, fetcher, writer, metrics)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	if once {
		return runOnce(ctx, s, writer, files)
	}

	sched := scheduler.New(cfg.Schedule, cfg.RunOnStart, s)
	if err := sched.Start(ctx); err != nil {
		slog.Error("starting scheduler", slog.Any("error", err))
		return 1
	}

	handler := api.NewHandler(sched, s, files, recipes, cfg.Sections)
	server := api.NewServer(cfg.ListenAddr, api.NewRouter(handler, metrics.Registry))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()
	slog.Info("service started",
		slog.String("addr", cfg.ListenAddr),
		slog.String("schedule", cfg.Schedule),
		slog.Any("sections", cfg.Sections),
	)

	exitCode := 0
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	case err := <-serveErr:
		if err != nil {
			slog.Error("http server failed", slog.Any("error", err))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.Any("error", err))
		exitCode = 1
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		slog.Error("scheduler shutdown failed", slog.Any("error", err))
		exitCode = 1
	}
	return exitCode
}

func runOnce(ctx context.Context, s *scraper.Scraper, writer *pipeline.DualWriter, files *pipeline.JSONFileWriter) int {
	status, err := s.Run(ctx)
	if status != nil {
		printSummary(status, files)
	}
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		return 1
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		return 1
	}
	return 0
}

func splitSections(value string) []string {
	parts := strings.Split(value, ",")
	sections := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			sections = append(sections, part)
		}
	}
	return sections
}

func printSummary(status *models.RunStatus, files *pipeline.JSONFileWriter) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape " + status.Outcome)

	for _, section := range status.Sections {
		line := fmt.Sprintf("  %-14s %s, %d recipes", section.Section+":", section.Outcome, section.RecipesScraped)
		if section.Error != "" {
			line += " (" + section.Error + ")"
		}
		fmt.Println(line)
	}

	duration := status.EndTime.Sub(status.StartTime)
	fmt.Printf("  Recipes:       %d\n", status.TotalRecipes)
	fmt.Printf("  Details:       %d\n", status.TotalDetails)
	fmt.Printf("  Failed pages:  %d\n", status.DetailsFailed)
	if status.Error != "" {
		fmt.Printf("  Error:         %s\n", status.Error)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Listings file: %s\n", files.Path(pipeline.ListingsFile))
	fmt.Printf("  Details file:  %s\n", files.Path(pipeline.DetailsFile))
	fmt.Printf("  Status file:   %s\n", files.Path(pipeline.StatusFile))
	fmt.Println(separator)
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
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
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
