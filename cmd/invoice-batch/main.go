package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	jobs "github.com/joseph-ayodele/invoice-ocr/internal/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/bootstrap"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/core/async"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/metrics"
	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

// collector keeps every finished job for the XLSX summary.
type collector struct {
	mu      sync.Mutex
	entries []export.Entry
	failed  int
}

func (c *collector) add(job jobs.Job, doc normalize.Document, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed++
	}
	c.entries = append(c.entries, export.Entry{SourcePath: job.Path, Document: doc, Err: err})
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory to process documents from")
		watch      = flag.Bool("watch", false, "keep watching -dir for new files until interrupted")
		fromRedis  = flag.Bool("redis", false, "consume jobs from REDIS_ADDR/REDIS_KEY until interrupted")
		out        = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		sqlitePath = flag.String("sqlite", "", "also store results in this SQLite file (overrides SQLITE_PATH)")
		showHidden = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" && !*fromRedis {
		printError("Error: --dir or --redis is required\n")
		os.Exit(1)
	}
	if *out == "" {
		base := *dir
		if base == "" {
			base = "."
		}
		*out = filepath.Join(filepath.Dir(filepath.Clean(base)), "invoices.xlsx")
	}

	logger := bootstrap.Logger(os.Stdout, true, slog.LevelInfo)
	slog.SetDefault(logger)

	if err := bootstrap.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg := common.LoadConfig()
	if *sqlitePath != "" {
		cfg.SQLite.Path = *sqlitePath
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := bootstrap.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open result stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close(logger)

	extractor, err := bootstrap.Extractor(cfg, logger)
	if err != nil {
		logger.Error("failed to build OCR extractor", "error", err)
		os.Exit(1)
	}
	m := metrics.New(prometheus.NewRegistry())
	processor := core.NewProcessor(logger, extractor, core.WithStores(stores.List...), core.WithMetrics(m))

	results := &collector{}
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithResultHandler(results.add),
		async.WithMetrics(m),
	)
	scanner := ingest.NewScanner(queue, logger)

	if *dir != "" {
		logger.Info("starting ingestion", "dir", *dir)
		_, stats, err := scanner.IngestDirectory(ctx, *dir, !*showHidden)
		if err != nil {
			logger.Error("failed to ingest directory", "error", err)
			os.Exit(1)
		}
		logger.Info("ingestion complete",
			"scanned", stats.Scanned,
			"matched", stats.Matched,
			"queued", stats.Queued,
			"failed", stats.Failed,
			"deduplicated", stats.Deduplicated)
	}

	var wg sync.WaitGroup
	if *watch && *dir != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := scanner.Watch(ctx, ingest.WatchConfig{Roots: []string{*dir}, Debounce: cfg.Queue.Debounce})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watcher stopped", "error", err)
			}
		}()
	}
	if *fromRedis {
		if cfg.Queue.RedisAddr == "" {
			logger.Error("REDIS_ADDR is required with --redis")
			os.Exit(2)
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Queue.RedisAddr})
		defer func() { _ = rdb.Close() }()
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ingest.NewRedisSource(rdb, cfg.Queue.RedisKey, logger).Run(ctx, queue)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis source stopped", "error", err)
			}
		}()
	}
	if *watch || *fromRedis {
		logger.Info("waiting for jobs; interrupt to finish")
		<-ctx.Done()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)

	results.mu.Lock()
	entries, failures := results.entries, results.failed
	results.mu.Unlock()

	logger.Info("exporting to XLSX", "output", *out)
	xlsxBytes, err := export.NewService(logger).DocumentsXLSX(entries)
	if err != nil {
		logger.Error("failed to export documents", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", len(entries)-failures,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", len(entries)-failures)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}
