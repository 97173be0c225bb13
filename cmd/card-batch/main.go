package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joseph-ayodele/card-scanner/internal/async"
	"github.com/joseph-ayodele/card-scanner/internal/cards"
	"github.com/joseph-ayodele/card-scanner/internal/common"
	"github.com/joseph-ayodele/card-scanner/internal/export"
	"github.com/joseph-ayodele/card-scanner/internal/extract"
	"github.com/joseph-ayodele/card-scanner/internal/ingest"
	"github.com/joseph-ayodele/card-scanner/internal/ocr"
	repo "github.com/joseph-ayodele/card-scanner/internal/repository"
	"github.com/joseph-ayodele/card-scanner/internal/utils"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

// run returns the process exit code.
func run() int {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML config file")
		username   = flag.String("user", "", "username that will own the imported cards (required)")
		dir        = flag.String("dir", "", "directory of card images to import (required)")
		skipHidden = flag.Bool("skip-hidden", true, "skip hidden files and directories")
		watch      = flag.Bool("watch", false, "keep watching --dir for new images until interrupted")
		workers    = flag.Int("workers", 4, "concurrent OCR workers")
		timeout    = flag.Duration("timeout", 2*time.Minute, "per-card processing timeout")
		csvOut     = flag.String("csv", "", "write a CSV export of the user's cards to this path")
		xlsxOut    = flag.String("xlsx", "", "write an XLSX export of the user's cards to this path")
		fromStr    = flag.String("from", "", "export from date YYYY-MM-DD")
		toStr      = flag.String("to", "", "export to date YYYY-MM-DD")
	)
	flag.Parse()

	if *username == "" || *dir == "" {
		printError("Error: --user and --dir are required\n")
		flag.Usage()
		return 1
	}
	from, to, err := utils.ParseDateRange(*fromStr, *toStr)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}

	cfg, err := common.LoadConfigFile(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		printError("Error: %v\n", err)
		return 2
	}
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repo.Open(ctx, repo.ConfigFrom(cfg.Database), logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return 1
	}

	user, err := repo.NewUserRepository(db, logger).GetByUsername(ctx, *username)
	if err != nil {
		logger.Error("unknown user", "username", *username, "error", err)
		return 1
	}

	store, err := ingest.NewStore(cfg.Storage.UploadDir, logger)
	if err != nil {
		logger.Error("failed to prepare upload dir", "error", err)
		return 1
	}
	extractor, err := ocr.NewExtractor(ocr.ConfigFrom(cfg.OCR), logger)
	if err != nil {
		logger.Error("failed to build ocr extractor", "error", err)
		return 1
	}
	cardsRepo := repo.NewCardRepository(db, logger)
	cardService := cards.NewService(store, extract.NewOCRAdapter(extractor, logger), extract.NewContactExtractor(), cardsRepo, logger)

	var processed, failures atomic.Int64
	queue := async.NewProcessorQueue(
		async.ProcessorFunc(func(ctx context.Context, job async.Job) error {
			_, err := cardService.ScanFile(ctx, job.UserID, job.Path)
			return err
		}),
		logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(4*(*workers)),
		async.WithProcessTimeout(*timeout),
		async.WithResultHandler(func(r async.Result) {
			if r.Err != nil {
				failures.Add(1)
				return
			}
			processed.Add(1)
		}),
	)

	enqueue := func(ctx context.Context, path string) error {
		return queue.Enqueue(ctx, async.Job{UserID: user.ID, Path: path})
	}

	logger.Info("starting import", "dir", *dir, "user", user.Username)
	_, stats, err := ingest.WalkDirectory(ctx, *dir, *skipHidden, enqueue, logger, store.Root())
	if err != nil {
		logger.Error("failed to walk directory", "error", err)
	}
	logger.Info("directory scanned",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"queued", stats.Succeeded,
		"failed", stats.Failed,
	)

	if *watch && ctx.Err() == nil {
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:      []string{*dir},
			SkipHidden: *skipHidden,
			Debounce:   500 * time.Millisecond,
			Exclude:    []string{store.Root()},
		}, logger)
		if err != nil {
			logger.Error("failed to start watcher", "error", err)
		} else {
			logger.Info("watching for new cards", "dir", *dir)
		loop:
			for {
				select {
				case p, ok := <-events:
					if !ok {
						break loop
					}
					if err := enqueue(ctx, p); err != nil {
						logger.Warn("enqueue failed", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("watcher error", "error", err)
				case <-ctx.Done():
					break loop
				}
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logger.Error("queue shutdown incomplete", "error", err)
	}
	logger.Info("import complete", "processed", processed.Load(), "failures", failures.Load())

	exportService := export.NewService(cardsRepo, logger)
	// exports run even after an interrupt so the imported cards are not lost
	exportCtx := context.Background()
	if *csvOut != "" {
		if err := writeExport(exportCtx, logger, *csvOut, func(ctx context.Context) ([]byte, error) {
			return exportService.ExportCardsCSV(ctx, user.ID, from, to)
		}); err != nil {
			return 1
		}
	}
	if *xlsxOut != "" {
		if err := writeExport(exportCtx, logger, *xlsxOut, func(ctx context.Context) ([]byte, error) {
			return exportService.ExportCardsXLSX(ctx, user.ID, from, to)
		}); err != nil {
			return 1
		}
	}
	if failures.Load() > 0 {
		return 3
	}
	return 0
}

func writeExport(ctx context.Context, logger *slog.Logger, path string, fn func(context.Context) ([]byte, error)) error {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := fn(ctx)
	if err != nil {
		logger.Error("export failed", "path", path, "error", err)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Error("failed to create output dir", "path", path, "error", err)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("failed to write output file", "path", path, "error", err)
		return err
	}
	logger.Info("export written", "path", path, "bytes", len(data))
	return nil
}
