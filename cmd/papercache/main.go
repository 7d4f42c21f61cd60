package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/papercache/internal/adapters/driven/ai"
	"github.com/custodia-labs/papercache/internal/adapters/driven/config/file"
	"github.com/custodia-labs/papercache/internal/adapters/driven/corpus/arxiv"
	"github.com/custodia-labs/papercache/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/papercache/internal/adapters/driving/cli"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/services"
	"github.com/custodia-labs/papercache/internal/logger"
	"github.com/custodia-labs/papercache/internal/metrics"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// Adapters capture their logger when constructed, so verbosity has to
	// be known before cobra parses flags.
	logger.SetVerbose(verboseRequested(args))

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return err
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading settings: %v\n", err)
		return err
	}

	dataDir := settings.DataDir
	if dataDir == "" {
		dataDir = domain.DefaultDataDir()
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening cache: %v\n", err)
		return err
	}
	defer store.Close()
	logger.Debug("Cache database: %s", store.Path())

	prompts, err := file.NewPromptStore(filepath.Join(dataDir, "prompts"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading prompts: %v\n", err)
		return err
	}

	aiServices := ai.Init(settings, prompts, false)
	defer aiServices.Close()
	for _, warning := range aiServices.Warnings {
		logger.Warn("%s", warning)
	}

	corpus := arxiv.NewClient(arxiv.Config{
		BaseURL:           settings.Corpus.BaseURL,
		RequestsPerSecond: settings.Corpus.RequestsPerSecond,
	})

	papers := store.PaperStore()
	ranges := store.RangeStore()

	coordinator := services.NewSyncCoordinator(corpus, papers, ranges)
	coordinator.SetBatchSize(settings.Sync.BatchSize)
	coordinator.SetRetryPolicy(settings.Sync.RetryPolicy())

	backfiller := services.NewBackfiller(papers, aiServices.EmbeddingService)
	backfiller.SetRetryPolicy(settings.Sync.RetryPolicy())

	searchService := services.NewSearchService(aiServices.QueryExpander, papers, store.HistoryStore())
	paperService := services.NewPaperService(papers, store.AnnotationStore(), ranges, aiServices.Summariser)

	scheduler := services.NewScheduler(
		settingsService.GetSchedulerConfig(),
		store.SchedulerStore(),
		coordinator,
		backfiller,
	)
	scheduler.SetFilter(settings.Corpus.Filter())
	scheduler.SetBackfillBatchSize(settings.Embedding.BatchSize)

	metrics.Register()

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Sync:      coordinator,
		Backfill:  backfiller,
		Search:    searchService,
		Papers:    paperService,
		Settings:  settingsService,
		Scheduler: scheduler,
		Watcher:   file.Watchers{configStore, prompts},
	})

	return cli.Execute(ctx)
}

// verboseRequested reports whether -v or --verbose appears before any "--".
func verboseRequested(args []string) bool {
	for _, arg := range args {
		switch arg {
		case "--":
			return false
		case "-v", "--verbose", "--verbose=true":
			return true
		}
	}
	return false
}
