package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/papercache/internal/adapters/driving/mcp"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/logger"
	"github.com/custodia-labs/papercache/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled sync and backfill in the foreground",
	Long: `Runs the background scheduler until interrupted. Paper sync and embedding
backfill run on their configured intervals or cron expressions.

Editing config.toml while serving applies new batch sizes, retry policy and
categories without a restart.

Optionally exposes Prometheus metrics and an MCP endpoint over HTTP:
  papercache serve --metrics-addr :9090 --mcp-addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "address for the Prometheus /metrics endpoint (empty = disabled)")
	serveCmd.Flags().String("mcp-addr", "", "address for the MCP HTTP endpoint (empty = disabled)")
	rootCmd.AddCommand(serveCmd)
}

// filterSetter is implemented by schedulers whose corpus filter can change at runtime.
type filterSetter interface {
	SetFilter(filter domain.CorpusFilter)
	SetBackfillBatchSize(n int)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr") //nolint:errcheck // flag is always registered
	mcpAddr, _ := cmd.Flags().GetString("mcp-addr")         //nolint:errcheck // flag is always registered
	log := logger.Zap().Named("serve")

	applySettings()

	g, ctx := errgroup.WithContext(cmd.Context())

	g.Go(func() error {
		return scheduler.Start(ctx)
	})

	if configWatcher != nil {
		if err := configWatcher.Watch(ctx, func() {
			log.Info("configuration changed, applying")
			applySettings()
		}); err != nil {
			log.Warn("config watch unavailable", zap.Error(err))
		}
	}

	if metricsAddr != "" {
		metrics.Register()
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		g.Go(func() error {
			return serveHTTP(ctx, metricsAddr, mux)
		})
		cmd.Printf("Metrics on http://%s/metrics\n", metricsAddr)
	}

	if mcpAddr != "" {
		if searchService == nil {
			return errors.New("search service not configured")
		}
		server, err := mcp.NewServer(mcpPorts(), mcp.WithVersion(version))
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.RunHTTP(ctx, mcpAddr)
		})
		cmd.Printf("MCP server on http://%s\n", mcpAddr)
	}

	cmd.Println("Scheduler running. Press Ctrl+C to stop.")
	err := g.Wait()
	if stopErr := scheduler.Stop(); stopErr != nil {
		log.Debug("scheduler stop", zap.Error(stopErr))
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// applySettings pushes the current settings into the running services.
func applySettings() {
	if settingsService == nil {
		return
	}
	settings, err := settingsService.Get()
	if err != nil || settings == nil {
		logger.Warn("Failed to read settings: %v", err)
		return
	}

	if syncCoordinator != nil {
		syncCoordinator.SetBatchSize(settings.Sync.BatchSize)
		syncCoordinator.SetRetryPolicy(settings.Sync.RetryPolicy())
	}
	if fs, ok := scheduler.(filterSetter); ok {
		fs.SetFilter(settings.Corpus.Filter())
		fs.SetBackfillBatchSize(settings.Embedding.BatchSize)
	}
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", addr, err)
	}
	return nil
}
