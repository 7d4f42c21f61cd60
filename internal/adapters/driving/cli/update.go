package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Sync new papers and embed everything that lacks a vector",
	Long: `Runs an incremental sync and an embedding backfill side by side, then a
final backfill pass over the papers the sync added.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().StringSlice("category", nil, "override the configured categories (repeatable)")
	updateCmd.Flags().String("from", "", "earliest publication date (YYYY-MM-DD)")
	updateCmd.Flags().String("to", "", "latest publication date (YYYY-MM-DD)")
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	if syncCoordinator == nil {
		return errors.New("sync service not configured")
	}
	if backfiller == nil {
		return errors.New("backfill service not configured")
	}

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	if batch := configuredSyncBatch(); batch > 0 {
		syncCoordinator.SetBatchSize(batch)
	}
	embedBatch := configuredEmbeddingBatch()

	cmd.Printf("Updating %s...\n", filter.Key())

	var (
		synced      domain.SyncProgress
		firstPass   domain.BackfillProgress
		unavailable bool
	)
	// A failure on one side must not cancel the other.
	ctx := cmd.Context()
	var g errgroup.Group
	g.Go(func() error {
		p, err := syncCoordinator.StartIncremental(ctx, filter)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		synced = p
		return nil
	})
	g.Go(func() error {
		p, err := backfiller.Run(ctx, embedBatch)
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			unavailable = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		firstPass = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	printSyncSummary(cmd, synced)

	if unavailable {
		cmd.Println("Embeddings skipped: no embedding provider configured.")
		return nil
	}

	total := firstPass
	if synced.Fetched > 0 && cmd.Context().Err() == nil {
		p, err := backfiller.Run(cmd.Context(), embedBatch)
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
		total = mergeBackfill(total, p)
	}
	printBackfillSummary(cmd, total)
	return nil
}

// mergeBackfill folds a later pass into an earlier one.
func mergeBackfill(first, second domain.BackfillProgress) domain.BackfillProgress {
	merged := first
	merged.Completed += second.Completed
	merged.Total += second.Total
	merged.Batches += second.Batches
	merged.Failed += second.Failed
	merged.Cancelled = second.Cancelled
	if merged.StartedAt.IsZero() {
		merged.StartedAt = second.StartedAt
	}
	merged.EndedAt = second.EndedAt
	return merged
}
