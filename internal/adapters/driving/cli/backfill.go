package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Compute embeddings for cached papers that lack them",
	Long: `Embeds every cached paper without a vector, in batches.

Progress never regresses: papers added by a concurrent sync are picked up
by the next run. Interrupting a run stops it after the current batch.`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

func init() {
	backfillCmd.Flags().Int("batch-size", 0, "papers per embedding request (default from settings)")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	if backfiller == nil {
		return errors.New("backfill service not configured")
	}

	batch, _ := cmd.Flags().GetInt("batch-size") //nolint:errcheck // flag is always registered
	if batch <= 0 {
		batch = configuredEmbeddingBatch()
	}

	out := cmd.OutOrStdout()
	cmd.Println("Computing missing embeddings...")

	if isTerminal(out) {
		backfiller.SetProgressFunc(func(p domain.BackfillProgress) {
			fmt.Fprintf(out, "\r%s %d/%d embedded", progressBar(p.Fraction(), 30), p.Completed, p.Total)
		})
		defer backfiller.SetProgressFunc(nil)
	}

	progress, err := backfiller.Run(cmd.Context(), batch)
	if isTerminal(out) {
		cmd.Println()
	}
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return fmt.Errorf("backfill failed: %w (run 'papercache settings embedding' to configure)", err)
		}
		return fmt.Errorf("backfill failed: %w", err)
	}

	printBackfillSummary(cmd, progress)
	return nil
}

func printBackfillSummary(cmd *cobra.Command, p domain.BackfillProgress) {
	out := cmd.OutOrStdout()
	switch {
	case p.Cancelled:
		cmd.Println(styled(out, warningStyle, "Backfill cancelled."))
	case p.Total == 0:
		cmd.Println(styled(out, successStyle, "Every cached paper already has an embedding."))
		return
	default:
		cmd.Println(styled(out, successStyle, "Backfill completed."))
	}
	cmd.Printf("  Embedded: %d of %d papers in %d batches\n", p.Completed, p.Total, p.Batches)
	if p.Failed > 0 {
		cmd.Printf("  Failed: %d\n", p.Failed)
	}
	if !p.StartedAt.IsZero() && !p.EndedAt.IsZero() {
		cmd.Printf("  Duration: %s\n", p.EndedAt.Sub(p.StartedAt).Round(time.Millisecond))
	}
}

func configuredEmbeddingBatch() int {
	if settingsService == nil {
		return domain.DefaultAppSettings().Embedding.BatchSize
	}
	settings, err := settingsService.Get()
	if err != nil || settings == nil {
		return domain.DefaultAppSettings().Embedding.BatchSize
	}
	return settings.Embedding.BatchSize
}
