package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// dateLayout is the format accepted by the --from and --to flags.
const dateLayout = "2006-01-02"

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Mirror papers from the corpus into the local cache",
	Long: `Fetches papers matching the configured categories and publication window
and stores them in the local cache.

By default sync resumes from the first offset that has not been fetched yet.
Use --full to re-walk the whole corpus slice, refreshing every cached record.
Interrupting a sync (Ctrl+C) keeps every batch committed so far.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("full", false, "re-walk the whole corpus slice from offset zero")
	syncCmd.Flags().StringSlice("category", nil, "override the configured categories (repeatable)")
	syncCmd.Flags().String("from", "", "earliest publication date (YYYY-MM-DD)")
	syncCmd.Flags().String("to", "", "latest publication date (YYYY-MM-DD)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncCoordinator == nil {
		return errors.New("sync service not configured")
	}

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	if batch := configuredSyncBatch(); batch > 0 {
		syncCoordinator.SetBatchSize(batch)
	}

	full, _ := cmd.Flags().GetBool("full") //nolint:errcheck // flag is always registered
	mode := domain.SyncIncremental
	start := syncCoordinator.StartIncremental
	if full {
		mode = domain.SyncFull
		start = syncCoordinator.StartFull
	}

	out := cmd.OutOrStdout()
	cmd.Printf("Synchronising %s (%s)...\n", styled(out, titleStyle, filter.Key()), mode)

	if isTerminal(out) {
		syncCoordinator.SetProgressFunc(func(p domain.SyncProgress) {
			if p.State != domain.SyncRunning || p.Total == 0 {
				return
			}
			covered := float64(p.Total-p.Remaining) / float64(p.Total)
			fmt.Fprintf(out, "\r%s %d fetched, %d remaining of %d",
				progressBar(covered, 30), p.Fetched, p.Remaining, p.Total)
		})
		defer syncCoordinator.SetProgressFunc(nil)
	}

	progress, err := start(cmd.Context(), filter)
	if isTerminal(out) {
		cmd.Println()
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSyncSummary(cmd, progress)
	return nil
}

func printSyncSummary(cmd *cobra.Command, p domain.SyncProgress) {
	out := cmd.OutOrStdout()
	switch p.State {
	case domain.SyncCompleted:
		cmd.Println(styled(out, successStyle, "Sync completed."))
	case domain.SyncAborted:
		cmd.Println(styled(out, warningStyle, "Sync aborted; committed batches are kept."))
	default:
		cmd.Printf("Sync %s.\n", p.State)
	}
	cmd.Printf("  Fetched: %d papers in %d batches\n", p.Fetched, p.Batches)
	cmd.Printf("  Corpus total: %d\n", p.Total)
	if p.Remaining > 0 {
		cmd.Printf("  Remaining: %d\n", p.Remaining)
	}
	if !p.StartedAt.IsZero() && !p.EndedAt.IsZero() {
		cmd.Printf("  Duration: %s\n", p.EndedAt.Sub(p.StartedAt).Round(time.Millisecond))
	}
}

// filterFromFlags builds the corpus filter from settings and flag overrides.
func filterFromFlags(cmd *cobra.Command) (domain.CorpusFilter, error) {
	corpus := domain.DefaultAppSettings().Corpus
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil && settings != nil {
			corpus = settings.Corpus
		}
	}
	filter := corpus.Filter()

	if cats, _ := cmd.Flags().GetStringSlice("category"); len(cats) > 0 { //nolint:errcheck // flag is always registered
		filter.Categories = cats
	}
	from, err := dateFlag(cmd, "from")
	if err != nil {
		return domain.CorpusFilter{}, err
	}
	if !from.IsZero() {
		filter.From = from
	}
	to, err := dateFlag(cmd, "to")
	if err != nil {
		return domain.CorpusFilter{}, err
	}
	if !to.IsZero() {
		filter.To = to
	}

	filter = filter.Normalized()
	if err := filter.Validate(); err != nil {
		return domain.CorpusFilter{}, err
	}
	return filter, nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	value, _ := cmd.Flags().GetString(name) //nolint:errcheck // flag is always registered
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --%s must be YYYY-MM-DD", domain.ErrInvalidInput, name)
	}
	return t, nil
}

func configuredSyncBatch() int {
	if settingsService == nil {
		return 0
	}
	settings, err := settingsService.Get()
	if err != nil || settings == nil {
		return 0
	}
	return settings.Sync.BatchSize
}
