// Package cli provides the papercache command-line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papercache/internal/core/ports/driving"
	"github.com/custodia-labs/papercache/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired by the composition root.
var (
	syncCoordinator driving.SyncCoordinator
	backfiller      driving.BackfillScheduler
	searchService   driving.SearchService
	paperService    driving.PaperService
	settingsService driving.SettingsService
	scheduler       driving.Scheduler
	configWatcher   ConfigWatcher
)

// ConfigWatcher reloads configuration when its backing file changes.
type ConfigWatcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Services holds the driving ports used by the commands.
// Nil fields make the dependent commands report that they are not configured.
type Services struct {
	Sync      driving.SyncCoordinator
	Backfill  driving.BackfillScheduler
	Search    driving.SearchService
	Papers    driving.PaperService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler
	Watcher   ConfigWatcher
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	syncCoordinator = s.Sync
	backfiller = s.Backfill
	searchService = s.Search
	paperService = s.Papers
	settingsService = s.Settings
	scheduler = s.Scheduler
	configWatcher = s.Watcher
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "papercache",
	Short: "Local paper cache with semantic search",
	Long: `papercache mirrors a slice of the arXiv corpus into a local database,
computes embeddings for every cached paper and answers semantic queries
in any language against the local cache.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose") //nolint:errcheck // flag is always registered
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
