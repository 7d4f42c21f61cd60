package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or reset the local cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size, pending embeddings and fetched ranges",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached paper and forget fetched ranges",
	Long: `Removes every cached paper, its summaries and all fetched-range bookkeeping.
Search history and interactions are kept. The next sync starts from scratch.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var cacheClearYes bool

func init() {
	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "do not ask for confirmation")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	stats, err := paperService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	w := cmd.OutOrStdout()
	cmd.Println(styled(w, titleStyle, "Cache"))
	cmd.Printf("  Papers:          %d\n", stats.Papers)
	cmd.Printf("  Missing vectors: %d\n", stats.MissingVectors)

	if len(stats.Ranges) == 0 {
		cmd.Println("  Fetched ranges:  none")
		return nil
	}

	cmd.Println("  Fetched ranges:")
	keys := make([]string, 0, len(stats.Ranges))
	for key := range stats.Ranges {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts := make([]string, len(stats.Ranges[key]))
		covered := 0
		for i, r := range stats.Ranges[key] {
			parts[i] = r.String()
			covered += r.Len()
		}
		cmd.Printf("    %s\n", key)
		cmd.Printf("      %s (%d offsets)\n", strings.Join(parts, " "), covered)
	}
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	if !cacheClearYes {
		cmd.Print("This removes every cached paper. Continue? [y/N]: ")
		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n') //nolint:errcheck // EOF means no
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := paperService.Clear(cmd.Context()); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	cmd.Println("Cache cleared.")
	return nil
}
