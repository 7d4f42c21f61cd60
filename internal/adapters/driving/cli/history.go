package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent searches",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of searches to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	limit, _ := cmd.Flags().GetInt("limit") //nolint:errcheck // flag is always registered
	records, err := searchService.History(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		cmd.Println("No searches recorded.")
		return nil
	}

	w := cmd.OutOrStdout()
	for i := range records {
		r := &records[i]
		cmd.Printf("%s  %s", styled(w, mutedStyle, r.CreatedAt.Local().Format("2006-01-02 15:04")), r.Query)
		if r.Translated != "" && r.Translated != r.Query {
			cmd.Printf(" → %s", r.Translated)
		}
		cmd.Printf(" (%d results)\n", r.ResultCount)
	}
	return nil
}
