package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

var paperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Manage cached papers",
	Long:  `List, view, open, annotate and summarise cached papers.`,
}

var paperListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached papers, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPaperList,
}

var paperGetCmd = &cobra.Command{
	Use:   "get <paper-id>",
	Short: "Show paper details",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaperGet,
}

var paperDeleteCmd = &cobra.Command{
	Use:   "delete <paper-id>",
	Short: "Remove a paper and its summaries from the cache",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaperDelete,
}

var paperOpenCmd = &cobra.Command{
	Use:   "open <paper-id>",
	Short: "Open the paper in the default browser",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaperOpen,
}

var paperInteractionsCmd = &cobra.Command{
	Use:   "interactions <paper-id>",
	Short: "List recorded interactions with a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runPaperInteractions,
}

var paperSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Read, write or generate paper summaries",
}

var paperSummaryGetCmd = &cobra.Command{
	Use:   "get <paper-id>",
	Short: "Print a stored summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryGet,
}

var paperSummarySetCmd = &cobra.Command{
	Use:   "set <paper-id> <text>",
	Short: "Store a summary written by hand",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSummarySet,
}

var paperSummaryGenerateCmd = &cobra.Command{
	Use:   "generate <paper-id>",
	Short: "Summarise the abstract with the configured language model",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummaryGenerate,
}

var (
	paperListLimit  int
	paperListOffset int
	summaryLanguage string
)

func init() {
	paperListCmd.Flags().IntVarP(&paperListLimit, "limit", "n", 20, "maximum number of papers")
	paperListCmd.Flags().IntVar(&paperListOffset, "offset", 0, "number of papers to skip")
	paperSummaryCmd.PersistentFlags().StringVarP(&summaryLanguage, "lang", "l", "en", "summary language code")

	paperSummaryCmd.AddCommand(paperSummaryGetCmd)
	paperSummaryCmd.AddCommand(paperSummarySetCmd)
	paperSummaryCmd.AddCommand(paperSummaryGenerateCmd)

	paperCmd.AddCommand(paperListCmd)
	paperCmd.AddCommand(paperGetCmd)
	paperCmd.AddCommand(paperDeleteCmd)
	paperCmd.AddCommand(paperOpenCmd)
	paperCmd.AddCommand(paperInteractionsCmd)
	paperCmd.AddCommand(paperSummaryCmd)
	for _, kind := range []domain.InteractionKind{
		domain.InteractionLike,
		domain.InteractionBookmark,
		domain.InteractionDismiss,
	} {
		paperCmd.AddCommand(newInteractionCmd(kind))
	}
	rootCmd.AddCommand(paperCmd)
}

func newInteractionCmd(kind domain.InteractionKind) *cobra.Command {
	return &cobra.Command{
		Use:   string(kind) + " <paper-id>",
		Short: fmt.Sprintf("Record a %s for a paper", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if paperService == nil {
				return errors.New("paper service not configured")
			}
			interaction, err := paperService.Interact(cmd.Context(), args[0], kind)
			if err != nil {
				return fmt.Errorf("failed to record %s: %w", kind, err)
			}
			cmd.Printf("Recorded %s for %s.\n", interaction.Kind, interaction.PaperID)
			return nil
		},
	}
}

func runPaperList(cmd *cobra.Command, _ []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	papers, err := paperService.List(cmd.Context(), paperListLimit, paperListOffset)
	if err != nil {
		return fmt.Errorf("failed to list papers: %w", err)
	}

	if len(papers) == 0 {
		cmd.Println("No papers cached. Run 'papercache sync' first.")
		return nil
	}

	w := cmd.OutOrStdout()
	for i := range papers {
		marker := " "
		if !papers[i].HasEmbedding() {
			marker = "*"
		}
		cmd.Printf("%s %-18s %s  %s\n", marker, papers[i].ID,
			styled(w, mutedStyle, papers[i].PublishedAt.Format(dateLayout)), truncate(papers[i].Title, 80))
	}
	cmd.Println()
	cmd.Printf("Showing %d papers (* = no embedding yet)\n", len(papers))
	return nil
}

func runPaperGet(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	paper, err := paperService.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get paper: %w", err)
	}

	w := cmd.OutOrStdout()
	cmd.Printf("%s\n\n", styled(w, titleStyle, paper.Title))
	cmd.Printf("  ID:         %s\n", paper.ID)
	cmd.Printf("  Authors:    %s\n", strings.Join(paper.Authors, ", "))
	cmd.Printf("  Categories: %s\n", strings.Join(paper.Categories, ", "))
	cmd.Printf("  Published:  %s\n", paper.PublishedAt.Format(timestampLayout))
	if !paper.UpdatedAt.IsZero() {
		cmd.Printf("  Updated:    %s\n", paper.UpdatedAt.Format(timestampLayout))
	}
	embedded := "no"
	if paper.HasEmbedding() {
		embedded = fmt.Sprintf("yes (%d dimensions)", len(paper.Embedding))
	}
	cmd.Printf("  Embedding:  %s\n", embedded)

	if len(paper.Links) > 0 {
		cmd.Println("\n  Links:")
		rels := make([]string, 0, len(paper.Links))
		for rel := range paper.Links {
			rels = append(rels, rel)
		}
		sort.Strings(rels)
		for _, rel := range rels {
			cmd.Printf("    %s: %s\n", rel, paper.Links[rel])
		}
	}

	cmd.Printf("\n%s\n", paper.Abstract)
	return nil
}

func runPaperDelete(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	if err := paperService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	cmd.Printf("Paper %s removed from the cache.\n", args[0])
	return nil
}

func runPaperOpen(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	if err := paperService.Open(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to open paper: %w", err)
	}

	cmd.Printf("Opened %s.\n", args[0])
	return nil
}

func runPaperInteractions(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	interactions, err := paperService.Interactions(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list interactions: %w", err)
	}

	if len(interactions) == 0 {
		cmd.Printf("No interactions recorded for %s.\n", args[0])
		return nil
	}

	for i := range interactions {
		cmd.Printf("  %s  %s\n", interactions[i].CreatedAt.Local().Format(timestampLayout), interactions[i].Kind)
	}
	return nil
}

func runSummaryGet(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	summary, err := paperService.GetSummary(cmd.Context(), args[0], summaryLanguage)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no %s summary for %s (try 'papercache paper summary generate')", summaryLanguage, args[0])
		}
		return fmt.Errorf("failed to get summary: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}

func runSummarySet(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	content := strings.Join(args[1:], " ")
	summary, err := paperService.SetSummary(cmd.Context(), args[0], summaryLanguage, content)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}

	cmd.Printf("Saved %s summary for %s.\n", summary.Language, summary.PaperID)
	return nil
}

func runSummaryGenerate(cmd *cobra.Command, args []string) error {
	if paperService == nil {
		return errors.New("paper service not configured")
	}

	cmd.Printf("Summarising %s in %s...\n", args[0], summaryLanguage)
	summary, err := paperService.GenerateSummary(cmd.Context(), args[0], summaryLanguage)
	if err != nil {
		if errors.Is(err, domain.ErrExpansionUnavailable) {
			return fmt.Errorf("failed to generate summary: %w (run 'papercache settings expansion' to configure)", err)
		}
		return fmt.Errorf("failed to generate summary: %w", err)
	}

	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, summary *domain.Summary) {
	w := cmd.OutOrStdout()
	header := fmt.Sprintf("Summary of %s (%s)", summary.PaperID, summary.Language)
	if summary.Model != "" {
		header += " by " + summary.Model
	}
	cmd.Println(styled(w, titleStyle, header))
	cmd.Println()
	cmd.Println(summary.Content)
}
