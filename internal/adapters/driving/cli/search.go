package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

var (
	searchLimit     int
	searchThreshold float64
	searchJSON      bool
	searchNoHistory bool
)

// abstractPreview is the number of characters of abstract shown per result.
const abstractPreview = 160

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over cached papers",
	Long: `Translates and expands the query, embeds it and ranks every cached paper
by cosine similarity. Queries may be written in any language.

Only papers at or above the similarity threshold are returned.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default from settings)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "minimum similarity (default from settings)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchNoHistory, "no-history", false, "do not record this search in history")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts := searchOptions()
	outcome, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		if errors.Is(err, domain.ErrExpansionUnavailable) || errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return fmt.Errorf("search failed: %w (run 'papercache settings' to configure AI providers)", err)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, outcome)
	}

	return outputSearchTable(cmd, outcome, opts)
}

// searchOptions resolves flag values against the configured defaults.
func searchOptions() domain.SearchOptions {
	defaults := domain.DefaultAppSettings().Search
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil && settings != nil {
			defaults = settings.Search
		}
	}

	opts := domain.SearchOptions{
		Threshold:   defaults.Threshold,
		Limit:       defaults.Limit,
		SkipHistory: searchNoHistory,
	}
	if searchThreshold > 0 {
		opts.Threshold = searchThreshold
	}
	if searchLimit > 0 {
		opts.Limit = searchLimit
	}
	return opts
}

type searchResultJSON struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Authors    []string  `json:"authors"`
	Categories []string  `json:"categories"`
	Published  time.Time `json:"published"`
	URL        string    `json:"url,omitempty"`
	Score      float64   `json:"score"`
}

type searchOutcomeJSON struct {
	Query      string             `json:"query"`
	Translated string             `json:"translated,omitempty"`
	Synonyms   []string           `json:"synonyms,omitempty"`
	Considered int                `json:"considered"`
	Matched    int                `json:"matched"`
	Results    []searchResultJSON `json:"results"`
}

func outputSearchJSON(cmd *cobra.Command, outcome *domain.SearchOutcome) error {
	out := searchOutcomeJSON{
		Considered: outcome.Considered,
		Matched:    outcome.Matched,
		Results:    make([]searchResultJSON, len(outcome.Results)),
	}
	if outcome.Expansion != nil {
		out.Query = outcome.Expansion.Original
		out.Translated = outcome.Expansion.Translated
		out.Synonyms = outcome.Expansion.Synonyms
	}
	for i := range outcome.Results {
		p := &outcome.Results[i].Paper
		out.Results[i] = searchResultJSON{
			ID:         outcome.Results[i].PaperID,
			Title:      p.Title,
			Authors:    p.Authors,
			Categories: p.Categories,
			Published:  p.PublishedAt,
			URL:        p.Links["abs"],
			Score:      outcome.Results[i].Score,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, outcome *domain.SearchOutcome, opts domain.SearchOptions) error {
	w := cmd.OutOrStdout()

	if exp := outcome.Expansion; exp != nil && exp.Translated != "" && exp.Translated != exp.Original {
		cmd.Printf("%s %s\n", styled(w, mutedStyle, "Searching for:"), exp.Translated)
	}
	if exp := outcome.Expansion; exp != nil && len(exp.Synonyms) > 0 {
		cmd.Printf("%s %s\n", styled(w, mutedStyle, "Also matching:"), strings.Join(exp.Synonyms, ", "))
	}

	if len(outcome.Results) == 0 {
		cmd.Printf("No results at or above %.2f (%d papers considered).\n", opts.Threshold, outcome.Considered)
		return nil
	}

	cmd.Printf("%d of %d matches (%d papers considered):\n", len(outcome.Results), outcome.Matched, outcome.Considered)
	cmd.Println()

	width := terminalWidth(w, 100)
	for i := range outcome.Results {
		r := &outcome.Results[i]
		title := r.Paper.Title
		if title == "" {
			title = r.PaperID
		}

		cmd.Printf("  [%d] %s %s\n", i+1, styled(w, titleStyle, title), styled(w, scoreStyle, fmt.Sprintf("(%.3f)", r.Score)))
		meta := r.PaperID
		if !r.Paper.PublishedAt.IsZero() {
			meta += " · " + r.Paper.PublishedAt.Format(dateLayout)
		}
		if len(r.Paper.Authors) > 0 {
			meta += " · " + authorLine(r.Paper.Authors)
		}
		cmd.Printf("      %s\n", styled(w, mutedStyle, meta))
		if preview := truncate(r.Paper.Abstract, min(abstractPreview, width-6)); preview != "" {
			cmd.Printf("      %s\n", preview)
		}
		cmd.Println()
	}

	return nil
}

// authorLine abbreviates long author lists.
func authorLine(authors []string) string {
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + " et al."
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
