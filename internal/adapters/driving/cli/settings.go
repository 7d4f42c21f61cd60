package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the mirrored corpus slice, AI providers and search defaults.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure categories and AI providers step by step.`,
	RunE:  runSettingsWizard,
}

var settingsCategoriesCmd = &cobra.Command{
	Use:   "categories <category>...",
	Short: "Set the mirrored corpus categories",
	Long: `Set the category tags mirrored by sync, for example:

  papercache settings categories cs.CL cs.IR

Changing categories starts a new corpus slice; ranges fetched for the
previous slice are kept and reused if you switch back.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsCategories,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used by backfill and search.`,
	RunE:  runSettingsEmbedding,
}

var settingsExpansionCmd = &cobra.Command{
	Use:   "expansion",
	Short: "Configure query expansion provider",
	Long:  `Configure the chat model used to translate and expand queries and to write summaries.`,
	RunE:  runSettingsExpansion,
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check settings and ping configured providers",
	RunE:  runSettingsValidate,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsCategoriesCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsExpansionCmd)
	settingsCmd.AddCommand(settingsValidateCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Corpus]")
	cmd.Printf("  Categories: %s\n", strings.Join(settings.Corpus.Categories, ", "))
	cmd.Printf("  Window: %s to %s\n", formatBound(settings.Corpus.From), formatBound(settings.Corpus.To))
	cmd.Printf("  Filter key: %s\n", settings.Corpus.Filter().Key())
	cmd.Printf("  Requests/s: %.2f\n", settings.Corpus.RequestsPerSecond)
	cmd.Println()

	cmd.Println("[Sync]")
	cmd.Printf("  Batch size: %d\n", settings.Sync.BatchSize)
	cmd.Printf("  Max attempts: %d\n", settings.Sync.MaxAttempts)
	cmd.Printf("  Backoff: %s to %s\n", settings.Sync.InitialBackoff, settings.Sync.MaxBackoff)
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Printf("  Batch size: %d\n", settings.Embedding.BatchSize)
	cmd.Println()

	cmd.Println("[Expansion]")
	printProvider(cmd, settings.Expansion.Provider, settings.Expansion.Model,
		settings.Expansion.BaseURL, settings.Expansion.APIKey, settings.Expansion.IsConfigured())
	cmd.Printf("  Cache size: %d\n", settings.Expansion.CacheSize)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Threshold: %.2f\n", settings.Search.Threshold)
	cmd.Printf("  Limit: %d\n", settings.Search.Limit)
	cmd.Println()

	cmd.Println("[Scheduler]")
	if settings.Scheduler.Enabled {
		cmd.Printf("  Enabled: yes\n")
	} else {
		cmd.Printf("  Enabled: no\n")
	}
	if settings.Scheduler.SyncCron != "" {
		cmd.Printf("  Sync cron: %s\n", settings.Scheduler.SyncCron)
	}
	if settings.Scheduler.BackfillCron != "" {
		cmd.Printf("  Backfill cron: %s\n", settings.Scheduler.BackfillCron)
	}
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'papercache settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	cmd.Printf("  Model: %s\n", model)
	if provider.IsLocal() || baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.Format(dateLayout)
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("papercache Settings Wizard")
	cmd.Println("==========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Corpus Categories")
	cmd.Println("-------------------------")
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	current := strings.Join(settings.Corpus.Categories, " ")
	cmd.Printf("Enter categories separated by spaces [%s]: ", current)
	if input := readLine(reader); input != "" {
		if err := settingsService.SetCategories(strings.Fields(input)); err != nil {
			return fmt.Errorf("failed to set categories: %w", err)
		}
	}
	cmd.Println()

	cmd.Println("Step 2: Configure Embedding Provider")
	cmd.Println("------------------------------------")
	cmd.Println("Embeddings power semantic search over the cache.")
	cmd.Println()
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Step 3: Configure Query Expansion Provider")
	cmd.Println("------------------------------------------")
	cmd.Println("A chat model translates queries into English and adds synonyms.")
	cmd.Println()
	if err := configureExpansionProvider(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsCategories(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.SetCategories(args); err != nil {
		return fmt.Errorf("failed to set categories: %w", err)
	}

	filter := domain.CorpusFilter{Categories: args}.Normalized()
	cmd.Printf("Categories set to: %s\n", strings.Join(filter.Categories, ", "))
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsExpansion(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	return configureExpansionProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsValidate(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	w := cmd.OutOrStdout()
	if settings.Embedding.IsConfigured() {
		cmd.Print("Embedding provider... ")
		if err := settingsService.ValidateEmbeddingConfig(); err != nil {
			cmd.Println(styled(w, errorStyle, "FAILED"))
			return fmt.Errorf("embedding provider: %w", err)
		}
		cmd.Println(styled(w, successStyle, "OK"))
	}
	if settings.Expansion.IsConfigured() {
		cmd.Print("Expansion provider... ")
		if err := settingsService.ValidateExpansionConfig(); err != nil {
			cmd.Println(styled(w, errorStyle, "FAILED"))
			return fmt.Errorf("expansion provider: %w", err)
		}
		cmd.Println(styled(w, successStyle, "OK"))
	}

	cmd.Println("Configuration is valid.")
	return nil
}

// providerPrompt collects a provider, model and API key from the user.
func providerPrompt(
	cmd *cobra.Command,
	reader *bufio.Reader,
	title string,
	defaults map[domain.AIProvider]string,
) (domain.AIProvider, string, string, error) {
	cmd.Println(title)
	providers := domain.AllProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return "", "", "", errors.New("API key is required for this provider")
		}
	}
	return selected, model, apiKey, nil
}

//nolint:dupl // Similar to configureExpansionProvider, kept separate for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	provider, model, apiKey, err := providerPrompt(cmd, reader, "Select Embedding Provider", domain.DefaultEmbeddingModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider, kept separate for CLI flow clarity
func configureExpansionProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	provider, model, apiKey, err := providerPrompt(cmd, reader, "Select Query Expansion Provider", domain.DefaultChatModels())
	if err != nil {
		return err
	}

	if err := settingsService.SetExpansionProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure expansion provider: %w", err)
	}

	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateExpansionConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("expansion configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Expansion provider configured: %s (%s)\n\n", provider.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
