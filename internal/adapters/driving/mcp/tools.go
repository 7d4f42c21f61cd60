package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// SearchInput is the input schema for the search_papers tool.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the search query, in any language"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum cosine similarity (default from settings)"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default from settings)"`
}

// SearchOutput is the output schema for the search_papers tool.
type SearchOutput struct {
	Results    []SearchResultOutput `json:"results"`
	Count      int                  `json:"count"`
	Matched    int                  `json:"matched"`
	Considered int                  `json:"considered"`
	Translated string               `json:"translated,omitempty"`
	Synonyms   []string             `json:"synonyms,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	PaperID   string    `json:"paper_id"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	Authors   []string  `json:"authors,omitempty"`
	URL       string    `json:"url,omitempty"`
	Published time.Time `json:"published"`
	Score     float64   `json:"score"`
}

// SyncInput is the input schema for the start_sync tool.
type SyncInput struct {
	Full bool `json:"full,omitempty" jsonschema:"re-walk the whole corpus instead of resuming"`
}

// SyncStatusInput is the input schema for the sync_status tool.
type SyncStatusInput struct{}

// SyncStatusOutput is the output schema for sync tools.
type SyncStatusOutput struct {
	Filter    string `json:"filter"`
	Mode      string `json:"mode,omitempty"`
	State     string `json:"state"`
	Fetched   int    `json:"fetched"`
	Remaining int    `json:"remaining"`
	Total     int    `json:"total"`
	LastError string `json:"last_error,omitempty"`
}

// BackfillInput is the input schema for the backfill tools.
type BackfillInput struct{}

// BackfillOutput is the output schema for the backfill tools.
type BackfillOutput struct {
	Running   bool    `json:"running"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	Fraction  float64 `json:"fraction"`
	LastError string  `json:"last_error,omitempty"`
}

// PaperInput is the input schema for the get_paper tool.
type PaperInput struct {
	ID       string `json:"id" jsonschema:"the paper identifier, e.g. 2401.01234"`
	Language string `json:"language,omitempty" jsonschema:"summary language to include, e.g. en"`
}

// PaperOutput is the output schema for the get_paper tool.
type PaperOutput struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Abstract   string            `json:"abstract"`
	Authors    []string          `json:"authors"`
	Categories []string          `json:"categories"`
	Published  time.Time         `json:"published"`
	Links      map[string]string `json:"links,omitempty"`
	Embedded   bool              `json:"embedded"`
	Summary    string            `json:"summary,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_papers",
		Description: "Semantic search across cached papers; queries are translated and expanded first",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_paper",
		Description: "Get a cached paper by ID, optionally with a stored summary",
	}, s.handleGetPaper)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "sync_status",
		Description: "Report the progress of the current or last corpus sync",
	}, s.handleSyncStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "start_sync",
		Description: "Start mirroring the configured corpus slice in the background",
	}, s.handleStartSync)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "backfill",
		Description: "Start computing embeddings for cached papers that lack them",
	}, s.handleBackfill)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "backfill_status",
		Description: "Report the progress of the current or last embedding backfill",
	}, s.handleBackfillStatus)
}

// handleSearch handles the search_papers tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	defaults := s.ports.settings().Search

	threshold := input.Threshold
	if threshold <= 0 {
		threshold = defaults.Threshold
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaults.Limit
	}

	outcome, err := s.ports.Search.Search(ctx, input.Query, domain.SearchOptions{
		Threshold: threshold,
		Limit:     limit,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results:    make([]SearchResultOutput, len(outcome.Results)),
		Count:      len(outcome.Results),
		Matched:    outcome.Matched,
		Considered: outcome.Considered,
	}
	if outcome.Expansion != nil {
		output.Translated = outcome.Expansion.Translated
		output.Synonyms = outcome.Expansion.Synonyms
	}

	for i := range outcome.Results {
		paper := &outcome.Results[i].Paper
		output.Results[i] = SearchResultOutput{
			PaperID:   outcome.Results[i].PaperID,
			Title:     paper.Title,
			Abstract:  paper.Abstract,
			Authors:   paper.Authors,
			URL:       paper.Links["abs"],
			Published: paper.PublishedAt,
			Score:     outcome.Results[i].Score,
		}
	}

	return nil, output, nil
}

// handleGetPaper handles the get_paper tool invocation.
func (s *Server) handleGetPaper(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PaperInput,
) (*mcp.CallToolResult, PaperOutput, error) {
	if s.ports.Papers == nil {
		return nil, PaperOutput{}, errServiceUnavailable
	}

	paper, err := s.ports.Papers.Get(ctx, input.ID)
	if err != nil {
		return nil, PaperOutput{}, fmt.Errorf("getting paper: %w", err)
	}

	output := PaperOutput{
		ID:         paper.ID,
		Title:      paper.Title,
		Abstract:   paper.Abstract,
		Authors:    paper.Authors,
		Categories: paper.Categories,
		Published:  paper.PublishedAt,
		Links:      paper.Links,
		Embedded:   paper.HasEmbedding(),
	}

	if input.Language != "" {
		summary, err := s.ports.Papers.GetSummary(ctx, paper.ID, input.Language)
		if err == nil {
			output.Summary = summary.Content
		}
	}

	return nil, output, nil
}

// handleSyncStatus handles the sync_status tool invocation.
func (s *Server) handleSyncStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ SyncStatusInput,
) (*mcp.CallToolResult, SyncStatusOutput, error) {
	if s.ports.Sync == nil {
		return nil, SyncStatusOutput{}, errServiceUnavailable
	}
	filter := s.ports.settings().Corpus.Filter()
	return nil, syncStatusOutput(filter, s.ports.Sync.Status(filter)), nil
}

// handleStartSync starts a sync session that outlives the tool call.
func (s *Server) handleStartSync(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input SyncInput,
) (*mcp.CallToolResult, SyncStatusOutput, error) {
	if s.ports.Sync == nil {
		return nil, SyncStatusOutput{}, errServiceUnavailable
	}

	filter := s.ports.settings().Corpus.Filter()
	if err := filter.Validate(); err != nil {
		return nil, SyncStatusOutput{}, err
	}
	if s.ports.Sync.Status(filter).State == domain.SyncRunning {
		return nil, SyncStatusOutput{}, domain.ErrSyncInProgress
	}

	log := s.logger.With(zap.String("filter", filter.Key()), zap.Bool("full", input.Full))
	go func() {
		start := s.ports.Sync.StartIncremental
		if input.Full {
			start = s.ports.Sync.StartFull
		}
		progress, err := start(s.jobs, filter)
		if err != nil {
			log.Warn("sync ended with error", zap.Error(err))
			return
		}
		log.Info("sync finished", zap.String("state", string(progress.State)), zap.Int("fetched", progress.Fetched))
	}()

	status := s.ports.Sync.Status(filter)
	if status.State != domain.SyncRunning {
		status.State = domain.SyncRunning
	}
	return nil, syncStatusOutput(filter, status), nil
}

// handleBackfill starts a backfill run that outlives the tool call.
func (s *Server) handleBackfill(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ BackfillInput,
) (*mcp.CallToolResult, BackfillOutput, error) {
	if s.ports.Backfill == nil {
		return nil, BackfillOutput{}, errServiceUnavailable
	}
	if s.ports.Backfill.Status().Running {
		return nil, BackfillOutput{}, domain.ErrBackfillInProgress
	}

	batch := s.ports.settings().Embedding.BatchSize
	go func() {
		progress, err := s.ports.Backfill.Run(s.jobs, batch)
		if err != nil {
			s.logger.Warn("backfill ended with error", zap.Error(err))
			return
		}
		s.logger.Info("backfill finished", zap.Int("completed", progress.Completed), zap.Int("total", progress.Total))
	}()

	output := backfillOutput(s.ports.Backfill.Status())
	output.Running = true
	return nil, output, nil
}

// handleBackfillStatus handles the backfill_status tool invocation.
func (s *Server) handleBackfillStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ BackfillInput,
) (*mcp.CallToolResult, BackfillOutput, error) {
	if s.ports.Backfill == nil {
		return nil, BackfillOutput{}, errServiceUnavailable
	}
	return nil, backfillOutput(s.ports.Backfill.Status()), nil
}

func syncStatusOutput(filter domain.CorpusFilter, p domain.SyncProgress) SyncStatusOutput {
	state := p.State
	if state == "" {
		state = domain.SyncIdle
	}
	return SyncStatusOutput{
		Filter:    filter.Key(),
		Mode:      string(p.Mode),
		State:     string(state),
		Fetched:   p.Fetched,
		Remaining: p.Remaining,
		Total:     p.Total,
		LastError: p.LastError,
	}
}

func backfillOutput(p domain.BackfillProgress) BackfillOutput {
	return BackfillOutput{
		Running:   p.Running,
		Completed: p.Completed,
		Total:     p.Total,
		Failed:    p.Failed,
		Fraction:  p.Fraction(),
		LastError: p.LastError,
	}
}
