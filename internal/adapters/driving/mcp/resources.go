package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for papercache resources.
	uriScheme = "papercache://"

	// recentPapers is the number of papers listed by the papers resource.
	recentPapers = 50

	// recentSearches is the number of searches listed by the history resource.
	recentSearches = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "papers",
		Name:        "papers",
		Description: "Most recently published cached papers",
		MIMEType:    "application/json",
	}, s.handlePapersResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Cache size, pending embeddings and fetched ranges",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "history",
		Name:        "history",
		Description: "Recent semantic searches",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "papers/{paperId}",
		Name:        "paper-abstract",
		Description: "Title and abstract of a cached paper",
		MIMEType:    "text/plain",
	}, s.handlePaperResource)
}

// handlePapersResource lists recent cached papers.
func (s *Server) handlePapersResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Papers == nil {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	papers, err := s.ports.Papers.List(ctx, recentPapers, 0)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}

	type paperInfo struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Published time.Time `json:"published"`
		Embedded  bool      `json:"embedded"`
	}

	infos := make([]paperInfo, len(papers))
	for i := range papers {
		infos[i] = paperInfo{
			ID:        papers[i].ID,
			Title:     papers[i].Title,
			Published: papers[i].PublishedAt,
			Embedded:  papers[i].HasEmbedding(),
		}
	}

	return marshalResult(req.Params.URI, infos)
}

// handleStatsResource summarises the cache.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Papers == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	stats, err := s.ports.Papers.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cache stats: %w", err)
	}

	type rangeInfo struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}
	info := struct {
		Papers         int                    `json:"papers"`
		MissingVectors int                    `json:"missing_vectors"`
		Ranges         map[string][]rangeInfo `json:"ranges"`
	}{
		Papers:         stats.Papers,
		MissingVectors: stats.MissingVectors,
		Ranges:         make(map[string][]rangeInfo, len(stats.Ranges)),
	}
	for key, ranges := range stats.Ranges {
		for _, r := range ranges {
			info.Ranges[key] = append(info.Ranges[key], rangeInfo{Start: r.Start, End: r.End})
		}
	}

	return marshalResult(req.Params.URI, info)
}

// handleHistoryResource lists recent searches.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	records, err := s.ports.Search.History(ctx, recentSearches)
	if err != nil {
		return nil, fmt.Errorf("listing search history: %w", err)
	}

	type searchInfo struct {
		Query      string    `json:"query"`
		Translated string    `json:"translated,omitempty"`
		Results    int       `json:"results"`
		At         time.Time `json:"at"`
	}

	infos := make([]searchInfo, len(records))
	for i := range records {
		infos[i] = searchInfo{
			Query:      records[i].Query,
			Translated: records[i].Translated,
			Results:    records[i].ResultCount,
			At:         records[i].CreatedAt,
		}
	}

	return marshalResult(req.Params.URI, infos)
}

// handlePaperResource returns the title and abstract of a paper.
func (s *Server) handlePaperResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Papers == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	paperID := extractPaperID(req.Params.URI)
	if paperID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	paper, err := s.ports.Papers.Get(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("getting paper: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     paper.Title + "\n\n" + paper.Abstract,
		}},
	}, nil
}

// extractPaperID extracts the paper ID from a URI like papercache://papers/{paperId}.
func extractPaperID(uri string) string {
	const prefix = uriScheme + "papers/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}

func marshalResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return jsonResult(uri, string(data)), nil
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}
