package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

func TestExtractPaperID(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "new style identifier",
			uri:      "papercache://papers/2401.01234",
			expected: "2401.01234",
		},
		{
			name:     "old style identifier keeps archive prefix",
			uri:      "papercache://papers/hep-th/9901001",
			expected: "hep-th/9901001",
		},
		{
			name:     "invalid prefix",
			uri:      "file://papers/2401.01234",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPaperID(tt.uri))
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handlePapersResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil paper service returns empty list", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		result, err := server.handlePapersResource(ctx, makeReadResourceRequest("papercache://papers"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})

	t.Run("lists papers", func(t *testing.T) {
		papers := &mockPaperService{papers: []domain.Paper{
			{ID: "2401.00002", Title: "Second", PublishedAt: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
			{ID: "2401.00001", Title: "First", Embedding: []float32{0.1}},
		}}
		server := newTestServer(t, &Ports{Papers: papers})

		result, err := server.handlePapersResource(ctx, makeReadResourceRequest("papercache://papers"))
		require.NoError(t, err)

		var infos []map[string]any
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
		require.Len(t, infos, 2)
		assert.Equal(t, "2401.00002", infos[0]["id"])
		assert.Equal(t, false, infos[0]["embedded"])
		assert.Equal(t, true, infos[1]["embedded"])
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
	})

	t.Run("list error", func(t *testing.T) {
		server := newTestServer(t, &Ports{Papers: &mockPaperService{err: errors.New("db closed")}})

		_, err := server.handlePapersResource(ctx, makeReadResourceRequest("papercache://papers"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing papers")
	})
}

func TestServer_handleStatsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("nil paper service is not found", func(t *testing.T) {
		server := newTestServer(t, &Ports{})
		_, err := server.handleStatsResource(ctx, makeReadResourceRequest("papercache://stats"))
		require.Error(t, err)
	})

	t.Run("reports ranges", func(t *testing.T) {
		papers := &mockPaperService{stats: &driving.CacheStats{
			Papers:         150,
			MissingVectors: 40,
			Ranges: map[string][]domain.FetchedRange{
				"cs.CL": {{Start: 0, End: 100}, {Start: 200, End: 250}},
			},
		}}
		server := newTestServer(t, &Ports{Papers: papers})

		result, err := server.handleStatsResource(ctx, makeReadResourceRequest("papercache://stats"))
		require.NoError(t, err)

		var info struct {
			Papers         int `json:"papers"`
			MissingVectors int `json:"missing_vectors"`
			Ranges         map[string][]struct {
				Start int `json:"start"`
				End   int `json:"end"`
			} `json:"ranges"`
		}
		require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &info))
		assert.Equal(t, 150, info.Papers)
		assert.Equal(t, 40, info.MissingVectors)
		require.Len(t, info.Ranges["cs.CL"], 2)
		assert.Equal(t, 200, info.Ranges["cs.CL"][1].Start)
	})
}

func TestServer_handleHistoryResource(t *testing.T) {
	ctx := context.Background()

	search := &mockSearchService{history: []domain.SearchHistoryRecord{
		{ID: "h1", Query: "注意力", Translated: "attention", ResultCount: 4},
	}}
	server := newTestServer(t, &Ports{Search: search})

	result, err := server.handleHistoryResource(ctx, makeReadResourceRequest("papercache://history"))
	require.NoError(t, err)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "attention", infos[0]["translated"])
	assert.InDelta(t, 4, infos[0]["results"], 0)
}

func TestServer_handlePaperResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns title and abstract", func(t *testing.T) {
		papers := &mockPaperService{paper: &domain.Paper{ID: "2401.00001", Title: "Title", Abstract: "Abstract"}}
		server := newTestServer(t, &Ports{Papers: papers})

		result, err := server.handlePaperResource(ctx, makeReadResourceRequest("papercache://papers/2401.00001"))

		require.NoError(t, err)
		assert.Equal(t, "Title\n\nAbstract", result.Contents[0].Text)
		assert.Equal(t, "text/plain", result.Contents[0].MIMEType)
	})

	t.Run("bad URI", func(t *testing.T) {
		server := newTestServer(t, &Ports{Papers: &mockPaperService{}})
		_, err := server.handlePaperResource(ctx, makeReadResourceRequest("papercache://other/x"))
		require.Error(t, err)
	})

	t.Run("lookup error", func(t *testing.T) {
		server := newTestServer(t, &Ports{Papers: &mockPaperService{err: domain.ErrNotFound}})
		_, err := server.handlePaperResource(ctx, makeReadResourceRequest("papercache://papers/missing"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
