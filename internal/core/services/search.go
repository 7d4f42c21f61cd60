package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
	"github.com/custodia-labs/papercache/internal/logger"
	"github.com/custodia-labs/papercache/internal/metrics"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// CosineSimilarity returns the cosine of the angle between a and b.
// ok is false when either vector is empty, their lengths differ, either
// has zero magnitude, or a component is NaN or infinite.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if !finite(dot) || !finite(normA) || !finite(normB) || normA == 0 || normB == 0 {
		return 0, false
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp rounding noise so self-similarity is exactly representable.
	return math.Max(-1, math.Min(1, score)), true
}

// RankResult is the output of Rank.
type RankResult struct {
	// Results holds matches at or above the threshold, best first.
	Results []domain.SearchResult

	// Considered is the number of papers with a usable vector.
	Considered int
}

// Rank scores papers against query and keeps those at or above threshold.
// Papers without a usable vector are skipped. Ties are broken by newer
// PublishedAt, then by ascending ID.
func Rank(query []float32, threshold float64, papers []domain.Paper) RankResult {
	var result RankResult
	for i := range papers {
		p := &papers[i]
		if !p.HasEmbedding() || len(p.Embedding) != len(query) {
			continue
		}
		score, ok := CosineSimilarity(query, p.Embedding)
		if !ok {
			// A zero query matches nothing but the paper vector is usable.
			if m := magnitude(p.Embedding); finite(m) && m > 0 {
				result.Considered++
			}
			continue
		}
		result.Considered++
		if score < threshold {
			continue
		}
		result.Results = append(result.Results, domain.SearchResult{
			PaperID: p.ID,
			Score:   score,
			Paper:   *p,
		})
	}

	sort.SliceStable(result.Results, func(i, j int) bool {
		a, b := result.Results[i], result.Results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Paper.PublishedAt.Equal(b.Paper.PublishedAt) {
			return a.Paper.PublishedAt.After(b.Paper.PublishedAt)
		}
		return a.PaperID < b.PaperID
	})
	return result
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SearchService ranks cached papers against expanded queries.
type SearchService struct {
	expander driven.QueryExpander
	papers   driven.PaperStore
	history  driven.HistoryStore
}

// NewSearchService creates a new search service.
// expander may be nil, in which case Search returns domain.ErrExpansionUnavailable.
func NewSearchService(
	expander driven.QueryExpander,
	papers driven.PaperStore,
	history driven.HistoryStore,
) *SearchService {
	return &SearchService{
		expander: expander,
		papers:   papers,
		history:  history,
	}
}

// Search expands the query and ranks every cached vector against it.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchOutcome, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q (threshold %.2f, limit %d)", query, opts.Threshold, opts.Limit)

	outcome, err := s.search(ctx, query, opts)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.SearchMatches.Observe(float64(outcome.Matched))
	return outcome, nil
}

func (s *SearchService) search(
	ctx context.Context, query string, opts domain.SearchOptions,
) (*domain.SearchOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", domain.ErrInvalidInput, opts.Limit)
	}
	if s.expander == nil {
		return nil, domain.ErrExpansionUnavailable
	}

	expansion, err := s.expander.Expand(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("expand query: %w", err)
	}
	if len(expansion.Vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", domain.ErrMalformedResponse)
	}
	logger.Debug("Expanded: %q synonyms=%v", expansion.Translated, expansion.Synonyms)

	papers, err := s.papers.ListWithVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}

	ranked := Rank(expansion.Vector, opts.Threshold, papers)
	outcome := &domain.SearchOutcome{
		Considered: ranked.Considered,
		Matched:    len(ranked.Results),
		Expansion:  &expansion,
	}
	results := ranked.Results
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	logger.Debug("Matched %d of %d papers", outcome.Matched, outcome.Considered)

	if !opts.SkipHistory && s.history != nil {
		record := &domain.SearchHistoryRecord{
			ID:          uuid.New().String(),
			Query:       query,
			Translated:  expansion.Translated,
			Synonyms:    expansion.Synonyms,
			QueryVector: expansion.Vector,
			ResultCount: len(results),
			CreatedAt:   time.Now(),
		}
		if err := s.history.AppendSearchHistory(ctx, record); err != nil {
			return nil, fmt.Errorf("append search history: %w", err)
		}
		outcome.HistoryID = record.ID
	}

	outcome.Results = make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.Paper.Embedding = nil
		outcome.Results[i] = r
	}
	return outcome, nil
}

// History returns recent searches, newest first.
func (s *SearchService) History(ctx context.Context, limit int) ([]domain.SearchHistoryRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.ListSearchHistory(ctx, limit)
}
