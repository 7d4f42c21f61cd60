package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// Ensure PaperStore implements the interfaces.
var (
	_ driven.PaperStore      = (*PaperStore)(nil)
	_ driven.AnnotationStore = (*PaperStore)(nil)
	_ driven.HistoryStore    = (*PaperStore)(nil)
)

// PaperStore is an in-memory implementation of the paper cache ports.
// Returned papers are copies; callers may modify them freely.
type PaperStore struct {
	mu           sync.RWMutex
	papers       map[string]domain.Paper
	summaries    map[string]domain.Summary
	interactions []domain.Interaction
	history      []domain.SearchHistoryRecord
}

// NewPaperStore creates a new in-memory paper store.
func NewPaperStore() *PaperStore {
	return &PaperStore{
		papers:    make(map[string]domain.Paper),
		summaries: make(map[string]domain.Summary),
	}
}

// UpsertOne inserts or updates a paper, preserving a stored vector when
// the update carries none.
func (s *PaperStore) UpsertOne(_ context.Context, paper *domain.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsert(paper)
	return nil
}

// UpsertMany upserts all papers atomically.
func (s *PaperStore) UpsertMany(_ context.Context, papers []domain.Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range papers {
		s.upsert(&papers[i])
	}
	return nil
}

// upsert writes one paper (caller must hold lock).
func (s *PaperStore) upsert(paper *domain.Paper) {
	stored := clonePaper(*paper)
	if stored.Embedding == nil {
		if existing, ok := s.papers[paper.ID]; ok {
			stored.Embedding = existing.Embedding
		}
	}
	s.papers[paper.ID] = stored
}

// Get retrieves a paper by ID.
func (s *PaperStore) Get(_ context.Context, id string) (*domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paper, ok := s.papers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := clonePaper(paper)
	return &clone, nil
}

// Delete removes a paper and its summaries.
func (s *PaperStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.papers, id)
	for key, summary := range s.summaries {
		if summary.PaperID == id {
			delete(s.summaries, key)
		}
	}
	return nil
}

// Clear removes every cached paper.
func (s *PaperStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.papers = make(map[string]domain.Paper)
	s.summaries = make(map[string]domain.Summary)
	return nil
}

// ListByPublishedDesc returns papers newest first.
func (s *PaperStore) ListByPublishedDesc(_ context.Context, limit, offset int) ([]domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return page(s.sorted(func(domain.Paper) bool { return true }), limit, offset), nil
}

// ListMissingVector returns up to limit papers without a vector.
func (s *PaperStore) ListMissingVector(_ context.Context, limit int) ([]domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	missing := s.sorted(func(p domain.Paper) bool { return !p.HasEmbedding() })
	return page(missing, limit, 0), nil
}

// ListWithVectors returns every paper that has a vector.
func (s *PaperStore) ListWithVectors(_ context.Context) ([]domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(func(p domain.Paper) bool { return p.HasEmbedding() }), nil
}

// SetEmbeddings writes vectors for known paper IDs.
func (s *PaperStore) SetEmbeddings(_ context.Context, vectors map[string][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, vec := range vectors {
		paper, ok := s.papers[id]
		if !ok {
			continue
		}
		paper.Embedding = append([]float32(nil), vec...)
		s.papers[id] = paper
	}
	return nil
}

// Count returns the number of cached papers.
func (s *PaperStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.papers), nil
}

// CountMissingVector returns the number of papers without a vector.
func (s *PaperStore) CountMissingVector(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.papers {
		if !p.HasEmbedding() {
			count++
		}
	}
	return count, nil
}

// SaveSummary stores or replaces a summary.
func (s *PaperStore) SaveSummary(_ context.Context, summary *domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[summary.PaperID+"\x00"+summary.Language] = *summary
	return nil
}

// GetSummary returns the summary for a paper and language.
func (s *PaperStore) GetSummary(_ context.Context, paperID, language string) (*domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary, ok := s.summaries[paperID+"\x00"+language]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &summary, nil
}

// RecordInteraction appends an interaction.
func (s *PaperStore) RecordInteraction(_ context.Context, interaction *domain.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, *interaction)
	return nil
}

// ListInteractions returns interactions for a paper, newest first.
func (s *PaperStore) ListInteractions(_ context.Context, paperID string) ([]domain.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Interaction, 0)
	for i := len(s.interactions) - 1; i >= 0; i-- {
		if s.interactions[i].PaperID == paperID {
			result = append(result, s.interactions[i])
		}
	}
	return result, nil
}

// AppendSearchHistory stores a search record.
func (s *PaperStore) AppendSearchHistory(_ context.Context, record *domain.SearchHistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, *record)
	return nil
}

// ListSearchHistory returns the most recent records, newest first.
func (s *PaperStore) ListSearchHistory(_ context.Context, limit int) ([]domain.SearchHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.SearchHistoryRecord, 0)
	for i := len(s.history) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, s.history[i])
	}
	return result, nil
}

// sorted returns matching papers newest first, ties by ID (caller must hold lock).
func (s *PaperStore) sorted(match func(domain.Paper) bool) []domain.Paper {
	result := make([]domain.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		if match(p) {
			result = append(result, clonePaper(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].PublishedAt.Equal(result[j].PublishedAt) {
			return result[i].PublishedAt.After(result[j].PublishedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func page(papers []domain.Paper, limit, offset int) []domain.Paper {
	if offset > 0 {
		if offset >= len(papers) {
			return []domain.Paper{}
		}
		papers = papers[offset:]
	}
	if limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	return papers
}

func clonePaper(p domain.Paper) domain.Paper {
	p.Authors = append([]string(nil), p.Authors...)
	p.Categories = append([]string(nil), p.Categories...)
	if p.Embedding != nil {
		p.Embedding = append([]float32(nil), p.Embedding...)
	}
	if p.Links != nil {
		links := make(map[string]string, len(p.Links))
		for k, v := range p.Links {
			links[k] = v
		}
		p.Links = links
	}
	return p
}
