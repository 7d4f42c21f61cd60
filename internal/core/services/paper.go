package services

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

// Ensure PaperService implements the interface.
var _ driving.PaperService = (*PaperService)(nil)

// DefaultSummaryLanguage is used when no language is given.
const DefaultSummaryLanguage = "en"

// PaperService manages cached papers and their annotations.
type PaperService struct {
	papers      driven.PaperStore
	annotations driven.AnnotationStore
	ranges      driven.RangeStore
	summariser  driven.Summariser

	// opener launches a URL in the system browser.
	opener func(url string) error
}

// NewPaperService creates a new paper service.
// summariser may be nil, in which case GenerateSummary returns
// domain.ErrExpansionUnavailable.
func NewPaperService(
	papers driven.PaperStore,
	annotations driven.AnnotationStore,
	ranges driven.RangeStore,
	summariser driven.Summariser,
) *PaperService {
	return &PaperService{
		papers:      papers,
		annotations: annotations,
		ranges:      ranges,
		summariser:  summariser,
		opener:      openURL,
	}
}

// Get retrieves a paper by ID.
func (s *PaperService) Get(ctx context.Context, id string) (*domain.Paper, error) {
	return s.papers.Get(ctx, strings.TrimSpace(id))
}

// List returns cached papers newest first.
func (s *PaperService) List(ctx context.Context, limit, offset int) ([]domain.Paper, error) {
	if limit < 0 || offset < 0 {
		return nil, fmt.Errorf("%w: negative limit or offset", domain.ErrInvalidInput)
	}
	return s.papers.ListByPublishedDesc(ctx, limit, offset)
}

// Delete removes a paper from the cache.
func (s *PaperService) Delete(ctx context.Context, id string) error {
	return s.papers.Delete(ctx, strings.TrimSpace(id))
}

// Clear removes every cached paper and forgets all fetched ranges, so the
// next sync starts from offset zero.
func (s *PaperService) Clear(ctx context.Context) error {
	if err := s.papers.Clear(ctx); err != nil {
		return fmt.Errorf("clear papers: %w", err)
	}
	if s.ranges != nil {
		if err := s.ranges.ClearRanges(ctx); err != nil {
			return fmt.Errorf("clear ranges: %w", err)
		}
	}
	return nil
}

// Stats summarises the cache.
func (s *PaperService) Stats(ctx context.Context) (*driving.CacheStats, error) {
	count, err := s.papers.Count(ctx)
	if err != nil {
		return nil, err
	}
	missing, err := s.papers.CountMissingVector(ctx)
	if err != nil {
		return nil, err
	}
	stats := &driving.CacheStats{Papers: count, MissingVectors: missing}
	if s.ranges != nil {
		if stats.Ranges, err = s.ranges.ListRanges(ctx); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

// SetSummary stores a summary written by the user.
func (s *PaperService) SetSummary(ctx context.Context, paperID, language, content string) (*domain.Summary, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty summary", domain.ErrInvalidInput)
	}
	return s.saveSummary(ctx, paperID, language, content, "")
}

// GenerateSummary summarises a paper with the configured language model.
func (s *PaperService) GenerateSummary(ctx context.Context, paperID, language string) (*domain.Summary, error) {
	if s.summariser == nil {
		return nil, domain.ErrExpansionUnavailable
	}
	paper, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return nil, err
	}
	content, err := s.summariser.Summarise(ctx, paper, normaliseLanguage(language))
	if err != nil {
		return nil, fmt.Errorf("summarise %s: %w", paperID, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty summary", domain.ErrMalformedResponse)
	}
	return s.saveSummary(ctx, paperID, language, content, s.summariser.ModelName())
}

func (s *PaperService) saveSummary(
	ctx context.Context, paperID, language, content, model string,
) (*domain.Summary, error) {
	if _, err := s.papers.Get(ctx, paperID); err != nil {
		return nil, err
	}
	summary := &domain.Summary{
		PaperID:   paperID,
		Language:  normaliseLanguage(language),
		Content:   content,
		Model:     model,
		CreatedAt: time.Now(),
	}
	if err := s.annotations.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	return summary, nil
}

// GetSummary returns a stored summary.
func (s *PaperService) GetSummary(ctx context.Context, paperID, language string) (*domain.Summary, error) {
	return s.annotations.GetSummary(ctx, paperID, normaliseLanguage(language))
}

// Interact records a user interaction with a paper.
func (s *PaperService) Interact(
	ctx context.Context, paperID string, kind domain.InteractionKind,
) (*domain.Interaction, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown interaction %q", domain.ErrInvalidInput, kind)
	}
	if _, err := s.papers.Get(ctx, paperID); err != nil {
		return nil, err
	}
	interaction := &domain.Interaction{
		ID:        uuid.New().String(),
		PaperID:   paperID,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
	if err := s.annotations.RecordInteraction(ctx, interaction); err != nil {
		return nil, fmt.Errorf("record interaction: %w", err)
	}
	return interaction, nil
}

// Interactions lists interactions with a paper, newest first.
func (s *PaperService) Interactions(ctx context.Context, paperID string) ([]domain.Interaction, error) {
	return s.annotations.ListInteractions(ctx, paperID)
}

// Open opens the paper's abstract page in the default browser and records a view.
func (s *PaperService) Open(ctx context.Context, paperID string) error {
	paper, err := s.papers.Get(ctx, paperID)
	if err != nil {
		return err
	}
	url := paperURL(paper)
	if url == "" {
		return fmt.Errorf("%w: paper %s has no link", domain.ErrNotFound, paperID)
	}
	if err := s.opener(url); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	_, err = s.Interact(ctx, paperID, domain.InteractionView)
	return err
}

// paperURL picks the best browser link for a paper.
func paperURL(p *domain.Paper) string {
	for _, rel := range []string{"abs", "alternate", "pdf"} {
		if link := p.Links[rel]; link != "" {
			return link
		}
	}
	return ""
}

func normaliseLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return DefaultSummaryLanguage
	}
	return language
}

// openURL opens a URL using the system default handler.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
