package domain

import (
	"strings"
	"time"
)

// Paper represents a document mirrored from the remote corpus.
// ID is the only deduplication key: re-fetching a known ID updates the
// stored record instead of adding a new one.
type Paper struct {
	// ID is the corpus identifier (e.g. "2401.01234"), stable across re-sync.
	ID string

	// Title is the paper title.
	Title string

	// Abstract is the free-text abstract.
	Abstract string

	// Authors is the ordered author list.
	Authors []string

	// Categories is the ordered set of category tags (e.g. "cs.CL").
	Categories []string

	// PublishedAt is when the first version was published.
	PublishedAt time.Time

	// UpdatedAt is when the corpus last updated the record.
	UpdatedAt time.Time

	// Links holds external links keyed by relation (e.g. "abs", "pdf").
	Links map[string]string

	// Embedding is the vector representation. Nil until backfill computes it.
	// A metadata-only upsert (nil Embedding) never clears a stored vector.
	Embedding []float32
}

// HasEmbedding reports whether the paper carries a vector.
func (p *Paper) HasEmbedding() bool {
	return len(p.Embedding) > 0
}

// EmbeddingText returns the text submitted to the embedding provider,
// truncated to maxRunes characters. A non-positive maxRunes disables truncation.
func (p *Paper) EmbeddingText(maxRunes int) string {
	text := strings.TrimSpace(p.Title)
	if abstract := strings.TrimSpace(p.Abstract); abstract != "" {
		if text != "" {
			text += "\n\n"
		}
		text += abstract
	}
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// Summary is a generated summary of a paper in one language.
type Summary struct {
	// PaperID links to the summarised Paper.
	PaperID string

	// Language is the summary language code (e.g. "en", "zh").
	Language string

	// Content is the summary text.
	Content string

	// Model identifies the model that produced the summary.
	Model string

	// CreatedAt is when the summary was stored.
	CreatedAt time.Time
}

// InteractionKind classifies a user interaction with a paper.
type InteractionKind string

// Interaction kinds.
const (
	InteractionView     InteractionKind = "view"
	InteractionLike     InteractionKind = "like"
	InteractionBookmark InteractionKind = "bookmark"
	InteractionDismiss  InteractionKind = "dismiss"
)

// IsValid reports whether k is a known interaction kind.
func (k InteractionKind) IsValid() bool {
	switch k {
	case InteractionView, InteractionLike, InteractionBookmark, InteractionDismiss:
		return true
	default:
		return false
	}
}

// Interaction records a user action on a paper.
type Interaction struct {
	ID        string
	PaperID   string
	Kind      InteractionKind
	CreatedAt time.Time
}
