package driven

import (
	"context"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

// QueryExpander turns free-text queries into search vectors.
// Queries may be in any language; expansion translates them to the
// corpus language and adds synonyms before embedding.
type QueryExpander interface {
	// Expand returns the translated query, its synonyms and the query vector.
	Expand(ctx context.Context, text string) (domain.QueryExpansion, error)
}

// Summariser generates paper summaries with a language model.
type Summariser interface {
	// Summarise returns a summary of the paper in the given language.
	Summarise(ctx context.Context, paper *domain.Paper, language string) (string, error)

	// ModelName returns the name of the language model being used.
	ModelName() string
}
