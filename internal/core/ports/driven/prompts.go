package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptQueryExpansion translates a query and lists synonyms as JSON.
	// The prompt template expects a %s placeholder for the original query.
	PromptQueryExpansion = "query_expansion"

	// PromptSummarise summarises a paper.
	// The prompt template expects %s (language), %s (title) and %s (abstract) placeholders.
	PromptSummarise = "summarise"
)
