package domain

import "time"

// SearchOptions configures a semantic search query.
type SearchOptions struct {
	// Threshold is the minimum cosine similarity a result must reach.
	// The engine never defaults it; callers supply their configured policy.
	Threshold float64

	// Limit is the maximum number of results (0 = unlimited).
	Limit int

	// SkipHistory disables appending the search to history.
	SkipHistory bool
}

// SearchResult is one ranked match.
type SearchResult struct {
	// PaperID identifies the matched paper.
	PaperID string

	// Score is the cosine similarity (higher = more similar).
	Score float64

	// Paper is the hydrated paper, without its embedding.
	Paper Paper
}

// SearchOutcome is the ranked result set plus match statistics.
type SearchOutcome struct {
	// Results is ordered by descending score.
	Results []SearchResult

	// Considered is the number of cached papers that had a usable vector.
	Considered int

	// Matched is the number of papers at or above the threshold, before Limit.
	Matched int

	// Expansion is the expanded query used to rank, if any.
	Expansion *QueryExpansion

	// HistoryID is the ID of the appended history record, if any.
	HistoryID string
}

// QueryExpansion is the output of the query-expansion collaborator.
type QueryExpansion struct {
	// Original is the caller's query text.
	Original string

	// Translated is the query translated to the corpus language.
	Translated string

	// Synonyms are additional expansion terms.
	Synonyms []string

	// Vector is the query embedding.
	Vector []float32
}

// SearchHistoryRecord is the audit trail of one search.
type SearchHistoryRecord struct {
	ID          string
	Query       string
	Translated  string
	Synonyms    []string
	QueryVector []float32
	ResultCount int
	CreatedAt   time.Time
}
