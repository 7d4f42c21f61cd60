// Package domain defines the core business entities for papercache.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Paper: A mirrored corpus document with optional embedding
//   - FetchedRange: A half-open offset range already pulled from the corpus
//   - CorpusFilter: The category set and time window of one sync session
//   - SyncProgress / BackfillProgress: Transient run state
//   - SearchHistoryRecord, Summary, Interaction: Auxiliary cached records
//
// The range arithmetic used to plan incremental sync (MergeRanges,
// NextStartToRequest, GapSize) lives here as pure functions.
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
