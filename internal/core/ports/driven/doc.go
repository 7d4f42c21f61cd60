// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PaperStore: Local paper cache (metadata and vectors)
//   - RangeStore: Fetched offset ranges per corpus filter
//   - RemoteCorpus: Paginated access to the remote paper corpus
//   - ConfigStore: Application configuration
//   - SchedulerStore: Scheduled task state and history
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, backfill is disabled.
//   - QueryExpander: Translates and embeds search queries. Without it, semantic search is disabled.
//   - Summariser: Generates paper summaries. Without it, summaries can only be set manually.
//   - AnnotationStore, HistoryStore: Summaries, interactions and search history.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
