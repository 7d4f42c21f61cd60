package mcp

import (
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides semantic search over the cache.
	Search driving.SearchService

	// Papers manages cached papers and summaries.
	Papers driving.PaperService

	// Sync mirrors the remote corpus.
	Sync driving.SyncCoordinator

	// Backfill computes missing vectors.
	Backfill driving.BackfillScheduler

	// Settings supplies the corpus filter and search defaults.
	Settings driving.SettingsService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

// settings returns the current settings, or defaults when unavailable.
func (p *Ports) settings() domain.AppSettings {
	if p.Settings == nil {
		return domain.DefaultAppSettings()
	}
	s, err := p.Settings.Get()
	if err != nil || s == nil {
		return domain.DefaultAppSettings()
	}
	return *s
}
