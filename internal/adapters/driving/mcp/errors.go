// Package mcp provides an MCP (Model Context Protocol) server adapter for papercache.
// It lets AI assistants search the local paper cache and drive sync and backfill.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// errServiceUnavailable is returned by tools whose backing service is not wired.
var errServiceUnavailable = errors.New("mcp: service not configured")
