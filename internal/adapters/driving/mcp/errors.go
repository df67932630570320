// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants start filing ingestion, poll its progress and ask
// questions against a company's indexed filings.
package mcp

import "errors"

var (
	// ErrMissingIngestionService is returned when the ingestion service is not provided.
	ErrMissingIngestionService = errors.New("mcp: ingestion service is required")

	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("mcp: query service is required")
)
