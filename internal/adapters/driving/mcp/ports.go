package mcp

import (
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
type Ports struct {
	// Ingestion starts, tracks and cancels processing jobs.
	Ingestion driving.IngestionService

	// Query answers questions against indexed filings.
	Query driving.QueryService

	// Company resolves tickers. Optional; enables ticker suggestions.
	Company driving.CompanyService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
