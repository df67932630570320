// Package tui provides an interactive terminal interface for following
// ingestion jobs and asking questions about processed filings.
package tui

import (
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the TUI.
type Ports struct {
	// Ingestion starts, lists and cancels processing jobs.
	Ingestion driving.IngestionService

	// Query answers questions against processed filings.
	Query driving.QueryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
