// Package domain defines the core business entities for sercha-filings.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ProcessingJob: A phased ingestion run for one (ticker, time range)
//   - RawFiling: Downloaded bytes for one regulatory filing
//   - ParsedDocument: Normalised, sectioned text for one filing
//   - Chunk: A retrievable unit within a document
//   - IndexEntry: A chunk's vector plus its partition metadata
//   - QueryResult: A grounded answer with citations
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
