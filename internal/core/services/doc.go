// Package services holds the filings pipeline and query logic behind the
// driving ports: ingestion, indexing, synthesis, company lookup, settings
// and scheduled maintenance. It talks to storage, EDGAR and AI providers
// only through the driven ports.
package services
