package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotReady indicates the ticker has no complete ingestion job,
	// or an ingestion for it is still running.
	ErrNotReady = errors.New("ticker not ready for queries")

	// ErrJobInProgress indicates a non-terminal job already exists for the identity.
	ErrJobInProgress = errors.New("job in progress")

	// ErrIssuerNotFound indicates the ticker could not be resolved to an issuer.
	ErrIssuerNotFound = errors.New("issuer not found")

	// ErrNoFilings indicates the archive returned no filings for the window.
	ErrNoFilings = errors.New("no filings found")

	// ErrCancelled indicates the job observed a cancellation request.
	ErrCancelled = errors.New("cancelled")

	// ErrUnsupportedFormat indicates a parser could not handle the content.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion cannot vectorise and queries cannot be answered without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the remote rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// CancelledReason is recorded on jobs stopped by a cancellation request.
const CancelledReason = "Processing cancelled by user"
