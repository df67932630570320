// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - FilingRetriever: Fetches raw filings from the regulatory archive
//   - IssuerResolver: Resolves tickers to issuer identifiers
//   - ParserRegistry: Sniffs content and parses it into sections
//   - PostProcessorPipeline: Turns parsed documents into chunks
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Ticker-partitioned vector storage and search
//   - JobStore: Atomic job snapshot storage
//   - MetadataStore: Document, chunk and query log persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Without it, queries fail with ErrLLMUnavailable.
//   - PromptStore: Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
