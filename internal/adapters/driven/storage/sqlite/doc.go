// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO. One database connection backs several ports:
//
//   - JobStore: processing job snapshots, readable from other processes
//   - MetadataStore: companies, filing documents, chunks and the query log
//   - VectorIndex: chunk embeddings partitioned by ticker
//   - SchedulerStore: maintenance task state and history
//
// # Schema
//
// The schema is managed through versioned migrations in the migrations/
// directory. Each migration is a pair of .up.sql and .down.sql files and
// applied versions are recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-filings/data/filings.db
package sqlite
