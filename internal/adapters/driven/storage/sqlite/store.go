package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// DatabaseFile is the file name inside the data directory.
const DatabaseFile = "filings.db"

// WAL lets status pollers in other processes read while a job writes.
const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// Store owns the database handle. The job, metadata, vector and scheduler
// ports are thin views over it.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) filings.db in dataDir and applies pending
// migrations. An empty dataDir means ~/.sercha-filings/data.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-filings", "data")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(context.Background(), migrationFiles); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) JobStore() driven.JobStore { return &jobStore{store: s} }

func (s *Store) MetadataStore() *MetadataStore { return &MetadataStore{store: s} }

// VectorIndex returns the chunk_vectors index. Closing it leaves the
// store open.
func (s *Store) VectorIndex() driven.VectorIndex { return &vectorIndex{store: s} }

func (s *Store) SchedulerStore() driven.SchedulerStore { return &schedulerStore{store: s} }

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v)
	return v, err
}
