package jobs

import "errors"

// ErrNoIngestionService indicates that no ingestion service was provided.
var ErrNoIngestionService = errors.New("ingestion service is required")
