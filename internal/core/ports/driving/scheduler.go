package driving

import "context"

// Scheduler runs periodic maintenance, currently the pruning of old jobs.
type Scheduler interface {
	// Start runs due tasks until ctx ends or Stop is called.
	Start(ctx context.Context) error
	Stop() error
}
