package domain

import (
	"fmt"
	"strings"
	"time"
)

// Phase is a step of the ingestion state machine.
type Phase string

// Ingestion phases in execution order. Complete and Error are terminal.
const (
	PhaseScraping    Phase = "scraping"
	PhaseParsing     Phase = "parsing"
	PhaseChunking    Phase = "chunking"
	PhaseVectorizing Phase = "vectorizing"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
)

// phaseOrder is the fixed forward order of non-error phases.
var phaseOrder = []Phase{PhaseScraping, PhaseParsing, PhaseChunking, PhaseVectorizing, PhaseComplete}

// phaseBands maps each working phase onto its slice of overall progress.
var phaseBands = map[Phase][2]float64{
	PhaseScraping:    {0, 25},
	PhaseParsing:     {25, 50},
	PhaseChunking:    {50, 70},
	PhaseVectorizing: {70, 100},
}

// IsValid returns true if the phase is recognised.
func (p Phase) IsValid() bool {
	return p == PhaseError || p.Index() >= 0
}

// IsTerminal returns true for complete and error.
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete || p == PhaseError
}

// Index returns the position of the phase in the forward order, or -1 for error.
func (p Phase) Index() int {
	for i, q := range phaseOrder {
		if q == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. Terminal phases have no successor.
func (p Phase) Next() (Phase, bool) {
	i := p.Index()
	if i < 0 || i+1 >= len(phaseOrder) {
		return "", false
	}
	return phaseOrder[i+1], true
}

// CanTransition reports whether moving from p to next is legal.
// Only the immediate successor or error are reachable from a working phase.
func (p Phase) CanTransition(next Phase) bool {
	if p.IsTerminal() {
		return false
	}
	if next == PhaseError {
		return true
	}
	n, ok := p.Next()
	return ok && n == next
}

// String returns the string representation.
func (p Phase) String() string {
	return string(p)
}

// ValidTimeRanges lists the accepted look-back windows in years.
var ValidTimeRanges = []int{1, 3, 5}

// DefaultTimeRangeYears is used when a caller does not pick a window.
const DefaultTimeRangeYears = 3

// JobKey is the identity of an ingestion run.
type JobKey struct {
	Ticker         string
	TimeRangeYears int
}

// NewJobKey normalises the ticker and validates the time range.
func NewJobKey(ticker string, years int) (JobKey, error) {
	t := NormaliseTicker(ticker)
	if t == "" {
		return JobKey{}, fmt.Errorf("%w: ticker is required", ErrInvalidInput)
	}
	valid := false
	for _, y := range ValidTimeRanges {
		if y == years {
			valid = true
			break
		}
	}
	if !valid {
		return JobKey{}, fmt.Errorf("%w: time range must be 1, 3, or 5 years, got %d", ErrInvalidInput, years)
	}
	return JobKey{Ticker: t, TimeRangeYears: years}, nil
}

// String returns a stable textual form, e.g. "ACME/3y".
func (k JobKey) String() string {
	return fmt.Sprintf("%s/%dy", k.Ticker, k.TimeRangeYears)
}

// Window returns the start and end of the filing window ending at now.
func (k JobKey) Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(0, 0, -365*k.TimeRangeYears), now
}

// NormaliseTicker trims and upper-cases a ticker symbol.
func NormaliseTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ProcessingJob is a snapshot of one ingestion run.
// Snapshots are values: stores replace them whole so readers never
// observe a partially updated counter set.
type ProcessingJob struct {
	// ID uniquely identifies the job.
	ID string `json:"job_id"`

	// Ticker is the upper-cased company ticker.
	Ticker string `json:"ticker"`

	// TimeRangeYears is the look-back window.
	TimeRangeYears int `json:"time_range"`

	// Phase is the current state machine phase.
	Phase Phase `json:"phase"`

	// FailedPhase records the phase that was running when the job errored.
	FailedPhase Phase `json:"failed_phase,omitempty"`

	// Progress is the overall completion percentage (0-100).
	Progress float64 `json:"progress"`

	DocumentsFound     int `json:"documents_found"`
	DocumentsProcessed int `json:"documents_processed"`
	DocumentsFailed    int `json:"documents_failed"`
	ChunksCreated      int `json:"chunks_created"`
	ChunksVectorized   int `json:"chunks_vectorized"`
	ChunksFailed       int `json:"chunks_failed"`

	// PhaseCompleted and PhaseTotal count work items in the current phase.
	PhaseCompleted int `json:"phase_completed"`
	PhaseTotal     int `json:"phase_total"`

	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the failure reason for jobs in the error phase.
	Error string `json:"error_message,omitempty"`

	// Cancelled is true when the error was caused by a cancellation request.
	Cancelled bool `json:"cancelled,omitempty"`

	// EstimatedTimeRemaining is advisory and may be nil.
	EstimatedTimeRemaining *time.Duration `json:"estimated_time_remaining,omitempty"`
}

// Key returns the job identity.
func (j *ProcessingJob) Key() JobKey {
	return JobKey{Ticker: j.Ticker, TimeRangeYears: j.TimeRangeYears}
}

// IsTerminal returns true once the job reached complete or error.
func (j *ProcessingJob) IsTerminal() bool {
	return j.Phase.IsTerminal()
}

// PhaseFraction returns the completed fraction of the current phase (0-1).
func (j *ProcessingJob) PhaseFraction() float64 {
	if j.PhaseTotal <= 0 {
		return 0
	}
	f := float64(j.PhaseCompleted) / float64(j.PhaseTotal)
	if f > 1 {
		return 1
	}
	return f
}

// ComputeProgress derives overall progress from the phase and its counters.
// Errored jobs keep the progress they had reached.
func (j *ProcessingJob) ComputeProgress() float64 {
	switch j.Phase {
	case PhaseComplete:
		return 100
	case PhaseError:
		return j.Progress
	}
	band, ok := phaseBands[j.Phase]
	if !ok {
		return 0
	}
	return band[0] + (band[1]-band[0])*j.PhaseFraction()
}

// CountersConsistent checks the counter inequalities that hold for every snapshot.
func (j *ProcessingJob) CountersConsistent() bool {
	return j.DocumentsProcessed <= j.DocumentsFound &&
		j.ChunksVectorized <= j.ChunksCreated &&
		j.PhaseCompleted <= j.PhaseTotal
}
