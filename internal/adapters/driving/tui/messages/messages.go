// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewJobs lists processing jobs with live progress.
	ViewJobs
	// ViewAsk is the question and answer view.
	ViewAsk
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewJobs:
		return "jobs"
	case ViewAsk:
		return "ask"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// TickerSelected opens the ask view for a processed ticker.
type TickerSelected struct {
	Ticker string
}

// JobsLoaded carries the job list from the service.
type JobsLoaded struct {
	Jobs []domain.ProcessingJob
	Err  error
}

// JobSubmitted reports the result of starting a job.
type JobSubmitted struct {
	Job *domain.ProcessingJob
	Err error
}

// JobCancelled reports the result of a cancellation request.
type JobCancelled struct {
	JobID string
	Err   error
}

// RefreshTick triggers a periodic reload of the job list. Ticks from an
// earlier visit to the view carry a stale generation and are dropped.
type RefreshTick struct {
	Generation int
}

// AnswerReceived carries the result of a question.
type AnswerReceived struct {
	Question string
	Result   *domain.QueryResult
	Err      error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
