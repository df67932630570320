// Package jobs provides the processing jobs view for the TUI.
package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// DefaultRefreshInterval is how often the job list is reloaded.
const DefaultRefreshInterval = time.Second

// View lists processing jobs with live progress.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar
	ticker    *input.Field
	bar       progress.Model

	ingestion driving.IngestionService
	ctx       context.Context
	interval  time.Duration

	jobs       []domain.ProcessingJob
	selected   int
	generation int
	entering   bool
	err        error

	width  int
	height int
	ready  bool
}

// NewView creates a new jobs view.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingestion driving.IngestionService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 20

	ticker := input.NewTickerField(s)
	ticker.Blur()

	return &View{
		styles:    s,
		keymap:    km,
		statusbar: status.NewBar(s, km),
		ticker:    ticker,
		bar:       bar,
		ingestion: ingestion,
		ctx:       context.Background(),
		interval:  DefaultRefreshInterval,
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetRefreshInterval changes the reload period.
func (v *View) SetRefreshInterval(d time.Duration) {
	if d > 0 {
		v.interval = d
	}
}

// Init loads the jobs and starts a new refresh loop.
func (v *View) Init() tea.Cmd {
	v.generation++
	v.entering = false
	v.ticker.Blur()
	v.statusbar.Jobs(len(v.jobs))
	v.statusbar.Note("")
	return tea.Batch(v.loadJobs(), v.tick())
}

func (v *View) tick() tea.Cmd {
	gen := v.generation
	return tea.Tick(v.interval, func(time.Time) tea.Msg {
		return messages.RefreshTick{Generation: gen}
	})
}

func (v *View) loadJobs() tea.Cmd {
	return func() tea.Msg {
		if v.ingestion == nil {
			return messages.JobsLoaded{Err: ErrNoIngestionService}
		}
		jobs, err := v.ingestion.List(v.ctx)
		return messages.JobsLoaded{Jobs: jobs, Err: err}
	}
}

func (v *View) submit(ticker string) tea.Cmd {
	return func() tea.Msg {
		if v.ingestion == nil {
			return messages.JobSubmitted{Err: ErrNoIngestionService}
		}
		job, err := v.ingestion.Submit(v.ctx, driving.SubmitRequest{
			Ticker:         ticker,
			TimeRangeYears: domain.DefaultTimeRangeYears,
		})
		return messages.JobSubmitted{Job: job, Err: err}
	}
}

func (v *View) cancel(jobID string) tea.Cmd {
	return func() tea.Msg {
		if v.ingestion == nil {
			return messages.JobCancelled{JobID: jobID, Err: ErrNoIngestionService}
		}
		return messages.JobCancelled{JobID: jobID, Err: v.ingestion.Cancel(v.ctx, jobID)}
	}
}

// Update handles messages for the jobs view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.entering {
			return v.handleInputKey(msg)
		}
		return v.handleListKey(msg)

	case messages.RefreshTick:
		if msg.Generation != v.generation {
			return v, nil
		}
		return v, tea.Batch(v.loadJobs(), v.tick())

	case messages.JobsLoaded:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.err = nil
		v.jobs = msg.Jobs
		if v.selected >= len(v.jobs) {
			v.selected = len(v.jobs) - 1
		}
		if v.selected < 0 {
			v.selected = 0
		}
		v.statusbar.Jobs(len(v.jobs))
		return v, nil

	case messages.JobSubmitted:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.statusbar.Jobs(len(v.jobs))
		if msg.Job == nil {
			return v, v.loadJobs()
		}
		if msg.Job.Phase == domain.PhaseComplete {
			v.statusbar.Note(fmt.Sprintf("%s is already processed", msg.Job.Ticker))
		} else {
			v.statusbar.Note(fmt.Sprintf("Processing %s", msg.Job.Ticker))
		}
		return v, v.loadJobs()

	case messages.JobCancelled:
		if msg.Err != nil {
			v.setError(msg.Err)
			return v, nil
		}
		v.statusbar.Jobs(len(v.jobs))
		v.statusbar.Note("Cancellation requested")
		return v, v.loadJobs()
	}

	if v.entering {
		var cmd tea.Cmd
		v.ticker, cmd = v.ticker.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.Fail(err.Error())
}

func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		v.entering = false
		v.ticker.Blur()
		return v, nil
	case tea.KeyEnter:
		t := strings.TrimSpace(v.ticker.Value())
		if t == "" {
			return v, nil
		}
		v.entering = false
		v.ticker.Blur()
		v.ticker.Reset()
		v.statusbar.Busy("Starting " + strings.ToUpper(t) + "...")
		return v, v.submit(t)
	}
	var cmd tea.Cmd
	v.ticker, cmd = v.ticker.Update(msg)
	return v, cmd
}

func (v *View) handleListKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	switch k := msg.String(); {
	case keymap.Matches(k, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
		}
	case keymap.Matches(k, v.keymap.Down):
		if v.selected < len(v.jobs)-1 {
			v.selected++
		}
	case keymap.Matches(k, v.keymap.Process):
		v.entering = true
		return v, v.ticker.Focus()
	case keymap.Matches(k, v.keymap.Refresh):
		return v, v.loadJobs()
	case keymap.Matches(k, v.keymap.CancelJob):
		job := v.SelectedJob()
		if job == nil || job.IsTerminal() {
			return v, nil
		}
		return v, v.cancel(job.ID)
	case keymap.Matches(k, v.keymap.Select):
		job := v.SelectedJob()
		if job == nil {
			return v, nil
		}
		if job.Phase != domain.PhaseComplete {
			v.statusbar.Note(fmt.Sprintf("%s is not ready for questions yet", job.Ticker))
			return v, nil
		}
		ticker := job.Ticker
		return v, func() tea.Msg {
			return messages.TickerSelected{Ticker: ticker}
		}
	}
	return v, nil
}

// View renders the jobs view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 8)
	sections = append(sections, v.styles.Title.Render("Processing Jobs"), "")

	if v.entering {
		sections = append(sections, v.ticker.View(), "")
	}

	if len(v.jobs) == 0 {
		sections = append(sections, v.styles.Muted.Render("No jobs yet. Press p to process a ticker."))
	} else {
		sections = append(sections, v.renderJobs())
	}

	if job := v.SelectedJob(); job != nil && job.Phase == domain.PhaseError && job.Error != "" {
		sections = append(sections, "", v.styles.Error.Render("Error: "+job.Error))
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderJobs() string {
	lines := make([]string, 0, len(v.jobs))
	for i := range v.jobs {
		j := &v.jobs[i]
		cursor := "  "
		if i == v.selected {
			cursor = "> "
		}
		ticker := fmt.Sprintf("%-6s %dy", j.Ticker, j.TimeRangeYears)
		if i == v.selected {
			ticker = v.styles.Selected.Render(ticker)
		} else {
			ticker = v.styles.Normal.Render(ticker)
		}
		phase := v.styles.Phase(j.Phase).Render(fmt.Sprintf("%-11s", j.Phase))
		counts := v.styles.Muted.Render(fmt.Sprintf("docs %d/%d  chunks %d/%d",
			j.DocumentsProcessed, j.DocumentsFound, j.ChunksVectorized, j.ChunksCreated))
		lines = append(lines, fmt.Sprintf("%s%s  %s %s %3.0f%%  %s",
			cursor, ticker, phase, v.bar.ViewAs(j.Progress/100), j.Progress, counts))
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.ticker.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Jobs returns the loaded jobs.
func (v *View) Jobs() []domain.ProcessingJob {
	return v.jobs
}

// SelectedJob returns the selected job, or nil when the list is empty.
func (v *View) SelectedJob() *domain.ProcessingJob {
	if v.selected < 0 || v.selected >= len(v.jobs) {
		return nil
	}
	return &v.jobs[v.selected]
}

// Entering reports whether the ticker input is open.
func (v *View) Entering() bool {
	return v.entering
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
