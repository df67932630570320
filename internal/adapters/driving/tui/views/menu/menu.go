// Package menu is the landing view: where to go next and which companies
// can already be asked about.
package menu

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// Entry is one destination in the menu. An entry without a view quits.
type Entry struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

func defaultEntries() []Entry {
	return []Entry{
		{Label: "Ask a question", Hint: "cited answers from a processed company", View: messages.ViewAsk},
		{Label: "Processing jobs", Hint: "fetch and index a company's filings", View: messages.ViewJobs},
		{Label: "Help", Hint: "key bindings", View: messages.ViewHelp},
		{Label: "Quit", Quit: true},
	}
}

// View renders the entries and a one-line summary of the job list.
type View struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	entries []Entry
	cursor  int

	ready   []string
	running int

	width, height int
	sized         bool
}

// NewView creates the menu. Nil arguments fall back to the defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{styles: s, keymap: km, entries: defaultEntries(), width: 80, height: 24}
}

func (v *View) Init() tea.Cmd { return nil }

// Update moves the cursor and emits ViewChanged on selection.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
	case messages.JobsLoaded:
		if msg.Err == nil {
			v.SetJobs(msg.Jobs)
		}
	case tea.KeyMsg:
		return v, v.handleKey(msg.String())
	}
	return v, nil
}

func (v *View) handleKey(k string) tea.Cmd {
	switch {
	case keymap.Matches(k, v.keymap.Up):
		v.cursor = max(v.cursor-1, 0)
	case keymap.Matches(k, v.keymap.Down):
		v.cursor = min(v.cursor+1, len(v.entries)-1)
	case keymap.Matches(k, v.keymap.Select):
		e := v.entries[v.cursor]
		if e.Quit {
			return tea.Quit
		}
		return func() tea.Msg { return messages.ViewChanged{View: e.View} }
	case keymap.Matches(k, v.keymap.Quit):
		return tea.Quit
	}
	return nil
}

// SetJobs records which tickers are answerable and how many jobs are running.
func (v *View) SetJobs(jobs []domain.ProcessingJob) {
	seen := make(map[string]bool)
	v.ready = v.ready[:0]
	v.running = 0
	for _, j := range jobs {
		switch {
		case j.Phase == domain.PhaseComplete && !seen[j.Ticker]:
			seen[j.Ticker] = true
			v.ready = append(v.ready, j.Ticker)
		case !j.Phase.IsTerminal():
			v.running++
		}
	}
	sort.Strings(v.ready)
}

func (v *View) View() string {
	if !v.sized {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Sercha Filings"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Questions answered from SEC filings"))
	b.WriteString("\n\n")

	labelWidth := 0
	for _, e := range v.entries {
		labelWidth = max(labelWidth, len(e.Label))
	}
	for i, e := range v.entries {
		label := fmt.Sprintf("%-*s", labelWidth, e.Label)
		if i == v.cursor {
			b.WriteString("> " + v.styles.Subtitle.Render(label))
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		if e.Hint != "" {
			b.WriteString("  " + v.styles.Muted.Render(e.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.summary())
	b.WriteString("\n\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [Enter] Select  [q] Quit"))
	return b.String()
}

func (v *View) summary() string {
	var parts []string
	if len(v.ready) == 0 {
		parts = append(parts, "No companies processed yet")
	} else {
		parts = append(parts, "Ready: "+strings.Join(v.ready, ", "))
	}
	if v.running > 0 {
		parts = append(parts, fmt.Sprintf("%d running", v.running))
	}
	return v.styles.Muted.Render(strings.Join(parts, "  |  "))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width, v.height = width, height
	v.sized = true
}

// Selected returns the cursor position.
func (v *View) Selected() int { return v.cursor }

// ReadyTickers returns the tickers with a complete job, sorted.
func (v *View) ReadyTickers() []string { return v.ready }
