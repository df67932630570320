package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/views/jobs"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/views/menu"
)

var _ tea.Model = (*App)(nil)

// App is the root bubbletea model. It owns the three screens and routes
// messages to whichever one is active.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles

	menu    *menu.View
	jobs    *jobs.View
	ask     *ask.View
	current messages.ViewType

	err   error
	ready bool
}

func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	s, km := styles.DefaultStyles(), keymap.DefaultKeyMap()
	return &App{
		ports:   ports,
		ctx:     context.Background(),
		styles:  s,
		menu:    menu.NewView(s, km),
		jobs:    jobs.NewView(s, km, ports.Ingestion),
		ask:     ask.NewView(s, km, ports.Query),
		current: messages.ViewMenu,
	}, nil
}

// WithContext sets the context passed to service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.jobs.WithContext(ctx)
	a.ask.WithContext(ctx)
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, tea.SetWindowTitle("sercha-filings"), a.loadSummary())
}

// loadSummary feeds the menu's "ready tickers" line.
func (a *App) loadSummary() tea.Cmd {
	ingestion, ctx := a.ports.Ingestion, a.ctx
	return func() tea.Msg {
		jobs, err := ingestion.List(ctx)
		return messages.JobsLoaded{Jobs: jobs, Err: err}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			return a, tea.Quit
		case a.current == messages.ViewHelp:
			if msg.Type == tea.KeyEsc {
				a.current = messages.ViewMenu
			}
			return a, nil
		case a.current == messages.ViewMenu:
			var cmd tea.Cmd
			a.menu, cmd = a.menu.Update(msg)
			return a, cmd
		}
		return a, a.forward(msg)

	case messages.ViewChanged:
		a.current = msg.View
		return a, a.enter(msg.View)

	case messages.TickerSelected:
		a.current = messages.ViewAsk
		return a, a.ask.SetTicker(msg.Ticker)

	case messages.RefreshTick:
		// dropping the tick ends the refresh loop once the jobs screen is left
		if a.current != messages.ViewJobs {
			return a, nil
		}
		return a, a.toJobs(msg)

	case messages.JobsLoaded:
		a.menu, _ = a.menu.Update(msg)
		return a, a.toJobs(msg)

	case messages.JobSubmitted, messages.JobCancelled:
		return a, a.toJobs(msg)

	case messages.AnswerReceived:
		var cmd tea.Cmd
		a.ask, cmd = a.ask.Update(msg)
		a.err = a.ask.Err()
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	// cursor blinks and other view-internal messages
	return a, a.forward(msg)
}

// enter runs the screen's start command.
func (a *App) enter(v messages.ViewType) tea.Cmd {
	switch v {
	case messages.ViewJobs:
		return a.jobs.Init()
	case messages.ViewAsk:
		return a.ask.Init()
	case messages.ViewMenu:
		return a.loadSummary()
	default:
		return nil
	}
}

// forward hands msg to the jobs or ask screen when one of them is active.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.current {
	case messages.ViewJobs:
		a.jobs, cmd = a.jobs.Update(msg)
		a.err = a.jobs.Err()
	case messages.ViewAsk:
		a.ask, cmd = a.ask.Update(msg)
	case messages.ViewMenu, messages.ViewHelp:
	}
	return cmd
}

func (a *App) toJobs(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	a.jobs, cmd = a.jobs.Update(msg)
	a.err = a.jobs.Err()
	return cmd
}

func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.current {
	case messages.ViewJobs:
		return a.jobs.View()
	case messages.ViewAsk:
		return a.ask.View()
	case messages.ViewHelp:
		return a.help()
	case messages.ViewMenu:
	}
	return a.menu.View()
}

type helpSection struct {
	title string
	keys  [][2]string
}

var helpSections = []helpSection{
	{"Navigation", [][2]string{{"esc", "Back to Menu"}, {"ctrl+c", "Quit"}}},
	{"Menu", [][2]string{{"j/k, ↑/↓", "Navigate options"}, {"enter", "Select option"}, {"q", "Quit"}}},
	{"Processing jobs", [][2]string{
		{"j/k, ↑/↓", "Select job"},
		{"p", "Process a new ticker (last 3 years)"},
		{"c", "Cancel the selected job"},
		{"r", "Refresh now"},
		{"enter", "Ask about a completed ticker"},
	}},
	{"Ask", [][2]string{
		{"tab", "Switch between ticker and question"},
		{"enter", "Ask"},
		{"j/k, ↑/↓", "Browse sources of an answer"},
		{"1-9", "Ask a related question"},
		{"n", "New question"},
	}},
}

func (a *App) help() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n")
	for _, sec := range helpSections {
		fmt.Fprintf(&b, "\n%s:\n", a.styles.Subtitle.Render(sec.title))
		for _, k := range sec.keys {
			fmt.Fprintf(&b, "  %-12s%s\n", k[0], k[1])
		}
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Help.Render("[esc] back to menu"))
	return b.String()
}

// Run starts the program and blocks until the user quits.
func (a *App) Run() error {
	_, err := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx)).Run()
	return err
}

func (a *App) CurrentView() messages.ViewType { return a.current }

// Err returns the last error reported by a screen.
func (a *App) Err() error { return a.err }

// Ready reports whether the terminal size is known.
func (a *App) Ready() bool { return a.ready }

// SetDimensions resizes every screen.
func (a *App) SetDimensions(width, height int) {
	a.ready = true
	a.menu.SetDimensions(width, height)
	a.jobs.SetDimensions(width, height)
	a.ask.SetDimensions(width, height)
}
