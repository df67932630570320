// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// ErrNoQueryService indicates that no query service was provided.
var ErrNoQueryService = errors.New("query service is required")

// View asks a question about one ticker and shows the cited answer.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar
	ticker    *input.Field
	question  *input.Field
	citations *list.CitationList

	query     driving.QueryService
	ctx       context.Context
	sessionID string

	asked   string
	result  *domain.QueryResult
	loading bool
	err     error

	width  int
	height int
	ready  bool
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, query driving.QueryService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:    s,
		keymap:    km,
		statusbar: status.NewBar(s, km),
		ticker:    input.NewTickerField(s),
		question:  input.NewQuestionField(s),
		citations: list.NewCitationList(s),
		query:     query,
		ctx:       context.Background(),
		sessionID: uuid.NewString(),
		width:     80,
		height:    24,
	}
	v.question.Blur()
	return v
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init focuses the first empty field.
func (v *View) Init() tea.Cmd {
	if v.result != nil {
		return nil
	}
	if strings.TrimSpace(v.ticker.Value()) == "" {
		return v.focusTicker()
	}
	return v.focusQuestion()
}

// SetTicker fills the ticker and moves focus to the question.
func (v *View) SetTicker(ticker string) tea.Cmd {
	v.ticker.SetValue(strings.ToUpper(strings.TrimSpace(ticker)))
	v.clearAnswer()
	return v.focusQuestion()
}

func (v *View) focusTicker() tea.Cmd {
	v.question.Blur()
	return v.ticker.Focus()
}

func (v *View) focusQuestion() tea.Cmd {
	v.ticker.Blur()
	return v.question.Focus()
}

func (v *View) clearAnswer() {
	v.result = nil
	v.asked = ""
	v.err = nil
	v.citations.SetCitations(nil)
	v.statusbar.Idle()
}

func (v *View) ask(ticker, question string) tea.Cmd {
	return func() tea.Msg {
		if v.query == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoQueryService}
		}
		result, err := v.query.Answer(v.ctx, domain.QueryRequest{
			Question:  question,
			Ticker:    ticker,
			SessionID: v.sessionID,
		})
		return messages.AnswerReceived{Question: question, Result: result, Err: err}
	}
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.result != nil {
			return v.handleAnswerKey(msg)
		}
		return v.handleInputKey(msg)

	case messages.AnswerReceived:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			v.statusbar.Fail(describe(msg.Err, v.ticker.Value()))
			return v, v.focusQuestion()
		}
		v.err = nil
		v.asked = msg.Question
		v.result = msg.Result
		v.ticker.Blur()
		v.question.Blur()
		v.statusbar.Answer(0, 0)
		if msg.Result != nil {
			v.citations.SetCitations(msg.Result.Citations)
			v.statusbar.Answer(len(msg.Result.Citations), time.Duration(msg.Result.LatencyMs)*time.Millisecond)
		}
		return v, nil
	}

	return v.updateFocused(msg)
}

func (v *View) updateFocused(msg tea.Msg) (*View, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case v.ticker.Focused():
		v.ticker, cmd = v.ticker.Update(msg)
	case v.question.Focused():
		v.question, cmd = v.question.Update(msg)
	}
	return v, cmd
}

func back() tea.Msg {
	return messages.ViewChanged{View: messages.ViewMenu}
}

func (v *View) handleInputKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyEsc:
		return v, back
	case tea.KeyTab, tea.KeyShiftTab:
		if v.ticker.Focused() {
			return v, v.focusQuestion()
		}
		return v, v.focusTicker()
	case tea.KeyEnter:
		if v.loading {
			return v, nil
		}
		ticker := strings.ToUpper(strings.TrimSpace(v.ticker.Value()))
		question := strings.TrimSpace(v.question.Value())
		if ticker == "" {
			return v, v.focusTicker()
		}
		if question == "" {
			return v, v.focusQuestion()
		}
		v.ticker.SetValue(ticker)
		v.loading = true
		v.statusbar.Busy("Searching " + ticker + " filings...")
		return v, v.ask(ticker, question)
	}
	return v.updateFocused(msg)
}

func (v *View) handleAnswerKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, back
	}

	k := msg.String()
	if keymap.Matches(k, v.keymap.NewQuestion) {
		v.question.Reset()
		v.clearAnswer()
		return v, v.focusQuestion()
	}

	// Digits pick one of the suggested follow-up questions.
	if len(k) == 1 && k[0] >= '1' && k[0] <= '9' && v.result != nil {
		i := int(k[0] - '1')
		if i < len(v.result.RelatedQuestions) {
			v.question.SetValue(v.result.RelatedQuestions[i])
			v.clearAnswer()
			return v, v.focusQuestion()
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.citations, cmd = v.citations.Update(msg)
	return v, cmd
}

func describe(err error, ticker string) string {
	switch {
	case errors.Is(err, domain.ErrNotReady):
		return fmt.Sprintf("%s has not been processed yet, start it from the jobs view", ticker)
	case errors.Is(err, domain.ErrLLMUnavailable):
		return "no language model configured, run 'sercha-filings settings llm'"
	default:
		return err.Error()
	}
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := []string{
		v.styles.Title.Render("Ask the Filings"),
		"",
		v.ticker.View(),
		v.question.View(),
		"",
	}

	switch {
	case v.loading:
		sections = append(sections, v.styles.Muted.Render("Thinking..."))
	case v.result != nil:
		sections = append(sections, v.renderResult()...)
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderResult() []string {
	out := []string{
		v.styles.Subtitle.Render(v.asked),
		v.styles.Answer.Width(v.width - 4).Render(v.result.Answer),
		"",
		v.citations.View(),
	}
	if len(v.result.RelatedQuestions) > 0 {
		out = append(out, "", v.styles.Subtitle.Render("Related questions"))
		for i, q := range v.result.RelatedQuestions {
			out = append(out, v.styles.Normal.Render(fmt.Sprintf("  %d. %s", i+1, q)))
		}
	}
	if v.result.LatencyMs > 0 {
		out = append(out, "", v.styles.Muted.Render(fmt.Sprintf("Answered in %d ms", v.result.LatencyMs)))
	}
	return out
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.ticker.SetWidth(width)
	v.question.SetWidth(width)
	v.citations.SetDimensions(width, height/2)
	v.statusbar.SetWidth(width)
}

// Ticker returns the current ticker value.
func (v *View) Ticker() string {
	return v.ticker.Value()
}

// Question returns the current question input.
func (v *View) Question() string {
	return v.question.Value()
}

// Result returns the last answer, if any.
func (v *View) Result() *domain.QueryResult {
	return v.result
}

// Loading reports whether a question is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
