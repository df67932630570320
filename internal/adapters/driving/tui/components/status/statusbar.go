// Package status renders the one-line bar under the ask and jobs views.
package status

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
)

// Mode selects what the left side says and which key hints the right shows.
type Mode int

const (
	ModeIdle Mode = iota
	ModeBusy
	ModeError
	ModeAnswer
	ModeJobs
)

// Bar shows a status line on the left and key hints on the right. Views
// drive it through Idle, Busy, Fail, Answer and Jobs.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	width  int

	mode    Mode
	note    string
	count   int
	elapsed time.Duration
}

// NewBar returns an idle bar 80 columns wide. Nil arguments use the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, width: 80}
}

func (b *Bar) set(m Mode, note string) {
	b.mode, b.note, b.count, b.elapsed = m, note, 0, 0
}

// Idle clears the bar.
func (b *Bar) Idle() { b.set(ModeIdle, "") }

// Busy shows what is in flight, such as "Searching AAPL filings...".
func (b *Bar) Busy(note string) { b.set(ModeBusy, note) }

// Fail shows an error message.
func (b *Bar) Fail(msg string) { b.set(ModeError, msg) }

// Answer reports a finished query.
func (b *Bar) Answer(citations int, elapsed time.Duration) {
	b.set(ModeAnswer, "")
	b.count, b.elapsed = citations, elapsed
}

// Jobs switches to the job list. A note set earlier survives a refresh so
// "Processing AAPL" stays visible while the list reloads.
func (b *Bar) Jobs(total int) {
	if b.mode != ModeJobs {
		b.note = ""
	}
	b.mode, b.count = ModeJobs, total
}

// Note replaces the message without changing the mode.
func (b *Bar) Note(msg string) { b.note = msg }

func (b *Bar) Mode() Mode { return b.mode }

// Text is the current note, empty when the bar shows a default.
func (b *Bar) Text() string { return b.note }

func (b *Bar) SetWidth(w int) { b.width = w }

func (b *Bar) View() string {
	left, right := b.left(), b.hints()
	gap := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) left() string {
	switch b.mode {
	case ModeBusy:
		return b.styles.Muted.Render(cmp.Or(b.note, "Working..."))
	case ModeError:
		if b.note == "" {
			return b.styles.Error.Render("Error")
		}
		return b.styles.Error.Render("Error: " + b.note)
	case ModeAnswer:
		text := fmt.Sprintf("%d citations", b.count)
		if b.elapsed > 0 {
			text += " in " + b.elapsed.Round(time.Millisecond).String()
		}
		return b.styles.Normal.Render(text)
	case ModeJobs:
		return b.styles.Normal.Render(cmp.Or(b.note, fmt.Sprintf("%d jobs", b.count)))
	default:
		return b.styles.Muted.Render("Ready")
	}
}

func (b *Bar) hints() string {
	var bindings []key.Binding
	switch b.mode {
	case ModeAnswer:
		bindings = b.keymap.AnswerHelp()
	case ModeJobs:
		bindings = b.keymap.JobsHelp()
	default:
		bindings = b.keymap.ShortHelp()
	}
	parts := make([]string, len(bindings))
	for i, kb := range bindings {
		parts[i] = kb.Help().Key + ": " + kb.Help().Desc
	}
	return b.styles.Muted.Render(strings.Join(parts, " | "))
}
