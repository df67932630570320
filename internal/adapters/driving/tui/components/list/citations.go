// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// CitationList displays the sources of an answer in a navigable list.
// The selected citation shows its full excerpt.
type CitationList struct {
	citations []domain.Citation
	selected  int
	styles    *styles.Styles
	width     int
	height    int
}

// NewCitationList creates a new citation list component.
func NewCitationList(s *styles.Styles) *CitationList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &CitationList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (r *CitationList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *CitationList) Update(msg tea.Msg) (*CitationList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the citation list.
func (r *CitationList) View() string {
	if len(r.citations) == 0 {
		return r.styles.Muted.Render("No citations")
	}

	lines := make([]string, 0, len(r.citations)+4)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.citations))), "")

	// Each entry takes one line; the selected one adds its excerpt.
	visible := r.height - 6
	if visible < 1 {
		visible = 1
	}
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := start + visible
	if end > len(r.citations) {
		end = len(r.citations)
	}

	for i := start; i < end; i++ {
		lines = append(lines, r.renderCitation(i, &r.citations[i]))
	}
	return strings.Join(lines, "\n")
}

func (r *CitationList) renderCitation(index int, c *domain.Citation) string {
	label := fmt.Sprintf("[%d] %s %s %s", index+1, c.FilingType, c.FiledDate.Format("2006-01-02"), c.Section)
	score := fmt.Sprintf("%.2f", c.RelevanceScore)

	if index != r.selected {
		return r.styles.Normal.Render("  "+label+"  ") + r.styles.Score(c.RelevanceScore).Render(score)
	}

	line := r.styles.Selected.Render("> " + label + "  " + score)
	if c.Excerpt != "" {
		line += "\n" + r.styles.Muted.Render("    "+truncate(c.Excerpt, r.width*3))
	}
	if c.URL != "" {
		line += "\n" + r.styles.Subtitle.Render("    "+c.URL)
	}
	return line
}

func truncate(s string, n int) string {
	if n < 20 {
		n = 20
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// SetCitations replaces the list contents and resets the selection.
func (r *CitationList) SetCitations(citations []domain.Citation) {
	r.citations = citations
	r.selected = 0
}

// Citations returns the current citations.
func (r *CitationList) Citations() []domain.Citation {
	return r.citations
}

// Selected returns the index of the selected citation.
func (r *CitationList) Selected() int {
	return r.selected
}

// SelectedCitation returns the selected citation, or nil if the list is empty.
func (r *CitationList) SelectedCitation() *domain.Citation {
	if r.selected < 0 || r.selected >= len(r.citations) {
		return nil
	}
	return &r.citations[r.selected]
}

// MoveUp moves selection up.
func (r *CitationList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *CitationList) MoveDown() {
	if r.selected < len(r.citations)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *CitationList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of citations.
func (r *CitationList) Count() int {
	return len(r.citations)
}
