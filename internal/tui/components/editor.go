package components

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/simonyos/zchat/internal/tui/theme"
)

// oscResponse matches terminal OSC replies (for example a background color
// report) that some terminals deliver as keystrokes at startup.
var oscResponse = regexp.MustCompile(`\x1b?\]\d+;[^\x07\x1b\s]*(?:\x07|\x1b\\)?`)

// Editor is the message input component
type Editor struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool
}

// NewEditor creates a new editor component
func NewEditor(width, height int) *Editor {
	ta := textarea.New()
	ta.Placeholder = "Ask anything..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.SetWidth(width - 6)
	ta.SetHeight(height - 2)
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.Current.TextMuted)

	return &Editor{
		textarea: ta,
		width:    width,
		height:   height,
		focused:  true,
	}
}

// SetSize updates the editor dimensions
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.textarea.SetWidth(width - 6)
	e.textarea.SetHeight(height - 2)
}

// Focus focuses the editor
func (e *Editor) Focus() {
	e.focused = true
	e.textarea.Focus()
}

// Blur unfocuses the editor
func (e *Editor) Blur() {
	e.focused = false
	e.textarea.Blur()
}

// Value returns the trimmed text with terminal replies removed.
func (e *Editor) Value() string {
	return Sanitize(e.textarea.Value())
}

// Sanitize strips OSC replies and stray escape bytes from typed input.
func Sanitize(s string) string {
	s = oscResponse.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\x1b", "")
	return strings.TrimSpace(s)
}

// Reset clears the editor
func (e *Editor) Reset() {
	e.textarea.Reset()
}

// SetValue sets the editor content
func (e *Editor) SetValue(value string) {
	e.textarea.SetValue(value)
	e.textarea.CursorEnd()
}

// Update handles textarea updates
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	return e, cmd
}

// View renders the editor
func (e *Editor) View() string {
	t := theme.Current

	borderColor := t.Border
	if e.focused {
		borderColor = t.BorderFocus
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(e.width - 2).
		Padding(0, 1).
		Render(e.textarea.View())
}
