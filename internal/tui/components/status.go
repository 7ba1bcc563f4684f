package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/simonyos/zchat/internal/tui/theme"
	"github.com/simonyos/zchat/internal/usage"
)

// Status renders the status bar at the bottom
type Status struct {
	Width     int
	Streaming bool
	Message   string
	Totals    usage.Totals
}

// NewStatus creates a new status bar
func NewStatus(width int) *Status {
	return &Status{Width: width}
}

// SetWidth updates the status bar width
func (s *Status) SetWidth(width int) {
	s.Width = width
}

// SetStreaming toggles the in-progress indicator.
func (s *Status) SetStreaming(streaming bool) {
	s.Streaming = streaming
}

// SetMessage sets a transient message shown instead of the key hints.
func (s *Status) SetMessage(msg string) {
	s.Message = msg
}

// SetTotals sets the session usage shown on the right.
func (s *Status) SetTotals(totals usage.Totals) {
	s.Totals = totals
}

// FormatTokens renders a token count compactly, prefixed with "~" when the
// count is an estimate.
func FormatTokens(n int, estimated bool) string {
	prefix := ""
	if estimated {
		prefix = "~"
	}
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%s%.1fM", prefix, float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%s%.1fk", prefix, float64(n)/1_000)
	}
	return fmt.Sprintf("%s%d", prefix, n)
}

// View renders the status bar
func (s *Status) View() string {
	t := theme.Current
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)

	left := muted.Render("Enter to send · /help · Ctrl+C to quit")
	if s.Streaming {
		left = lipgloss.NewStyle().Foreground(t.Primary).Render("● streaming · Esc to stop")
	}
	if s.Message != "" {
		left = muted.Render(s.Message)
	}

	right := ""
	if s.Totals.Calls > 0 {
		right = lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Background(t.BackgroundSecondary).
			Padding(0, 1).
			Render(FormatTokens(s.Totals.TotalTokens, s.Totals.Estimated) + " tokens")
	}

	spacing := s.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if spacing < 0 {
		spacing = 0
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		left,
		lipgloss.NewStyle().Width(spacing).Render(""),
		right,
	)
}
