package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/simonyos/zchat/internal/tui/theme"
)

// HelpDialog shows keyboard shortcuts and slash commands
type HelpDialog struct {
	Width int
}

// NewHelpDialog creates a help dialog
func NewHelpDialog() *HelpDialog {
	return &HelpDialog{Width: 60}
}

var shortcuts = []struct {
	key  string
	desc string
}{
	{"enter", "Send message"},
	{"esc", "Stop the reply / close"},
	{"ctrl+c", "Quit"},
	{"ctrl+l", "Clear the screen"},
	{"page up/down", "Scroll messages"},
}

// View renders the help dialog
func (h *HelpDialog) View() string {
	t := theme.Current

	title := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	key := lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Width(18)
	desc := lipgloss.NewStyle().Foreground(t.Text)

	var sb strings.Builder
	sb.WriteString(title.Render("Keyboard Shortcuts") + "\n\n")
	for _, s := range shortcuts {
		sb.WriteString(key.Render(s.key) + desc.Render(s.desc) + "\n")
	}

	sb.WriteString("\n" + title.Render("Commands") + "\n\n")
	for _, c := range Commands {
		sb.WriteString(key.Render(c.Usage) + desc.Render(c.Description) + "\n")
	}

	sb.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Render("\nPress any key to close"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2).
		Width(h.Width).
		Render(sb.String())
}

// PlaceOverlay centers the dialog on a screen of the given size.
func PlaceOverlay(overlay string, width, height int) string {
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(theme.Current.Background),
	)
}
