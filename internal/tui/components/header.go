package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/simonyos/zchat/internal/tui/theme"
)

// Header renders the application header
type Header struct {
	Width    int
	Version  string
	Provider string
	Model    string
}

// NewHeader creates a new header component
func NewHeader(width int, version string) *Header {
	return &Header{
		Width:   width,
		Version: version,
	}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetBackend sets the provider and model shown on the right.
func (h *Header) SetBackend(provider, model string) {
	h.Provider = provider
	h.Model = model
}

// View renders the header
func (h *Header) View() string {
	t := theme.Current

	logo := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true).
		Render("◆ zchat")

	version := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1).
		Render(fmt.Sprintf("v%s", h.Version))

	left := lipgloss.JoinHorizontal(lipgloss.Center, logo, "  ", version)

	var right string
	if h.Provider != "" {
		dot := lipgloss.NewStyle().Foreground(t.Success).Render("●")
		provider := lipgloss.NewStyle().Foreground(t.TextMuted).Render(h.Provider + " · ")
		model := lipgloss.NewStyle().Foreground(t.Text).Bold(true).Render(h.Model)
		right = lipgloss.JoinHorizontal(lipgloss.Center, dot, " ", provider, model)
	}

	spacing := h.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		left,
		lipgloss.NewStyle().Width(spacing).Render(""),
		right,
	)

	separator := lipgloss.NewStyle().
		Foreground(t.Border).
		Render(strings.Repeat("─", max(h.Width, 0)))

	return header + "\n" + separator
}
