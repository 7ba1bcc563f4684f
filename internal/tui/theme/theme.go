// Package theme holds the color palettes for the chat TUI.
package theme

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines all colors for the TUI
type Theme struct {
	Name string

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Text        lipgloss.Color
	TextMuted   lipgloss.Color
	TextInverse lipgloss.Color

	Background          lipgloss.Color
	BackgroundSecondary lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	Border      lipgloss.Color
	BorderFocus lipgloss.Color

	// Markdown is the glamour style used for assistant replies.
	Markdown string
}

// Current is the active theme
var Current = Sand()

// Sand is the default warm palette.
func Sand() Theme {
	return Theme{
		Name:                "sand",
		Primary:             lipgloss.Color("#D2A679"),
		Secondary:           lipgloss.Color("#5A4E40"),
		Accent:              lipgloss.Color("#E8C39E"),
		Text:                lipgloss.Color("#F0F0F0"),
		TextMuted:           lipgloss.Color("#888888"),
		TextInverse:         lipgloss.Color("#1A1A1A"),
		Background:          lipgloss.Color("#1A1A1A"),
		BackgroundSecondary: lipgloss.Color("#2D2D2D"),
		Success:             lipgloss.Color("#10B981"),
		Warning:             lipgloss.Color("#F59E0B"),
		Error:               lipgloss.Color("#EF4444"),
		Info:                lipgloss.Color("#6B9BD1"),
		Border:              lipgloss.Color("#3D3D3D"),
		BorderFocus:         lipgloss.Color("#D2A679"),
		Markdown:            "dark",
	}
}

// TokyoNight returns a Tokyo Night inspired theme
func TokyoNight() Theme {
	return Theme{
		Name:                "tokyonight",
		Primary:             lipgloss.Color("#7AA2F7"),
		Secondary:           lipgloss.Color("#9ECE6A"),
		Accent:              lipgloss.Color("#FF9E64"),
		Text:                lipgloss.Color("#C0CAF5"),
		TextMuted:           lipgloss.Color("#565F89"),
		TextInverse:         lipgloss.Color("#1A1B26"),
		Background:          lipgloss.Color("#1A1B26"),
		BackgroundSecondary: lipgloss.Color("#24283B"),
		Success:             lipgloss.Color("#9ECE6A"),
		Warning:             lipgloss.Color("#E0AF68"),
		Error:               lipgloss.Color("#F7768E"),
		Info:                lipgloss.Color("#7AA2F7"),
		Border:              lipgloss.Color("#3B4261"),
		BorderFocus:         lipgloss.Color("#7AA2F7"),
		Markdown:            "tokyo-night",
	}
}

var themes = map[string]func() Theme{
	"sand":       Sand,
	"tokyonight": TokyoNight,
}

// Names lists the selectable theme names in order.
func Names() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Use makes the named theme current. An empty name selects the default.
func Use(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		Current = Sand()
		return nil
	}
	fn, ok := themes[name]
	if !ok {
		return fmt.Errorf("unknown theme %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	Current = fn()
	return nil
}
