package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"
	"github.com/simonyos/zchat/internal/tui/theme"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// Commands lists the slash commands in display order.
var Commands = []Command{
	{Name: "/help", Aliases: []string{"/h", "/?"}, Description: "Show shortcuts and commands", Usage: "/help"},
	{Name: "/clear", Description: "Clear the screen, keep the conversation", Usage: "/clear"},
	{Name: "/reset", Aliases: []string{"/new"}, Description: "Start a new conversation", Usage: "/reset"},
	{Name: "/model", Aliases: []string{"/m"}, Description: "List models or switch model", Usage: "/model [name]"},
	{Name: "/status", Description: "Check that the backend answers", Usage: "/status"},
	{Name: "/tokens", Description: "Show token usage for this session", Usage: "/tokens"},
	{Name: "/config", Description: "Show or change settings", Usage: "/config [set|delete]"},
	{Name: "/theme", Description: "List or switch color themes", Usage: "/theme [name]"},
	{Name: "/quit", Aliases: []string{"/q", "/exit"}, Description: "Exit zchat", Usage: "/quit"},
}

// commandSource implements fuzzy.Source over command names.
type commandSource []Command

func (c commandSource) String(i int) string { return c[i].Name }
func (c commandSource) Len() int            { return len(c) }

// Canonical maps a command name or alias to its command name. It returns ""
// for unknown commands.
func Canonical(name string) string {
	name = strings.ToLower(name)
	for _, cmd := range Commands {
		if cmd.Name == name {
			return cmd.Name
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd.Name
			}
		}
	}
	return ""
}

// FilterCommands returns the commands matching input, best match first. An
// exact name or alias match returns only that command.
func FilterCommands(input string) []Command {
	if input == "/" {
		return Commands
	}
	if name := Canonical(input); name != "" {
		for _, cmd := range Commands {
			if cmd.Name == name {
				return []Command{cmd}
			}
		}
	}

	matches := fuzzy.FindFrom(input, commandSource(Commands))
	result := make([]Command, 0, len(matches))
	for _, match := range matches {
		result = append(result, Commands[match.Index])
	}
	return result
}

// Suggestions shows command autocomplete suggestions
type Suggestions struct {
	visible  bool
	commands []Command
	selected int
	width    int
}

// NewSuggestions creates a new suggestions component
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// SetWidth sets the component width
func (s *Suggestions) SetWidth(width int) {
	s.width = width
}

// Filter updates the suggestions for the editor content. Suggestions show
// only while the first word starting with "/" is being typed.
func (s *Suggestions) Filter(input string) {
	if !strings.HasPrefix(input, "/") || strings.ContainsAny(input, " \n") {
		s.visible = false
		return
	}

	s.visible = true
	s.commands = FilterCommands(input)
	if s.selected >= len(s.commands) {
		s.selected = 0
	}
}

// IsVisible returns whether suggestions are showing
func (s *Suggestions) IsVisible() bool {
	return s.visible && len(s.commands) > 0
}

// Hide hides the suggestions
func (s *Suggestions) Hide() {
	s.visible = false
	s.selected = 0
}

// MoveUp moves selection up
func (s *Suggestions) MoveUp() {
	if s.selected > 0 {
		s.selected--
	}
}

// MoveDown moves selection down
func (s *Suggestions) MoveDown() {
	if s.selected < len(s.commands)-1 {
		s.selected++
	}
}

// GetSelected returns the currently selected command
func (s *Suggestions) GetSelected() string {
	if s.selected < len(s.commands) {
		return s.commands[s.selected].Name
	}
	return ""
}

// View renders the suggestions
func (s *Suggestions) View() string {
	if !s.IsVisible() {
		return ""
	}

	t := theme.Current
	var sb strings.Builder

	for i, cmd := range s.commands {
		marker := "  "
		if i == s.selected {
			marker = "› "
		}
		row := lipgloss.NewStyle().Foreground(t.Primary).Render(marker) +
			lipgloss.NewStyle().Foreground(t.Accent).Bold(true).Width(16).Render(cmd.Usage) +
			lipgloss.NewStyle().Foreground(t.TextMuted).Render(cmd.Description)

		if i == s.selected {
			row = lipgloss.NewStyle().
				Background(t.BackgroundSecondary).
				Width(max(s.width-6, 0)).
				Render(row)
		}
		sb.WriteString(row + "\n")
	}

	sb.WriteString(lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Italic(true).
		Render("↑↓ navigate · Tab to complete · Esc to cancel"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1).
		Width(max(s.width-2, 0)).
		Render(sb.String())
}
