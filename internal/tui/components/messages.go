package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/simonyos/zchat/internal/tui/theme"
)

// Message roles shown in the transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleError     = "error"
)

// Message represents a chat message
type Message struct {
	Role    string
	Content string
	Label   string // assistant header, usually the model name
}

// Messages is the scrollable message list component
type Messages struct {
	viewport  viewport.Model
	messages  []Message
	renderer  *glamour.TermRenderer
	width     int
	height    int
	welcome   []string
	streaming *Message
}

// NewMessages creates a new messages component
func NewMessages(width, height int) *Messages {
	m := &Messages{
		viewport: viewport.New(width, height),
		width:    width,
		height:   height,
	}
	m.renderer = newRenderer(width)
	return m
}

// newRenderer uses a fixed style so glamour never queries the terminal for
// its background color.
func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(theme.Current.Markdown),
		glamour.WithWordWrap(max(width-10, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// SetSize updates the component dimensions
func (m *Messages) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.renderer = newRenderer(width)
	m.updateContent()
}

// Restyle rebuilds the markdown renderer after a theme change.
func (m *Messages) Restyle() {
	m.renderer = newRenderer(m.width)
	m.updateContent()
}

// AddMessage adds a new message
func (m *Messages) AddMessage(msg Message) {
	m.messages = append(m.messages, msg)
	m.updateContent()
}

// Clear removes all messages
func (m *Messages) Clear() {
	m.messages = nil
	m.streaming = nil
	m.updateContent()
}

// Len returns the number of messages shown.
func (m *Messages) Len() int {
	return len(m.messages)
}

// GetViewport returns the viewport for handling scroll input
func (m *Messages) GetViewport() *viewport.Model {
	return &m.viewport
}

// SetWelcome sets the lines shown while the transcript is empty.
func (m *Messages) SetWelcome(lines ...string) {
	m.welcome = lines
	m.updateContent()
}

// UpdateStreaming shows content as the reply in progress.
func (m *Messages) UpdateStreaming(label, content string) {
	m.streaming = &Message{Role: RoleAssistant, Label: label, Content: content}
	m.updateContent()
}

// FinishStreaming moves the reply in progress into the transcript. An empty
// reply is dropped.
func (m *Messages) FinishStreaming() {
	if m.streaming != nil && m.streaming.Content != "" {
		m.messages = append(m.messages, *m.streaming)
	}
	m.streaming = nil
	m.updateContent()
}

func (m *Messages) markdown(content string) string {
	if m.renderer == nil {
		return content
	}
	r, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(r)
}

func (m *Messages) renderWelcome(sb *strings.Builder) {
	t := theme.Current

	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render("   ◆ zchat") + "\n\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.Border).Render("   "+strings.Repeat("─", 40)) + "\n\n")

	tipStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	for _, line := range m.welcome {
		sb.WriteString("   " + tipStyle.Render(line) + "\n")
	}
	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true).Render("   Type /help for commands · Enter to send") + "\n")
}

func (m *Messages) renderMessage(sb *strings.Builder, msg Message, cursor bool) {
	t := theme.Current
	contentWidth := m.width - 4

	switch msg.Role {
	case RoleUser:
		icon := lipgloss.NewStyle().Foreground(t.Info).Bold(true).Render("◉")
		header := lipgloss.NewStyle().Foreground(t.Text).Bold(true).Render("You")
		sb.WriteString(icon + " " + header + "\n")

		body := lipgloss.NewStyle().Foreground(t.Text).PaddingLeft(2).Width(contentWidth)
		sb.WriteString(body.Render(msg.Content) + "\n\n")

	case RoleAssistant:
		label := msg.Label
		if label == "" {
			label = "zchat"
		}
		headerStyle := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
		sb.WriteString(headerStyle.Render("◆ "+label) + "\n")

		body := lipgloss.NewStyle().Foreground(t.Text).PaddingLeft(2).Width(contentWidth)
		rendered := body.Render(m.markdown(msg.Content))
		if cursor {
			rendered += lipgloss.NewStyle().Foreground(t.Primary).Bold(true).Render("▌")
		}
		sb.WriteString(rendered + "\n\n")

	case RoleSystem:
		icon := lipgloss.NewStyle().Foreground(t.Info).Render("ℹ")
		text := lipgloss.NewStyle().Foreground(t.TextMuted).Width(contentWidth - 2).Render(msg.Content)
		sb.WriteString(icon + " " + text + "\n\n")

	case RoleError:
		icon := lipgloss.NewStyle().Foreground(t.Error).Bold(true).Render("✗")
		text := lipgloss.NewStyle().Foreground(t.Error).Width(contentWidth - 2).Render(msg.Content)
		sb.WriteString(icon + " " + text + "\n\n")
	}
}

// updateContent rebuilds the viewport content
func (m *Messages) updateContent() {
	var sb strings.Builder

	if len(m.messages) == 0 && m.streaming == nil {
		m.renderWelcome(&sb)
		m.viewport.SetContent(sb.String())
		return
	}

	for _, msg := range m.messages {
		m.renderMessage(&sb, msg, false)
	}
	if m.streaming != nil {
		m.renderMessage(&sb, *m.streaming, true)
	}

	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

// View renders the messages
func (m *Messages) View() string {
	return m.viewport.View()
}
