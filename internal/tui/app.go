// Package tui is the interactive chat interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonyos/zchat/internal/chat"
	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/generator"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/tui/components"
	"github.com/simonyos/zchat/internal/tui/theme"
	"github.com/simonyos/zchat/internal/usage"
)

const (
	headerHeight = 2
	statusHeight = 1
	editorHeight = 5

	// backgroundTimeout bounds /model and /status lookups.
	backgroundTimeout = 10 * time.Second
)

// Backend is the part of llm.Client the TUI uses besides chatting.
type Backend interface {
	chat.Client
	IsAvailable(ctx context.Context) bool
	ListModels(ctx context.Context) ([]llm.ModelDescriptor, error)
	Config() config.ProviderConfig
}

// Options configures New.
type Options struct {
	Session *chat.Session
	Backend Backend
	Usage   *usage.Session
	Version string

	// Switch builds a backend for another model of the same provider.
	// /model is read-only when nil.
	Switch func(cfg config.ProviderConfig) (Backend, error)
}

// Message types for Bubble Tea
type turnStartedMsg struct {
	turn *chat.Turn
	err  error
}

type chunkMsg struct {
	chunk llm.Chunk
}

type turnEndMsg struct {
	err error
}

type modelsMsg struct {
	models []llm.ModelDescriptor
	err    error
}

type statusMsg struct {
	provider  config.ProviderID
	model     string
	available bool
}

// Model is the main TUI model
type Model struct {
	ctx     context.Context
	session *chat.Session
	backend Backend
	usage   *usage.Session
	switchB func(config.ProviderConfig) (Backend, error)

	header      *components.Header
	messages    *components.Messages
	editor      *components.Editor
	status      *components.Status
	help        *components.HelpDialog
	suggestions *components.Suggestions
	spinner     spinner.Model

	width     int
	height    int
	ready     bool
	streaming bool
	showHelp  bool

	turn    *chat.Turn
	cancel  context.CancelFunc
	content string
}

// New creates a new TUI model. ctx bounds every request the TUI makes.
func New(ctx context.Context, opts Options) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	header := components.NewHeader(80, opts.Version)
	header.SetBackend(string(opts.Backend.Provider()), opts.Backend.Model())

	return Model{
		ctx:         ctx,
		session:     opts.Session,
		backend:     opts.Backend,
		usage:       opts.Usage,
		switchB:     opts.Switch,
		header:      header,
		status:      components.NewStatus(80),
		help:        components.NewHelpDialog(),
		suggestions: components.NewSuggestions(),
		spinner:     sp,
	}
}

// Run starts the TUI and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(
		New(ctx, opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithoutBracketedPaste(),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) welcome() []string {
	return []string{
		fmt.Sprintf("Connected to %s · %s", m.backend.Provider(), m.backend.Model()),
		"",
		"Ask a question and press Enter. Replies stream in as they arrive.",
		"Esc stops a reply · /model switches model · /tokens shows usage",
	}
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}
		if !m.ready {
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit

		case "ctrl+l":
			m.messages.Clear()
			return m, nil

		case "esc":
			if m.streaming && m.cancel != nil {
				// The pending read fails with context.Canceled and ends the turn.
				m.cancel()
				return m, nil
			}
			m.suggestions.Hide()
			return m, nil

		case "tab":
			if m.suggestions.IsVisible() {
				if selected := m.suggestions.GetSelected(); selected != "" {
					m.editor.SetValue(selected + " ")
					m.suggestions.Hide()
				}
				return m, nil
			}

		case "up":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveUp()
				return m, nil
			}

		case "down":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveDown()
				return m, nil
			}

		case "enter":
			if m.streaming {
				return m, nil
			}
			if m.suggestions.IsVisible() {
				if selected := m.suggestions.GetSelected(); selected != "" {
					m.editor.Reset()
					m.suggestions.Hide()
					return m.handleCommand(selected)
				}
			}

			input := m.editor.Value()
			if input == "" {
				return m, nil
			}
			m.editor.Reset()
			m.suggestions.Hide()

			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			return m.send(input)

		case "pgup", "pgdown":
			vp := m.messages.GetViewport()
			var cmd tea.Cmd
			*vp, cmd = vp.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		messagesHeight := max(msg.Height-headerHeight-statusHeight-editorHeight, 1)

		if !m.ready {
			m.messages = components.NewMessages(msg.Width, messagesHeight)
			m.messages.SetWelcome(m.welcome()...)
			m.editor = components.NewEditor(msg.Width, editorHeight)
			m.editor.Reset()
			m.ready = true
		} else {
			m.messages.SetSize(msg.Width, messagesHeight)
			m.editor.SetSize(msg.Width, editorHeight)
		}
		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)
		m.suggestions.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.streaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case turnStartedMsg:
		if msg.err != nil {
			return m.endTurn(msg.err), nil
		}
		m.turn = msg.turn
		return m, readNextChunk(m.turn)

	case chunkMsg:
		m.content += msg.chunk.Content
		m.messages.UpdateStreaming(m.backend.Model(), m.content)
		if msg.chunk.Done {
			return m.endTurn(nil), nil
		}
		return m, readNextChunk(m.turn)

	case turnEndMsg:
		return m.endTurn(msg.err), nil

	case modelsMsg:
		m.showModels(msg)
		return m, nil

	case statusMsg:
		state := "answering"
		role := components.RoleSystem
		if !msg.available {
			state = "not answering"
			role = components.RoleError
		}
		m.messages.AddMessage(components.Message{
			Role:    role,
			Content: fmt.Sprintf("%s is %s (model %s).", msg.provider, state, msg.model),
		})
		return m, nil
	}

	if !m.streaming && m.editor != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)
			m.suggestions.Filter(m.editor.Value())
		}
	}

	if m.messages != nil {
		vp := m.messages.GetViewport()
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) send(text string) (tea.Model, tea.Cmd) {
	m.messages.AddMessage(components.Message{Role: components.RoleUser, Content: text})

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.streaming = true
	m.content = ""
	m.status.SetMessage("")
	m.status.SetStreaming(true)

	session := m.session
	start := func() tea.Msg {
		turn, err := session.Stream(ctx, text)
		return turnStartedMsg{turn: turn, err: err}
	}
	return m, tea.Batch(m.spinner.Tick, start)
}

// readNextChunk pulls one chunk per command so the stream is read only as
// fast as the UI consumes it.
func readNextChunk(turn *chat.Turn) tea.Cmd {
	return func() tea.Msg {
		chunk, err := turn.Recv()
		if errors.Is(err, io.EOF) {
			return turnEndMsg{}
		}
		if err != nil {
			return turnEndMsg{err: err}
		}
		return chunkMsg{chunk: chunk}
	}
}

func (m Model) endTurn(err error) Model {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.turn = nil
	m.streaming = false
	m.status.SetStreaming(false)
	m.messages.FinishStreaming()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		m.messages.AddMessage(components.Message{Role: components.RoleSystem, Content: "Stopped."})
	default:
		m.messages.AddMessage(components.Message{
			Role:    components.RoleError,
			Content: generator.Explain(m.backend.Provider(), m.backend.Model(), err),
		})
	}

	if m.usage != nil {
		m.status.SetTotals(m.usage.Totals())
	}
	return m
}

func (m Model) system(format string, args ...any) (tea.Model, tea.Cmd) {
	m.messages.AddMessage(components.Message{Role: components.RoleSystem, Content: fmt.Sprintf(format, args...)})
	return m, nil
}

func (m Model) fail(format string, args ...any) (tea.Model, tea.Cmd) {
	m.messages.AddMessage(components.Message{Role: components.RoleError, Content: fmt.Sprintf(format, args...)})
	return m, nil
}

// handleCommand processes slash commands
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	name := components.Canonical(parts[0])
	args := parts[1:]

	switch name {
	case "/help":
		m.showHelp = true
		return m, nil

	case "/clear":
		m.messages.Clear()
		return m, nil

	case "/reset":
		m.session.Reset()
		m.messages.Clear()
		return m.system("Conversation reset.")

	case "/quit":
		return m, tea.Quit

	case "/model":
		if len(args) == 0 {
			return m, m.listModels()
		}
		return m.switchModel(args[0])

	case "/status":
		return m, m.checkStatus()

	case "/tokens":
		return m.showTokens()

	case "/config":
		return m.handleConfig(args)

	case "/theme":
		if len(args) == 0 {
			return m.system("Theme: %s\nAvailable: %s", theme.Current.Name, strings.Join(theme.Names(), ", "))
		}
		if err := theme.Use(args[0]); err != nil {
			return m.fail("%v", err)
		}
		if err := config.Set("theme", theme.Current.Name); err != nil {
			return m.fail("Theme applied but not saved: %v", err)
		}
		m.messages.Restyle()
		return m.system("Theme set to %s.", theme.Current.Name)

	default:
		return m.fail("Unknown command: %s\nType /help for available commands.", parts[0])
	}
}

func (m Model) listModels() tea.Cmd {
	backend := m.backend
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		models, err := backend.ListModels(ctx)
		return modelsMsg{models: models, err: err}
	}
}

func (m Model) showModels(msg modelsMsg) {
	if msg.err != nil {
		text := generator.Explain(m.backend.Provider(), m.backend.Model(), msg.err)
		if errors.Is(msg.err, llm.ErrUnsupportedOperation) {
			text = fmt.Sprintf("%s cannot list models.", m.backend.Provider())
		}
		m.messages.AddMessage(components.Message{Role: components.RoleError, Content: text})
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Models on %s:\n", m.backend.Provider())
	for _, d := range msg.models {
		marker := "  "
		if d.Name == m.backend.Model() || d.Name == m.backend.Model()+":latest" {
			marker = "* "
		}
		line := marker + d.Name
		if d.ParameterSize != "" {
			line += "  (" + d.ParameterSize + ")"
		}
		sb.WriteString(line + "\n")
	}
	if len(msg.models) == 0 {
		sb.WriteString("  none\n")
	}
	sb.WriteString("\nSwitch with /model <name>")
	m.messages.AddMessage(components.Message{Role: components.RoleSystem, Content: sb.String()})
}

func (m Model) switchModel(name string) (tea.Model, tea.Cmd) {
	if m.switchB == nil {
		return m.fail("Switching models is not available in this session.")
	}

	backend, err := m.switchB(m.backend.Config().WithModel(name))
	if err != nil {
		return m.fail("Cannot switch to %s: %v", name, err)
	}

	m.backend = backend
	m.session.SetClient(backend)
	m.header.SetBackend(string(backend.Provider()), backend.Model())
	return m.system("Now using %s. The conversation continues with the new model.", backend.Model())
}

func (m Model) checkStatus() tea.Cmd {
	backend := m.backend
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		return statusMsg{
			provider:  backend.Provider(),
			model:     backend.Model(),
			available: backend.IsAvailable(ctx),
		}
	}
}

func (m Model) showTokens() (tea.Model, tea.Cmd) {
	if m.usage == nil {
		return m.system("Usage tracking is off.")
	}
	t := m.usage.Totals()
	if t.Calls == 0 {
		return m.system("No requests yet.")
	}
	note := ""
	if t.Estimated {
		note = "\n~ some counts are estimates"
	}
	return m.system("Session usage over %d requests:\n  prompt      %s\n  completion  %s\n  total       %s%s",
		t.Calls,
		components.FormatTokens(t.PromptTokens, t.Estimated),
		components.FormatTokens(t.CompletionTokens, t.Estimated),
		components.FormatTokens(t.TotalTokens, t.Estimated),
		note)
}

func (m Model) handleConfig(args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		keys := config.ListKeys()
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		slices.Sort(names)

		var sb strings.Builder
		fmt.Fprintf(&sb, "Config file: %s\n\n", config.Path())
		if len(names) == 0 {
			sb.WriteString("  No settings stored.\n")
		}
		for _, k := range names {
			fmt.Fprintf(&sb, "  %s: %s\n", k, keys[k])
		}
		sb.WriteString("\n/config set <key> <value> · /config delete <key>\nChanges to provider settings apply on the next start.")
		return m.system("%s", sb.String())
	}

	switch strings.ToLower(args[0]) {
	case "set":
		if len(args) < 3 {
			return m.fail("Usage: /config set <key> <value>")
		}
		if err := config.Set(args[1], strings.Join(args[2:], " ")); err != nil {
			return m.fail("Failed to set config: %v", err)
		}
		return m.system("Set %s.", args[1])

	case "delete", "remove", "unset":
		if len(args) < 2 {
			return m.fail("Usage: /config delete <key>")
		}
		if err := config.Delete(args[1]); err != nil {
			return m.fail("Failed to delete config: %v", err)
		}
		return m.system("Deleted %s.", args[1])

	default:
		return m.fail("Unknown config subcommand: %s\nUse: set, delete", args[0])
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	t := theme.Current
	messagesHeight := max(m.height-headerHeight-statusHeight-editorHeight, 1)

	messagesView := m.messages.View()
	if m.streaming && m.content == "" {
		waiting := lipgloss.NewStyle().Foreground(t.Primary).Render(m.spinner.View() + " Waiting for " + m.backend.Model() + "...")
		messagesView += "\n" + waiting
	}
	messagesView = lipgloss.NewStyle().Height(messagesHeight).MaxHeight(messagesHeight).Render(messagesView)

	sections := []string{m.header.View(), messagesView}
	if m.suggestions.IsVisible() {
		sections = append(sections, m.suggestions.View())
	}
	sections = append(sections, m.editor.View(), m.status.View())
	view := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.showHelp {
		view = components.PlaceOverlay(m.help.View(), m.width, m.height)
	}

	return lipgloss.NewStyle().
		Background(t.Background).
		Width(m.width).
		Height(m.height).
		Render(view)
}
