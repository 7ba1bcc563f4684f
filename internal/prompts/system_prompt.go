// Package prompts builds the system prompt sent at the start of every chat.
package prompts

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// PromptContext contains runtime context for prompt generation
type PromptContext struct {
	CWD         string
	OS          string
	Now         time.Time
	Provider    string
	Model       string
	CustomRules string // user-defined rules from config
}

// NewPromptContext creates a context with system defaults
func NewPromptContext(provider, model string) *PromptContext {
	cwd, _ := os.Getwd()

	osName := runtime.GOOS
	switch osName {
	case "darwin":
		osName = "macOS"
	case "linux":
		osName = "Linux"
	case "windows":
		osName = "Windows"
	}

	return &PromptContext{
		CWD:      cwd,
		OS:       osName,
		Now:      time.Now(),
		Provider: provider,
		Model:    model,
	}
}

// PromptBuilder constructs the system prompt from components
type PromptBuilder struct {
	ctx        *PromptContext
	components []func(*PromptContext) string
}

// NewPromptBuilder creates a new builder with default components
func NewPromptBuilder(ctx *PromptContext) *PromptBuilder {
	return &PromptBuilder{
		ctx: ctx,
		components: []func(*PromptContext) string{
			assistantRole,
			formatting,
			environment,
		},
	}
}

// Build generates the complete system prompt
func (b *PromptBuilder) Build() string {
	var sections []string

	for _, component := range b.components {
		if section := component(b.ctx); section != "" {
			sections = append(sections, section)
		}
	}

	if rules := strings.TrimSpace(b.ctx.CustomRules); rules != "" {
		sections = append(sections, "USER INSTRUCTIONS\n\n"+rules)
	}

	return strings.Join(sections, "\n\n====\n\n")
}

// WithCustomRules adds user-defined rules
func (b *PromptBuilder) WithCustomRules(rules string) *PromptBuilder {
	b.ctx.CustomRules = rules
	return b
}

func assistantRole(ctx *PromptContext) string {
	return `You are zchat, a concise assistant running in the user's terminal. Answer directly. When a question is ambiguous, state the assumption you made instead of asking a follow-up.`
}

// formatting reflects what the terminal renderer can display.
func formatting(ctx *PromptContext) string {
	return `FORMATTING

- Replies are rendered as Markdown in a terminal. Headings, lists, tables and fenced code blocks display well; images and HTML do not.
- Always tag fenced code blocks with a language.
- Keep lines reasonably short and avoid decorative output.`
}

func environment(ctx *PromptContext) string {
	lines := []string{"ENVIRONMENT", ""}
	lines = append(lines, fmt.Sprintf("Operating System: %s", ctx.OS))
	if !ctx.Now.IsZero() {
		lines = append(lines, fmt.Sprintf("Current Date: %s", ctx.Now.Format("Monday, January 2, 2006")))
	}
	if ctx.CWD != "" {
		lines = append(lines, fmt.Sprintf("Working Directory: %s", ctx.CWD))
	}
	if ctx.Model != "" {
		lines = append(lines, fmt.Sprintf("Model: %s (%s)", ctx.Model, ctx.Provider))
	}
	return strings.Join(lines, "\n")
}

// BuildSystemPrompt builds the prompt for provider and model with optional
// user rules.
func BuildSystemPrompt(provider, model, customRules string) string {
	return NewPromptBuilder(NewPromptContext(provider, model)).
		WithCustomRules(customRules).
		Build()
}
