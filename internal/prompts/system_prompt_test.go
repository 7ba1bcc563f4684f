package prompts

import (
	"strings"
	"testing"
	"time"
)

func TestBuildIncludesSections(t *testing.T) {
	ctx := &PromptContext{
		OS:       "Linux",
		Now:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		CWD:      "/work",
		Provider: "ollama",
		Model:    "llama3.2",
	}
	prompt := NewPromptBuilder(ctx).Build()

	for _, want := range []string{
		"You are zchat",
		"FORMATTING",
		"Operating System: Linux",
		"Current Date: Saturday, June 1, 2024",
		"Working Directory: /work",
		"Model: llama3.2 (ollama)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "USER INSTRUCTIONS") {
		t.Error("prompt has a user instructions section without rules")
	}
}

func TestWithCustomRules(t *testing.T) {
	prompt := NewPromptBuilder(&PromptContext{OS: "Linux"}).
		WithCustomRules("  Answer in French.  ").
		Build()

	if !strings.HasSuffix(prompt, "USER INSTRUCTIONS\n\nAnswer in French.") {
		t.Errorf("prompt does not end with the user rules:\n%s", prompt)
	}
}

func TestBuildSystemPromptSkipsEmptyModel(t *testing.T) {
	prompt := BuildSystemPrompt("", "", "")
	if strings.Contains(prompt, "Model:") {
		t.Error("prompt mentions a model when none is set")
	}
}
