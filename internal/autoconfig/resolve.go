// Package autoconfig decides which backend to use at startup. An explicit
// selection is honored as-is; otherwise a local Ollama server is probed and
// a model is picked from what it has installed.
package autoconfig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
)

// DefaultPriority lists preferred model families, best first. A model is
// matched by name prefix.
var DefaultPriority = []string{
	"llama3.2",
	"llama3.1",
	"llama3",
	"qwen2.5-coder",
	"qwen2.5",
	"deepseek-r1",
	"mistral",
	"gemma3",
	"gemma2",
	"phi3",
}

// Result is one of Ok, NeedsSetup or ConfigError.
type Result interface {
	result()
}

// Ok carries a usable configuration. Detected is true when it came from
// probing rather than explicit settings.
type Ok struct {
	Config   config.ProviderConfig
	Detected bool
}

// NeedsSetup means the user picked a provider whose secret is missing and
// can be asked for it interactively.
type NeedsSetup struct {
	Provider config.ProviderID
	Reason   string
}

// ConfigError is a failure the user has to fix outside the program. Message
// includes instructions.
type ConfigError struct {
	Message string
}

func (Ok) result()          {}
func (NeedsSetup) result()  {}
func (ConfigError) result() {}

func (e ConfigError) Error() string { return e.Message }

// Options controls Resolve.
type Options struct {
	// Lookup reads configuration variables. Required.
	Lookup config.LookupFunc

	// HTTPClient is used for probing. Nil uses a default client.
	HTTPClient *http.Client

	// Priority overrides DefaultPriority.
	Priority []string
}

// Resolve picks a provider configuration. It never mutates process state;
// the caller decides whether to apply or persist the result.
func Resolve(ctx context.Context, opts Options) Result {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	if selector, _ := lookup(config.EnvProvider); strings.TrimSpace(selector) != "" {
		return fromSettings(lookup)
	}
	return detectLocal(ctx, lookup, opts)
}

func fromSettings(lookup config.LookupFunc) Result {
	cfg, err := config.FromEnv(lookup)
	if err == nil {
		return Ok{Config: cfg}
	}

	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.MissingSecret {
		return NeedsSetup{Provider: cfgErr.Provider, Reason: cfgErr.Message}
	}
	return ConfigError{Message: err.Error()}
}

func detectLocal(ctx context.Context, lookup config.LookupFunc, opts Options) Result {
	host, _ := lookup(config.EnvOllamaHost)
	wanted, _ := lookup(config.EnvOllamaModel)
	probe := config.LocalProvider(host, "")

	adapter := llm.NewOllama(*probe.Local, opts.HTTPClient)
	if !adapter.IsAvailable(ctx) {
		return ConfigError{Message: notRunningMessage(probe.Local.Host)}
	}

	models, err := adapter.ListModels(ctx)
	if err != nil {
		return ConfigError{Message: fmt.Sprintf("Could not list Ollama models at %s: %v", probe.Local.Host, err)}
	}
	if len(models) == 0 {
		return ConfigError{Message: noModelsMessage()}
	}

	priority := opts.Priority
	if len(priority) == 0 {
		priority = DefaultPriority
	}

	model, ok := findInstalled(models, strings.TrimSpace(wanted))
	if !ok {
		if wanted != "" {
			slog.Warn("configured ollama model is not installed", "model", wanted)
		}
		model = SelectModel(models, priority)
	}

	slog.Info("auto-selected local model", "model", model, "host", probe.Local.Host, "installed", len(models))
	return Ok{
		Config:   config.LocalProvider(probe.Local.Host, model),
		Detected: true,
	}
}

// SelectModel returns the first installed model matching the earliest
// priority prefix, falling back to the first listed model. models must not
// be empty.
func SelectModel(models []llm.ModelDescriptor, priority []string) string {
	for _, prefix := range priority {
		prefix = strings.ToLower(prefix)
		for _, m := range models {
			if strings.HasPrefix(strings.ToLower(m.Name), prefix) {
				return m.Name
			}
		}
	}
	return models[0].Name
}

// findInstalled matches name exactly or with the implicit ":latest" tag.
func findInstalled(models []llm.ModelDescriptor, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, m := range models {
		if m.Name == name || m.Name == name+":latest" {
			return m.Name, true
		}
	}
	return "", false
}

func notRunningMessage(host string) string {
	return fmt.Sprintf(`Ollama is not reachable at %s.

To chat with local models:
  1. Install Ollama from https://ollama.com/download
  2. Start the server:  ollama serve
  3. Pull a model:      ollama pull llama3.2

To use Claude instead:
  export ZCHAT_PROVIDER=anthropic
  export ANTHROPIC_API_KEY=sk-ant-...`, host)
}

func noModelsMessage() string {
	return `Ollama is running but has no models installed.

Pull one, for example:
  ollama pull llama3.2
  ollama pull qwen2.5-coder

Then run zchat again.`
}
