package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a missing or invalid setting. Error() renders
// the message followed by a hint telling the user what to set.
type ConfigurationError struct {
	Variable      string     // Environment variable involved, if any
	Provider      ProviderID // Provider the setting belongs to, if known
	MissingSecret bool       // True when a required API key is absent
	Message       string
	Hint          string
}

func (e *ConfigurationError) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + "\n\n" + strings.TrimRight(e.Hint, "\n")
}

func missingSelector() *ConfigurationError {
	return &ConfigurationError{
		Variable: EnvProvider,
		Message:  EnvProvider + " is not set.",
		Hint: `Choose a backend:
  export ZCHAT_PROVIDER=ollama      # local models via Ollama
  export ZCHAT_PROVIDER=anthropic   # Claude via the Anthropic API

Or run 'zchat setup' to pick one interactively.`,
	}
}

func unknownProvider(value string) *ConfigurationError {
	return &ConfigurationError{
		Variable: EnvProvider,
		Message:  "unknown provider: " + value,
		Hint:     "Supported providers: ollama (alias local), anthropic (alias cloud).",
	}
}

// MissingProviderConfig reports a provider selection whose variant config
// is absent, such as the cloud provider without an API key.
func MissingProviderConfig(id ProviderID) *ConfigurationError {
	if id == ProviderCloud {
		return missingAPIKey()
	}
	return &ConfigurationError{
		Provider: id,
		Message:  fmt.Sprintf("provider %q selected but its configuration is missing", id),
		Hint:     "Run 'zchat setup' or export ZCHAT_PROVIDER and the matching variables.",
	}
}

// UnknownProvider reports an unrecognized provider identifier.
func UnknownProvider(value string) *ConfigurationError {
	return unknownProvider(value)
}

func missingAPIKey() *ConfigurationError {
	return &ConfigurationError{
		Variable:      EnvAnthropicAPIKey,
		Provider:      ProviderCloud,
		MissingSecret: true,
		Message:       EnvAnthropicAPIKey + " is not set.",
		Hint: `Set it in your shell:
  export ANTHROPIC_API_KEY=sk-ant-...
or store it in the config file:
  zchat config set anthropic_api_key sk-ant-...`,
	}
}
