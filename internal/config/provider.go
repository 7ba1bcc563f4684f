package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ProviderID identifies a chat backend.
type ProviderID string

const (
	ProviderLocal ProviderID = "ollama"
	ProviderCloud ProviderID = "anthropic"
)

// Environment variables read by FromEnv.
const (
	EnvProvider           = "ZCHAT_PROVIDER"
	EnvOllamaHost         = "OLLAMA_HOST"
	EnvOllamaModel        = "OLLAMA_MODEL"
	EnvAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	EnvAnthropicModel     = "ANTHROPIC_MODEL"
	EnvAnthropicMaxTokens = "ANTHROPIC_MAX_TOKENS"
	EnvAnthropicBaseURL   = "ANTHROPIC_BASE_URL"
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvGeminiModel        = "GEMINI_MODEL"
)

// Defaults applied when the matching variable is unset.
const (
	DefaultOllamaHost         = "http://localhost:11434"
	DefaultOllamaModel        = "llama3.2"
	DefaultAnthropicModel     = "claude-sonnet-4-20250514"
	DefaultAnthropicMaxTokens = 4096
	DefaultAnthropicBaseURL   = "https://api.anthropic.com"
	DefaultGeminiModel        = "gemini-2.5-flash"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LocalConfig configures the Ollama adapter.
type LocalConfig struct {
	Host  string
	Model string
}

// CloudConfig configures the Anthropic adapter.
type CloudConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

// ProviderConfig selects one backend. Exactly one of Local or Cloud is
// expected to be set, matching Provider.
type ProviderConfig struct {
	Provider ProviderID
	Local    *LocalConfig
	Cloud    *CloudConfig
}

// Model returns the model of the active variant.
func (c ProviderConfig) Model() string {
	switch c.Provider {
	case ProviderLocal:
		if c.Local != nil {
			return c.Local.Model
		}
	case ProviderCloud:
		if c.Cloud != nil {
			return c.Cloud.Model
		}
	}
	return ""
}

// WithModel returns a copy of c using model. The receiver is not modified.
func (c ProviderConfig) WithModel(model string) ProviderConfig {
	out := ProviderConfig{Provider: c.Provider}
	if c.Local != nil {
		local := *c.Local
		out.Local = &local
	}
	if c.Cloud != nil {
		cloud := *c.Cloud
		out.Cloud = &cloud
	}
	switch {
	case c.Provider == ProviderLocal && out.Local != nil:
		out.Local.Model = model
	case c.Provider == ProviderCloud && out.Cloud != nil:
		out.Cloud.Model = model
	}
	return out
}

// LocalProvider builds a local ProviderConfig, filling defaults.
func LocalProvider(host, model string) ProviderConfig {
	return ProviderConfig{
		Provider: ProviderLocal,
		Local: &LocalConfig{
			Host:  strings.TrimSuffix(orDefault(host, DefaultOllamaHost), "/"),
			Model: orDefault(model, DefaultOllamaModel),
		},
	}
}

// CloudProvider builds a cloud ProviderConfig, filling defaults.
func CloudProvider(apiKey, model string, maxTokens int) ProviderConfig {
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	return ProviderConfig{
		Provider: ProviderCloud,
		Cloud: &CloudConfig{
			APIKey:    apiKey,
			Model:     orDefault(model, DefaultAnthropicModel),
			MaxTokens: maxTokens,
			BaseURL:   DefaultAnthropicBaseURL,
		},
	}
}

// ParseProvider maps a selector value (including the local/cloud aliases)
// to a ProviderID.
func ParseProvider(value string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ollama", "local":
		return ProviderLocal, nil
	case "anthropic", "claude", "cloud":
		return ProviderCloud, nil
	case "":
		return "", missingSelector()
	default:
		return "", unknownProvider(value)
	}
}

// FromEnv builds a ProviderConfig from environment-style variables. It is
// the only place provider variables are read; callers pass os.LookupEnv or
// Settings.Lookup.
func FromEnv(lookup LookupFunc) (ProviderConfig, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	provider, err := ParseProvider(get(EnvProvider))
	if err != nil {
		return ProviderConfig{}, err
	}

	switch provider {
	case ProviderLocal:
		return LocalProvider(get(EnvOllamaHost), get(EnvOllamaModel)), nil

	case ProviderCloud:
		apiKey := get(EnvAnthropicAPIKey)
		if apiKey == "" {
			return ProviderConfig{}, missingAPIKey()
		}
		maxTokens := DefaultAnthropicMaxTokens
		if raw := get(EnvAnthropicMaxTokens); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return ProviderConfig{}, &ConfigurationError{
					Variable: EnvAnthropicMaxTokens,
					Provider: ProviderCloud,
					Message:  fmt.Sprintf("%s must be a positive integer, got %q", EnvAnthropicMaxTokens, raw),
					Hint:     "Example:\n  export ANTHROPIC_MAX_TOKENS=4096",
				}
			}
			maxTokens = n
		}
		cfg := CloudProvider(apiKey, get(EnvAnthropicModel), maxTokens)
		if base := get(EnvAnthropicBaseURL); base != "" {
			cfg.Cloud.BaseURL = strings.TrimSuffix(base, "/")
		}
		return cfg, nil
	}

	return ProviderConfig{}, unknownProvider(string(provider))
}

// ApplyEnv writes cfg back under the variable names FromEnv reads, so a later
// FromEnv in the same process observes the same selection.
func ApplyEnv(cfg ProviderConfig, setenv func(key, value string) error) error {
	values := map[string]string{EnvProvider: string(cfg.Provider)}
	switch cfg.Provider {
	case ProviderLocal:
		if cfg.Local == nil {
			return fmt.Errorf("local provider config is missing")
		}
		values[EnvOllamaHost] = cfg.Local.Host
		values[EnvOllamaModel] = cfg.Local.Model
	case ProviderCloud:
		if cfg.Cloud == nil {
			return fmt.Errorf("cloud provider config is missing")
		}
		values[EnvAnthropicAPIKey] = cfg.Cloud.APIKey
		values[EnvAnthropicModel] = cfg.Cloud.Model
		values[EnvAnthropicMaxTokens] = strconv.Itoa(cfg.Cloud.MaxTokens)
		if cfg.Cloud.BaseURL != "" && cfg.Cloud.BaseURL != DefaultAnthropicBaseURL {
			values[EnvAnthropicBaseURL] = cfg.Cloud.BaseURL
		}
	default:
		return unknownProvider(string(cfg.Provider))
	}

	for key, value := range values {
		if err := setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// GeminiConfig configures the first-party generation backend used by the
// content generator. It is not a chat provider variant.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiFromEnv reads GEMINI_API_KEY and GEMINI_MODEL.
func GeminiFromEnv(lookup LookupFunc) (GeminiConfig, error) {
	key, _ := lookup(EnvGeminiAPIKey)
	model, _ := lookup(EnvGeminiModel)
	if strings.TrimSpace(key) == "" {
		return GeminiConfig{}, &ConfigurationError{
			Variable:      EnvGeminiAPIKey,
			MissingSecret: true,
			Message:       EnvGeminiAPIKey + " is not set.",
			Hint: `Create a key at https://aistudio.google.com/apikey, then:
  export GEMINI_API_KEY=...
or store it in the config file:
  zchat config set gemini_api_key ...`,
		}
	}
	return GeminiConfig{
		APIKey: strings.TrimSpace(key),
		Model:  orDefault(model, DefaultGeminiModel),
	}, nil
}
