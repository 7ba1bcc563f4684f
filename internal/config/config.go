package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Settings holds the values stored in the config file. Environment
// variables take precedence over every field here (see Lookup).
type Settings struct {
	// Backend selection
	Provider string `yaml:"provider,omitempty"`

	// Ollama
	OllamaHost  string `yaml:"ollama_host,omitempty"`
	OllamaModel string `yaml:"ollama_model,omitempty"`

	// Anthropic
	AnthropicKey       string `yaml:"anthropic_api_key,omitempty"`
	AnthropicModel     string `yaml:"anthropic_model,omitempty"`
	AnthropicMaxTokens int    `yaml:"anthropic_max_tokens,omitempty"`

	// Gemini (ask --backend gemini)
	GeminiKey   string `yaml:"gemini_api_key,omitempty"`
	GeminiModel string `yaml:"gemini_model,omitempty"`

	// Chat
	SystemPrompt string `yaml:"system_prompt,omitempty"`
	Theme        string `yaml:"theme,omitempty"`

	// Usage recording
	UsageLog bool   `yaml:"usage_log,omitempty"`
	NATSURL  string `yaml:"nats_url,omitempty"`
}

var (
	configDir  string
	configFile string
	current    *Settings
)

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir = filepath.Join(home, ".config", "zchat")
	configFile = filepath.Join(configDir, "config.yaml")
}

// Load reads the settings file, returning empty settings when it does not
// exist. The result is cached.
func Load() (*Settings, error) {
	if current != nil {
		return current, nil
	}

	settings := &Settings{}
	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			current = settings
			return current, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configFile, err)
	}

	current = settings
	return current, nil
}

// Save writes the settings to disk with owner-only permissions.
func Save(s *Settings) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	current = s
	return nil
}

// Get returns the cached settings, loading them if necessary. A config file
// that fails to parse yields empty settings.
func Get() *Settings {
	if current == nil {
		if _, err := Load(); err != nil {
			return &Settings{}
		}
	}
	return current
}

// Set updates one setting by key and saves the file.
func Set(key, value string) error {
	s, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "provider":
		id, err := ParseProvider(value)
		if err != nil {
			return err
		}
		s.Provider = string(id)
	case "ollama_host", "host":
		s.OllamaHost = value
	case "ollama_model":
		s.OllamaModel = value
	case "anthropic_api_key", "anthropic":
		s.AnthropicKey = value
	case "anthropic_model":
		s.AnthropicModel = value
	case "anthropic_max_tokens", "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer", key)
		}
		s.AnthropicMaxTokens = n
	case "gemini_api_key", "gemini":
		s.GeminiKey = value
	case "gemini_model":
		s.GeminiModel = value
	case "system_prompt", "system":
		s.SystemPrompt = value
	case "theme":
		s.Theme = value
	case "usage_log":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("usage_log must be true or false")
		}
		s.UsageLog = b
	case "nats_url", "nats":
		s.NATSURL = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(s)
}

// Delete clears one setting by key and saves the file.
func Delete(key string) error {
	s, err := Load()
	if err != nil {
		return err
	}

	switch key {
	case "provider":
		s.Provider = ""
	case "ollama_host", "host":
		s.OllamaHost = ""
	case "ollama_model":
		s.OllamaModel = ""
	case "anthropic_api_key", "anthropic":
		s.AnthropicKey = ""
	case "anthropic_model":
		s.AnthropicModel = ""
	case "anthropic_max_tokens", "max_tokens":
		s.AnthropicMaxTokens = 0
	case "gemini_api_key", "gemini":
		s.GeminiKey = ""
	case "gemini_model":
		s.GeminiModel = ""
	case "system_prompt", "system":
		s.SystemPrompt = ""
	case "theme":
		s.Theme = ""
	case "usage_log":
		s.UsageLog = false
	case "nats_url", "nats":
		s.NATSURL = ""
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(s)
}

// SaveSelection stores a provider selection so later runs skip detection.
func SaveSelection(cfg ProviderConfig) error {
	s, err := Load()
	if err != nil {
		return err
	}

	s.Provider = string(cfg.Provider)
	switch cfg.Provider {
	case ProviderLocal:
		if cfg.Local != nil {
			s.OllamaHost = cfg.Local.Host
			s.OllamaModel = cfg.Local.Model
		}
	case ProviderCloud:
		if cfg.Cloud != nil {
			s.AnthropicKey = cfg.Cloud.APIKey
			s.AnthropicModel = cfg.Cloud.Model
			s.AnthropicMaxTokens = cfg.Cloud.MaxTokens
		}
	}
	return Save(s)
}

// Lookup returns a LookupFunc that consults env first and falls back to the
// settings file, keyed by the environment variable names.
func (s *Settings) Lookup(env LookupFunc) LookupFunc {
	file := s.envValues()
	return func(key string) (string, bool) {
		if env != nil {
			if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
				return v, true
			}
		}
		v, ok := file[key]
		return v, ok && v != ""
	}
}

func (s *Settings) envValues() map[string]string {
	values := map[string]string{
		EnvProvider:        s.Provider,
		EnvOllamaHost:      s.OllamaHost,
		EnvOllamaModel:     s.OllamaModel,
		EnvAnthropicAPIKey: s.AnthropicKey,
		EnvAnthropicModel:  s.AnthropicModel,
		EnvGeminiAPIKey:    s.GeminiKey,
		EnvGeminiModel:     s.GeminiModel,
	}
	if s.AnthropicMaxTokens > 0 {
		values[EnvAnthropicMaxTokens] = strconv.Itoa(s.AnthropicMaxTokens)
	}
	return values
}

// Path returns the path to the config file.
func Path() string {
	return configFile
}

// Dir returns the config directory.
func Dir() string {
	return configDir
}

// ListKeys returns the configured values for display, with secrets masked.
func ListKeys() map[string]string {
	s := Get()
	result := make(map[string]string)

	addSecret := func(name, value, env string) {
		if value != "" {
			result[name] = maskKey(value)
		} else if v := os.Getenv(env); v != "" {
			result[name] = maskKey(v) + " (env)"
		}
	}
	addPlain := func(name, value string) {
		if value != "" {
			result[name] = value
		}
	}

	addPlain("provider", s.Provider)
	addPlain("ollama_host", s.OllamaHost)
	addPlain("ollama_model", s.OllamaModel)
	addSecret("anthropic_api_key", s.AnthropicKey, EnvAnthropicAPIKey)
	addPlain("anthropic_model", s.AnthropicModel)
	if s.AnthropicMaxTokens > 0 {
		result["anthropic_max_tokens"] = strconv.Itoa(s.AnthropicMaxTokens)
	}
	addSecret("gemini_api_key", s.GeminiKey, EnvGeminiAPIKey)
	addPlain("gemini_model", s.GeminiModel)
	addPlain("system_prompt", s.SystemPrompt)
	addPlain("theme", s.Theme)
	if s.UsageLog {
		result["usage_log"] = "true"
	}
	addPlain("nats_url", s.NATSURL)

	return result
}

// maskKey shows only the first 4 and last 4 characters
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
