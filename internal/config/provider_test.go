package config

import (
	"errors"
	"strings"
	"testing"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input   string
		want    ProviderID
		wantErr bool
	}{
		{"ollama", ProviderLocal, false},
		{"local", ProviderLocal, false},
		{" Local ", ProviderLocal, false},
		{"anthropic", ProviderCloud, false},
		{"claude", ProviderCloud, false},
		{"cloud", ProviderCloud, false},
		{"", "", true},
		{"openai", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProvider(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseProvider(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseProvider(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromEnvLocalDefaults(t *testing.T) {
	cfg, err := FromEnv(mapLookup(map[string]string{EnvProvider: "ollama"}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Provider != ProviderLocal || cfg.Local == nil || cfg.Cloud != nil {
		t.Fatalf("FromEnv() = %+v, want local variant only", cfg)
	}
	if cfg.Local.Host != DefaultOllamaHost {
		t.Errorf("Host = %q, want %q", cfg.Local.Host, DefaultOllamaHost)
	}
	if cfg.Model() != DefaultOllamaModel {
		t.Errorf("Model() = %q, want %q", cfg.Model(), DefaultOllamaModel)
	}
}

func TestFromEnvLocalTrimsHost(t *testing.T) {
	cfg, err := FromEnv(mapLookup(map[string]string{
		EnvProvider:    "local",
		EnvOllamaHost:  "http://gpu-box:11434/",
		EnvOllamaModel: "mistral:latest",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Local.Host != "http://gpu-box:11434" {
		t.Errorf("Host = %q, want trailing slash trimmed", cfg.Local.Host)
	}
	if cfg.Local.Model != "mistral:latest" {
		t.Errorf("Model = %q, want %q", cfg.Local.Model, "mistral:latest")
	}
}

func TestFromEnvCloud(t *testing.T) {
	cfg, err := FromEnv(mapLookup(map[string]string{
		EnvProvider:           "anthropic",
		EnvAnthropicAPIKey:    "sk-ant-xyz",
		EnvAnthropicMaxTokens: "1000",
	}))
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Cloud == nil || cfg.Local != nil {
		t.Fatalf("FromEnv() = %+v, want cloud variant only", cfg)
	}
	if cfg.Cloud.APIKey != "sk-ant-xyz" {
		t.Errorf("APIKey = %q", cfg.Cloud.APIKey)
	}
	if cfg.Cloud.Model != DefaultAnthropicModel {
		t.Errorf("Model = %q, want %q", cfg.Cloud.Model, DefaultAnthropicModel)
	}
	if cfg.Cloud.MaxTokens != 1000 {
		t.Errorf("MaxTokens = %d, want 1000", cfg.Cloud.MaxTokens)
	}
	if cfg.Cloud.BaseURL != DefaultAnthropicBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.Cloud.BaseURL, DefaultAnthropicBaseURL)
	}
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		wantVariable  string
		missingSecret bool
	}{
		{
			name:         "selector unset",
			env:          map[string]string{},
			wantVariable: EnvProvider,
		},
		{
			name:         "unknown provider",
			env:          map[string]string{EnvProvider: "gpt"},
			wantVariable: EnvProvider,
		},
		{
			name:          "missing api key",
			env:           map[string]string{EnvProvider: "cloud"},
			wantVariable:  EnvAnthropicAPIKey,
			missingSecret: true,
		},
		{
			name: "bad max tokens",
			env: map[string]string{
				EnvProvider:           "anthropic",
				EnvAnthropicAPIKey:    "k",
				EnvAnthropicMaxTokens: "lots",
			},
			wantVariable: EnvAnthropicMaxTokens,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(mapLookup(tt.env))
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("FromEnv() error = %v, want *ConfigurationError", err)
			}
			if cfgErr.Variable != tt.wantVariable {
				t.Errorf("Variable = %q, want %q", cfgErr.Variable, tt.wantVariable)
			}
			if cfgErr.MissingSecret != tt.missingSecret {
				t.Errorf("MissingSecret = %v, want %v", cfgErr.MissingSecret, tt.missingSecret)
			}
			if !strings.Contains(err.Error(), "export") && tt.name != "unknown provider" {
				t.Errorf("error %q should carry an export hint", err.Error())
			}
		})
	}
}

func TestApplyEnvRoundTrip(t *testing.T) {
	proxied := CloudProvider("sk-ant-test", "claude-test", 1024)
	proxied.Cloud.BaseURL = "https://llm-proxy.internal.example"

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantEnv map[string]string
		noEnv   []string
	}{
		{
			name:    "local",
			cfg:     LocalProvider("http://localhost:11434", "llama3.2:latest"),
			wantEnv: map[string]string{EnvProvider: "ollama", EnvOllamaModel: "llama3.2:latest"},
		},
		{
			name:    "cloud default base url",
			cfg:     CloudProvider("sk-ant-test", "claude-test", 1024),
			wantEnv: map[string]string{EnvProvider: "anthropic", EnvAnthropicMaxTokens: "1024"},
			noEnv:   []string{EnvAnthropicBaseURL},
		},
		{
			name:    "cloud custom base url",
			cfg:     proxied,
			wantEnv: map[string]string{EnvAnthropicBaseURL: "https://llm-proxy.internal.example"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{}
			setenv := func(k, v string) error {
				env[k] = v
				return nil
			}

			if err := ApplyEnv(tt.cfg, setenv); err != nil {
				t.Fatalf("ApplyEnv() error = %v", err)
			}
			for k, v := range tt.wantEnv {
				if env[k] != v {
					t.Errorf("env[%s] = %q, want %q", k, env[k], v)
				}
			}
			for _, k := range tt.noEnv {
				if _, ok := env[k]; ok {
					t.Errorf("env[%s] is set, want unset", k)
				}
			}

			got, err := FromEnv(mapLookup(env))
			if err != nil {
				t.Fatalf("FromEnv() error = %v", err)
			}
			if got.Provider != tt.cfg.Provider {
				t.Fatalf("FromEnv().Provider = %q, want %q", got.Provider, tt.cfg.Provider)
			}
			switch got.Provider {
			case ProviderLocal:
				if *got.Local != *tt.cfg.Local {
					t.Errorf("FromEnv() = %+v, want %+v", *got.Local, *tt.cfg.Local)
				}
			case ProviderCloud:
				if *got.Cloud != *tt.cfg.Cloud {
					t.Errorf("FromEnv() = %+v, want %+v", *got.Cloud, *tt.cfg.Cloud)
				}
			}
		})
	}
}

func TestApplyEnvRejectsEmptyVariant(t *testing.T) {
	err := ApplyEnv(ProviderConfig{Provider: ProviderCloud}, func(string, string) error { return nil })
	if err == nil {
		t.Error("ApplyEnv() error = nil, want error for missing cloud config")
	}
}

func TestGeminiFromEnv(t *testing.T) {
	if _, err := GeminiFromEnv(mapLookup(nil)); err == nil {
		t.Error("GeminiFromEnv() error = nil, want missing key error")
	}

	cfg, err := GeminiFromEnv(mapLookup(map[string]string{EnvGeminiAPIKey: "AIza-test"}))
	if err != nil {
		t.Fatalf("GeminiFromEnv() error = %v", err)
	}
	if cfg.Model != DefaultGeminiModel {
		t.Errorf("Model = %q, want %q", cfg.Model, DefaultGeminiModel)
	}
}

func TestWithModel(t *testing.T) {
	orig := LocalProvider("", "llama3.2")
	switched := orig.WithModel("mistral")

	if switched.Model() != "mistral" {
		t.Errorf("WithModel().Model() = %q, want %q", switched.Model(), "mistral")
	}
	if orig.Model() != "llama3.2" {
		t.Errorf("original Model() = %q after WithModel, want unchanged", orig.Model())
	}
	if switched.Local.Host != DefaultOllamaHost {
		t.Errorf("WithModel() Host = %q, want %q", switched.Local.Host, DefaultOllamaHost)
	}

	cloud := CloudProvider("k", "", 0).WithModel("claude-x")
	if cloud.Cloud.Model != "claude-x" || cloud.Cloud.APIKey != "k" {
		t.Errorf("cloud WithModel() = %+v", cloud.Cloud)
	}
}
