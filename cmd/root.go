// Package cmd implements the zchat command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/simonyos/zchat/internal/autoconfig"
	"github.com/simonyos/zchat/internal/chat"
	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/prompts"
	"github.com/simonyos/zchat/internal/tui"
	"github.com/simonyos/zchat/internal/tui/theme"
	"github.com/simonyos/zchat/internal/usage"
)

var (
	providerFlag string
	modelFlag    string
	saveFlag     bool
	logLevelFlag string
	logFileFlag  string
)

// errReported marks an error whose message was already shown to the user.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "zchat",
	Short: "Chat with local and cloud models from the terminal",
	Long: `zchat is a terminal chat client for a local Ollama server or the
Anthropic API.

With no configuration it looks for a running Ollama server and picks the
best installed model. Set ZCHAT_PROVIDER (or "zchat config set provider")
to choose a backend explicitly.

Providers:
  ollama     - local models (aliases: local)
  anthropic  - Claude models, needs ANTHROPIC_API_KEY (aliases: cloud, claude)`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal, so it logs only when given a file.
		quiet := cmd == cmd.Root()
		return setupLogger(logLevelFlag, logFileFlag, quiet)
	},
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	settings := config.Get()

	cfg, err := resolveProvider(ctx, true)
	if err != nil {
		return err
	}

	client, err := llm.New(cfg)
	if err != nil {
		return err
	}

	recorder, closeRecorder := openRecorder(settings)
	defer closeRecorder()
	tracker := usage.NewSession(recorder)

	if err := theme.Use(settings.Theme); err != nil {
		slog.Warn("ignoring theme setting", "error", err)
	}

	systemPrompt := prompts.BuildSystemPrompt(string(client.Provider()), client.Model(), settings.SystemPrompt)
	session := chat.New(client, systemPrompt, tracker)

	slog.Info("starting chat", "provider", client.Provider(), "model", client.Model(), "session", tracker.ID)

	return tui.Run(ctx, tui.Options{
		Session: session,
		Backend: client,
		Usage:   tracker,
		Version: version,
		Switch: func(cfg config.ProviderConfig) (tui.Backend, error) {
			c, err := llm.New(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	})
}

// settingsLookup reads configuration from the environment, then the
// settings file, with --provider and --model applied on top.
func settingsLookup() config.LookupFunc {
	base := config.Get().Lookup(os.LookupEnv)
	return func(key string) (string, bool) {
		switch key {
		case config.EnvProvider:
			if providerFlag != "" {
				return providerFlag, true
			}
		case config.EnvOllamaModel, config.EnvAnthropicModel, config.EnvGeminiModel:
			if modelFlag != "" {
				return modelFlag, true
			}
		}
		return base(key)
	}
}

// resolveProvider picks the provider configuration for this run. When
// interactive, a missing secret starts the setup wizard instead of failing.
func resolveProvider(ctx context.Context, interactive bool) (config.ProviderConfig, error) {
	result := autoconfig.Resolve(ctx, autoconfig.Options{Lookup: settingsLookup()})

	switch r := result.(type) {
	case autoconfig.Ok:
		if r.Detected {
			// Later lookups in this process see the detected choice.
			if err := config.ApplyEnv(r.Config, os.Setenv); err != nil {
				return config.ProviderConfig{}, err
			}
		}
		if saveFlag {
			if err := config.SaveSelection(r.Config); err != nil {
				return config.ProviderConfig{}, fmt.Errorf("failed to save selection: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Saved %s (%s) to %s\n", r.Config.Provider, r.Config.Model(), config.Path())
		}
		return r.Config, nil

	case autoconfig.NeedsSetup:
		if !interactive {
			return config.ProviderConfig{}, fmt.Errorf("%s\n\nRun 'zchat setup' to configure %s", r.Reason, r.Provider)
		}
		fmt.Fprintln(os.Stderr, r.Reason)
		return runSetup(r.Provider)

	case autoconfig.ConfigError:
		return config.ProviderConfig{}, r
	}

	return config.ProviderConfig{}, fmt.Errorf("unexpected resolution result %T", result)
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "Provider to use (ollama, anthropic)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model to use (provider-specific)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Write logs to this file")
	rootCmd.Flags().BoolVar(&saveFlag, "save", false, "Save the resolved provider and model to the config file")
}
