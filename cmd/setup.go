package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/simonyos/zchat/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Choose a provider and save it to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runSetup("")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Using %s with model %s.\n", cfg.Provider, cfg.Model())
		return nil
	},
}

// setupAnswers holds the wizard's form values.
type setupAnswers struct {
	Provider  string
	Host      string
	APIKey    string
	Model     string
	MaxTokens string
}

// toConfig builds a ProviderConfig from the answers, filling defaults.
func (a setupAnswers) toConfig() (config.ProviderConfig, error) {
	id, err := config.ParseProvider(a.Provider)
	if err != nil {
		return config.ProviderConfig{}, err
	}

	switch id {
	case config.ProviderCloud:
		key := strings.TrimSpace(a.APIKey)
		if key == "" {
			return config.ProviderConfig{}, config.MissingProviderConfig(id)
		}
		maxTokens := 0
		if s := strings.TrimSpace(a.MaxTokens); s != "" {
			if maxTokens, err = strconv.Atoi(s); err != nil || maxTokens <= 0 {
				return config.ProviderConfig{}, fmt.Errorf("max tokens must be a positive integer")
			}
		}
		return config.CloudProvider(key, strings.TrimSpace(a.Model), maxTokens), nil
	default:
		return config.LocalProvider(strings.TrimSpace(a.Host), strings.TrimSpace(a.Model)), nil
	}
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func positiveOrEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n <= 0 {
		return errors.New("enter a positive number")
	}
	return nil
}

// runSetup asks for a provider and its settings, then saves them. A
// non-empty preset skips the provider question.
func runSetup(preset config.ProviderID) (config.ProviderConfig, error) {
	answers := setupAnswers{
		Provider: string(preset),
		APIKey:   os.Getenv(config.EnvAnthropicAPIKey),
	}
	if answers.Provider == "" {
		answers.Provider = string(config.ProviderLocal)
	}

	isCloud := func() bool { return answers.Provider == string(config.ProviderCloud) }

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which provider do you want to use?").
				Options(
					huh.NewOption("Ollama (local models)", string(config.ProviderLocal)),
					huh.NewOption("Anthropic (Claude)", string(config.ProviderCloud)),
				).
				Value(&answers.Provider),
		).WithHideFunc(func() bool { return preset != "" }),

		huh.NewGroup(
			huh.NewInput().
				Title("Ollama host").
				Placeholder(config.DefaultOllamaHost).
				Value(&answers.Host),
			huh.NewInput().
				Title("Model").
				Description("Leave empty to use "+config.DefaultOllamaModel).
				Placeholder(config.DefaultOllamaModel).
				Value(&answers.Model),
		).WithHideFunc(isCloud),

		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description("Stored in "+config.Path()+" with owner-only permissions").
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty("API key")).
				Value(&answers.APIKey),
			huh.NewInput().
				Title("Model").
				Placeholder(config.DefaultAnthropicModel).
				Value(&answers.Model),
			huh.NewInput().
				Title("Max tokens per reply").
				Placeholder(strconv.Itoa(config.DefaultAnthropicMaxTokens)).
				Validate(positiveOrEmpty).
				Value(&answers.MaxTokens),
		).WithHideFunc(func() bool { return !isCloud() }),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return config.ProviderConfig{}, errors.New("setup cancelled")
		}
		return config.ProviderConfig{}, err
	}

	cfg, err := answers.toConfig()
	if err != nil {
		return config.ProviderConfig{}, err
	}
	if err := config.SaveSelection(cfg); err != nil {
		return config.ProviderConfig{}, fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Configuration saved to %s\n", config.Path())
	return cfg, nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
