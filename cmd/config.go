package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/simonyos/zchat/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage zchat configuration",
	Long: `Manage the settings stored in the zchat config file. Environment
variables (ZCHAT_PROVIDER, OLLAMA_HOST, ANTHROPIC_API_KEY, ...) take
precedence over stored values.

Examples:
  zchat config                             # Show current config
  zchat config set provider anthropic      # Use the Anthropic API
  zchat config set anthropic_api_key <key> # Store the API key
  zchat config set ollama_model mistral    # Pick a local model
  zchat config delete provider             # Go back to auto-detection`,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig(cmd.OutOrStdout())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
  provider              - ollama or anthropic (aliases: local, cloud)
  ollama_host           - Ollama server URL (default: http://localhost:11434)
  ollama_model          - Local model name
  anthropic_api_key     - Anthropic API key
  anthropic_model       - Claude model name
  anthropic_max_tokens  - Maximum tokens per reply
  gemini_api_key        - Gemini API key (zchat ask --backend gemini)
  gemini_model          - Gemini model name
  system_prompt         - Extra instructions added to every chat
  theme                 - TUI color theme (sand, tokyonight)
  usage_log             - true to write token usage to daily log files
  nats_url              - Publish token usage to this NATS server`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.\n", args[0])
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := args[0]
		if val, ok := config.ListKeys()[key]; ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, val)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is not set\n", key)
		}
	},
}

var configDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"remove", "unset"},
	Short:   "Delete a configuration value",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), config.Path())
	},
}

func showConfig(w io.Writer) {
	fmt.Fprintf(w, "Configuration file: %s\n\n", config.Path())

	keys := config.ListKeys()
	if len(keys) == 0 {
		fmt.Fprintln(w, "No configuration set.")
		fmt.Fprintln(w, "\nUse 'zchat config set <key> <value>' or 'zchat setup' to configure.")
		return
	}

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	slices.Sort(names)
	for _, k := range names {
		fmt.Fprintf(w, "  %s: %s\n", k, keys[k])
	}
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configDeleteCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
