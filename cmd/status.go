package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/usage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resolved provider, whether it answers, and today's usage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		out := cmd.OutOrStdout()
		cfg, err := resolveProvider(ctx, false)
		if err != nil {
			return err
		}
		client, err := llm.New(cfg)
		if err != nil {
			return err
		}

		printBackend(out, cfg)
		state := "answering"
		if !client.IsAvailable(ctx) {
			state = "NOT answering"
		}
		fmt.Fprintf(out, "  status:     %s\n", state)

		if config.Get().UsageLog {
			rec := usage.NewFileRecorder("")
			entries, err := rec.ReadDay(time.Now())
			if err != nil {
				return fmt.Errorf("failed to read usage log: %w", err)
			}
			printUsage(out, usage.Sum(entries))
		}
		return nil
	},
}

func printBackend(w io.Writer, cfg config.ProviderConfig) {
	fmt.Fprintf(w, "Provider:     %s\n", cfg.Provider)
	fmt.Fprintf(w, "  model:      %s\n", cfg.Model())
	switch {
	case cfg.Local != nil:
		fmt.Fprintf(w, "  host:       %s\n", cfg.Local.Host)
	case cfg.Cloud != nil:
		fmt.Fprintf(w, "  endpoint:   %s\n", cfg.Cloud.BaseURL)
		fmt.Fprintf(w, "  max tokens: %d\n", cfg.Cloud.MaxTokens)
	}
}

func printUsage(w io.Writer, t usage.Totals) {
	fmt.Fprintf(w, "\nToday's usage: %d requests\n", t.Calls)
	if t.Calls == 0 {
		return
	}
	approx := ""
	if t.Estimated {
		approx = " (some counts estimated)"
	}
	fmt.Fprintf(w, "  prompt:     %d\n  completion: %d\n  total:      %d%s\n",
		t.PromptTokens, t.CompletionTokens, t.TotalTokens, approx)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
