package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/simonyos/zchat/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured provider offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		cfg, err := resolveProvider(ctx, false)
		if err != nil {
			return err
		}
		client, err := llm.New(cfg)
		if err != nil {
			return err
		}

		models, err := client.ListModels(ctx)
		if errors.Is(err, llm.ErrUnsupportedOperation) {
			return fmt.Errorf("%s cannot list models", client.Provider())
		}
		if err != nil {
			return err
		}

		if len(models) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No models available on %s.\n", client.Provider())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), modelTable(models, client.Model()))
		return nil
	},
}

// modelTable renders models as a table, marking current with "*".
func modelTable(models []llm.ModelDescriptor, current string) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "NAME", "SIZE", "PARAMS", "QUANT", "MODIFIED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, m := range models {
		marker := ""
		if m.Name == current || m.Name == current+":latest" {
			marker = "*"
		}
		modified := ""
		if !m.ModifiedAt.IsZero() {
			modified = m.ModifiedAt.Format("2006-01-02")
		}
		t.Row(marker, m.Name, formatBytes(m.Size), m.ParameterSize, m.Quantization, modified)
	}
	return t.String()
}

// formatBytes renders a size in decimal units. Zero renders as empty.
func formatBytes(n int64) string {
	const unit = 1000
	if n <= 0 {
		return ""
	}
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
