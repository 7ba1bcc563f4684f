package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"google.golang.org/genai"

	"github.com/simonyos/zchat/internal/config"
	"github.com/simonyos/zchat/internal/generator"
	"github.com/simonyos/zchat/internal/llm"
	"github.com/simonyos/zchat/internal/prompts"
	"github.com/simonyos/zchat/internal/usage"
)

var (
	askBackend  string
	askNoStream bool
	askTokens   bool
	askSystem   string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and print the answer",
	Long: `Ask one question and print the answer to stdout. Input piped on stdin is
appended to the question, so it can be used in shell pipelines:

  git diff | zchat ask "write a commit message for this change"
  zchat ask --backend gemini "what is a goroutine?"`,
	RunE: runAsk,
}

// readQuestion joins the arguments with any piped stdin.
func readQuestion(args []string, stdin io.Reader, piped bool) (string, error) {
	question := strings.TrimSpace(strings.Join(args, " "))
	if piped {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		if input := strings.TrimSpace(string(data)); input != "" {
			if question == "" {
				question = input
			} else {
				question += "\n\n" + input
			}
		}
	}
	if question == "" {
		return "", fmt.Errorf("no question given")
	}
	return question, nil
}

// candidateText returns the text of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	question, err := readQuestion(args, os.Stdin, !term.IsTerminal(int(os.Stdin.Fd())))
	if err != nil {
		return err
	}

	recorder, closeRecorder := openRecorder(config.Get())
	defer closeRecorder()
	tracker := usage.NewSession(recorder)

	backend := strings.ToLower(strings.TrimSpace(askBackend))
	opts := generator.Options{
		Backend:  backend,
		Lookup:   settingsLookup(),
		Recorder: tracker,
	}
	var provider, model string
	if backend == generator.BackendGemini {
		provider = generator.BackendGemini
		if g, err := config.GeminiFromEnv(opts.Lookup); err == nil {
			model = g.Model
		}
	} else {
		cfg, err := resolveProvider(ctx, false)
		if err != nil {
			return err
		}
		client, err := llm.New(cfg)
		if err != nil {
			return err
		}
		opts.Client = client
		provider, model = string(client.Provider()), client.Model()
	}

	gen, err := generator.New(ctx, opts)
	if err != nil {
		return err
	}

	system := askSystem
	if system == "" {
		system = prompts.BuildSystemPrompt(provider, model, config.Get().SystemPrompt)
	}
	req := &generator.Request{
		Contents: []*genai.Content{genai.NewContentFromText(question, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		},
	}

	out := cmd.OutOrStdout()
	failed := false
	emit := func(resp *genai.GenerateContentResponse) {
		text := candidateText(resp)
		if generator.IsDiagnostic(resp) {
			failed = true
			fmt.Fprintln(os.Stderr, strings.TrimSpace(strings.TrimPrefix(text, generator.DiagnosticMarker)))
			return
		}
		fmt.Fprint(out, text)
	}

	if askNoStream {
		resp, err := gen.GenerateContent(ctx, req)
		if err != nil {
			return err
		}
		emit(resp)
	} else {
		for resp, err := range gen.GenerateContentStream(ctx, req) {
			if err != nil {
				return err
			}
			emit(resp)
		}
	}
	if !failed {
		fmt.Fprintln(out)
	}

	if askTokens {
		t := tracker.Totals()
		approx := ""
		if t.Estimated {
			approx = " (estimated)"
		}
		fmt.Fprintf(os.Stderr, "tokens: prompt %d, completion %d, total %d%s\n",
			t.PromptTokens, t.CompletionTokens, t.TotalTokens, approx)
	}

	if failed {
		return errReported
	}
	return nil
}

func init() {
	askCmd.Flags().StringVarP(&askBackend, "backend", "b", generator.BackendChat, "Generation backend (chat, gemini)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the full answer instead of streaming")
	askCmd.Flags().BoolVar(&askTokens, "tokens", false, "Print token usage to stderr")
	askCmd.Flags().StringVar(&askSystem, "system", "", "Replace the default system prompt")
	rootCmd.AddCommand(askCmd)
}
