package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardstream/internal/guard"
)

var (
	applySource           string
	applyFormat           string
	applyGuardrail        string
	applyGuardrailVersion string
)

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applySource, "source", "s", "INPUT", "Content source (INPUT|OUTPUT)")
	applyCmd.Flags().StringVarP(&applyFormat, "format", "f", "text", "Output format (text|json)")
	applyCmd.Flags().StringVar(&applyGuardrail, "guardrail", "", "Guardrail ID (overrides config)")
	applyCmd.Flags().StringVar(&applyGuardrailVersion, "guardrail-version", "", "Guardrail version (overrides config)")
}

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Evaluate a file or stdin against the guardrail",
	Long: "Reads text from the given file (or stdin when omitted) and evaluates it.\n" +
		"Text beyond the per-call quota is split into units and evaluated in order;\n" +
		"the first blocked unit stops evaluation.\n\n" +
		"Exit code 0 when content passes, 2 when it is blocked.",
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	source, err := parseSource(applySource)
	if err != nil {
		return err
	}

	input := "-"
	var data []byte
	if len(args) == 1 {
		input = args[0]
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	ctx := cmd.Context()
	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if applyGuardrail != "" {
		rt.cfg.Guardrail.ID = applyGuardrail
	}
	if applyGuardrailVersion != "" {
		rt.cfg.Guardrail.Version = applyGuardrailVersion
	}
	if err := rt.cfg.RequireGuardrail(); err != nil {
		return err
	}

	verdict, err := rt.guard.EvaluateFullText(ctx, rt.request(string(data), source))
	if err != nil {
		// Emit whatever cleared before the failing chunk; the error
		// carries the chunk index.
		if verdict.Text != "" {
			fmt.Println(verdict.Text)
		}
		return fmt.Errorf("evaluation incomplete after %d cleared unit(s): %w", len(verdict.History), err)
	}

	rt.record(ctx, "cli", input, source, verdict.History, verdict.Blocked, verdict.Last)

	switch applyFormat {
	case "json":
		out, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printVerdict(verdict)
	}

	if verdict.Blocked {
		return errBlocked
	}
	return nil
}

func printVerdict(v guard.Verdict) {
	if v.Blocked {
		fmt.Fprintf(os.Stderr, "BLOCKED after %d unit(s)\n", len(v.History))
		for _, f := range v.Last.Findings {
			if !f.Blocked {
				continue
			}
			fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Policy, findingLabel(f))
		}
	}
	fmt.Println(v.Text)
}

func findingLabel(f guard.Finding) string {
	if f.Name != "" {
		return f.Name
	}
	if f.Match != "" {
		return f.Match
	}
	return f.Detail
}
