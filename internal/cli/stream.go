package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardstream/internal/guard"
)

var (
	streamModel  string
	streamSource string
)

func init() {
	rootCmd.AddCommand(streamCmd)
	streamCmd.Flags().StringVarP(&streamModel, "model", "m", "", "Bedrock model ID (overrides config)")
	streamCmd.Flags().StringVarP(&streamSource, "source", "s", "OUTPUT", "Content source (INPUT|OUTPUT)")
}

var streamCmd = &cobra.Command{
	Use:   "stream <prompt...>",
	Short: "Stream a model response through the guardrail",
	Long: "Sends the prompt to the model and screens the streamed response. Cleared\n" +
		"text units print as they are evaluated; a blocked unit stops the stream\n" +
		"immediately and only its replacement text is printed.\n\n" +
		"Exit code 0 when the stream completes, 2 when it is blocked.",
	Args: cobra.MinimumNArgs(1),
	RunE: runStream,
}

func runStream(cmd *cobra.Command, args []string) error {
	source, err := parseSource(streamSource)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	// Print each cleared unit as soon as its verdict lands, so output
	// trails the model by at most one buffered unit.
	printed := false
	rt, err := newRuntime(ctx, func(res guard.Result) {
		if !res.Blocked() {
			fmt.Print(res.Text)
			printed = true
		}
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if streamModel != "" {
		rt.cfg.Model = streamModel
	}
	if rt.cfg.Model == "" {
		return fmt.Errorf("no model configured: set model in the config file or pass --model")
	}
	if err := rt.cfg.RequireGuardrail(); err != nil {
		return err
	}

	prompt := strings.Join(args, " ")
	stream, err := rt.client.Converse(ctx, rt.cfg.Model, prompt)
	if err != nil {
		return fmt.Errorf("open model stream: %w", err)
	}
	defer func() { _ = stream.Close() }()

	transcript, err := rt.guard.Dispatch(ctx, stream, rt.request("", source))
	if printed {
		fmt.Println()
	}

	last := guard.Result{}
	if n := len(transcript.History); n > 0 {
		last = transcript.History[n-1]
	}
	rt.record(ctx, "stream", rt.cfg.Model, source, transcript.History, transcript.Blocked(), last)

	if err != nil {
		return err
	}
	if transcript.Blocked() {
		fmt.Fprintln(os.Stderr, "BLOCKED: stream stopped")
		fmt.Println(last.Text)
		return errBlocked
	}
	return nil
}
