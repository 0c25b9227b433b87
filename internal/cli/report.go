package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardstream/internal/config"
	"github.com/ppiankov/guardstream/internal/store"
)

var (
	reportRecent int
	reportFormat string
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVarP(&reportRecent, "recent", "n", 0, "Also list the N most recent verdicts")
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "text", "Output format (text|json)")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize persisted verdicts",
	Long:  "Aggregates the verdict store: total evaluations, blocked and intervened\ncounts, and units spent.",
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Store == "" {
		return fmt.Errorf("no verdict store configured: set store in the config file")
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open verdict store: %w", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	sum, err := st.Summarize(ctx)
	if err != nil {
		return err
	}

	var recent []store.Record
	if reportRecent > 0 {
		recent, err = st.Recent(ctx, reportRecent)
		if err != nil {
			return err
		}
	}

	if reportFormat == "json" {
		out, err := json.MarshalIndent(map[string]any{
			"summary": sum,
			"recent":  recent,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("evaluations: %d\n", sum.Total)
	fmt.Printf("blocked:     %d\n", sum.Blocked)
	fmt.Printf("intervened:  %d\n", sum.Intervened)
	fmt.Printf("units spent: %d\n", sum.Units)
	for _, r := range recent {
		fmt.Printf("  [%s] %s %s action=%s units=%d chunks=%d\n",
			r.Origin, r.Input, r.Source, r.Action, r.Units, r.Chunks)
	}
	return nil
}
