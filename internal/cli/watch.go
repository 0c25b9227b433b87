package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/guardstream/internal/daemon"
)

var (
	watchInbox  string
	watchOutbox string
	watchSource string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "Directory to watch for text files (overrides config)")
	watchCmd.Flags().StringVar(&watchOutbox, "outbox", "", "Directory for verdict files (overrides config)")
	watchCmd.Flags().StringVarP(&watchSource, "source", "s", "INPUT", "Content source (INPUT|OUTPUT)")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop folder and evaluate arriving text files",
	Long: "Runs the guard as a daemon: text files (.txt, .md) created in the inbox\n" +
		"are evaluated and a verdict JSON is written to the outbox. Oversized or\n" +
		"unreadable files produce failed verdicts; the daemon keeps running.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	source, err := parseSource(watchSource)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if watchInbox != "" {
		rt.cfg.Inbox = watchInbox
	}
	if watchOutbox != "" {
		rt.cfg.Outbox = watchOutbox
	}
	if rt.cfg.Inbox == "" || rt.cfg.Outbox == "" {
		return fmt.Errorf("watch needs both an inbox and an outbox: set them in the config file or pass --inbox/--outbox")
	}
	if err := rt.cfg.RequireGuardrail(); err != nil {
		return err
	}
	if err := os.MkdirAll(rt.cfg.Inbox, 0700); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}

	proc := daemon.NewProcessor(rt.guard, daemon.ProcessorConfig{
		Outbox:        rt.cfg.Outbox,
		Source:        source,
		PolicyID:      rt.cfg.Guardrail.ID,
		PolicyVersion: rt.cfg.Guardrail.Version,
		AuditLog:      rt.auditLog,
		Store:         rt.store,
		Logger:        rt.log,
	})

	watcher := daemon.NewInboxWatcher(rt.cfg.Inbox, func(path string) {
		if err := proc.Process(ctx, path); err != nil {
			rt.log.Error().Err(err).Str("file", path).Msg("verdict write failed")
		}
	}, rt.log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down watcher...")
		cancel()
	}()

	rt.log.Info().
		Str("inbox", rt.cfg.Inbox).
		Str("outbox", rt.cfg.Outbox).
		Str("source", string(source)).
		Msg("watching for text files")
	return watcher.Run(ctx)
}
