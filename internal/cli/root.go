// Package cli implements the guardstream command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/guardstream/internal/audit"
	"github.com/ppiankov/guardstream/internal/bedrock"
	"github.com/ppiankov/guardstream/internal/config"
	"github.com/ppiankov/guardstream/internal/guard"
	"github.com/ppiankov/guardstream/internal/ratelimit"
	"github.com/ppiankov/guardstream/internal/store"
)

var (
	configPath string
	verbose    bool
)

// errBlocked marks a blocked verdict. Commands return it instead of
// exiting so deferred teardown (audit log, store) runs; Execute maps it
// to exit code 2.
var errBlocked = errors.New("content blocked")

var rootCmd = &cobra.Command{
	Use:   "guardstream",
	Short: "Quota-respecting content guard for Bedrock Guardrails",
	Long: "Evaluates text and live model streams against a managed guardrail policy.\n" +
		"Long text is chunked to the per-call quota; streams are flushed at unit\n" +
		"boundaries and stopped the moment a flush blocks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, errBlocked) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit status: 0 clean,
// 2 blocked content, 1 anything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errBlocked):
		return 2
	default:
		return 1
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// runtime bundles the pieces every evaluating command needs.
type runtime struct {
	cfg      *config.Config
	client   *bedrock.Client
	guard    *guard.Guard
	auditLog *audit.Log
	store    *store.Store
	log      zerolog.Logger
}

// newRuntime loads the config and wires the Bedrock client, the guard
// with its shared rate limiter, and the optional audit log and verdict
// store. onResult, when set, observes every evaluated unit.
func newRuntime(ctx context.Context, onResult func(guard.Result)) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := newLogger()

	client, err := bedrock.NewClient(ctx, bedrock.Config{
		Region:          cfg.Region,
		Profile:         cfg.Profile,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("bedrock client: %w", err)
	}

	rt := &runtime{cfg: cfg, client: client, log: log}

	if cfg.AuditLog != "" {
		rt.auditLog, err = audit.Open(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
	}
	if cfg.Store != "" {
		rt.store, err = store.Open(cfg.Store)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open verdict store: %w", err)
		}
	}

	rt.guard = guard.New(client, guard.Config{
		Limits:      cfg.Limits,
		MaxAttempts: cfg.Retry.MaxAttempts,
		Limiter:     ratelimit.New(cfg.Limits.UnitsPerSecond),
		Logger:      &log,
		OnResult:    onResult,
	})
	return rt, nil
}

// request builds an evaluation request against the configured guardrail.
func (rt *runtime) request(content string, source guard.Source) guard.Request {
	return guard.Request{
		Content:       content,
		Source:        source,
		PolicyID:      rt.cfg.Guardrail.ID,
		PolicyVersion: rt.cfg.Guardrail.Version,
	}
}

// record persists a full-text verdict to the audit log and store.
func (rt *runtime) record(ctx context.Context, origin, input string, source guard.Source, history []guard.Result, blocked bool, last guard.Result) {
	units := 0
	for _, r := range history {
		units += r.Units
	}
	if rt.auditLog != nil {
		for i, res := range history {
			if err := rt.auditLog.Record(audit.Entry{
				Origin:   origin,
				Input:    input,
				Source:   string(source),
				Action:   string(res.Action),
				Blocked:  res.Blocked(),
				Findings: len(res.Findings),
				Units:    res.Units,
				Chunk:    i,
			}); err != nil {
				rt.log.Warn().Err(err).Msg("audit record failed")
			}
		}
	}
	if rt.store != nil {
		if err := rt.store.Insert(ctx, store.Record{
			Origin:   origin,
			Input:    input,
			Source:   string(source),
			Action:   string(last.Action),
			Blocked:  blocked,
			Findings: len(last.Findings),
			Units:    units,
			Chunks:   len(history),
		}); err != nil {
			rt.log.Warn().Err(err).Msg("store insert failed")
		}
	}
}

// Close releases the audit log and store.
func (rt *runtime) Close() {
	if rt.auditLog != nil {
		_ = rt.auditLog.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

func parseSource(s string) (guard.Source, error) {
	switch s {
	case "", "input", "INPUT":
		return guard.SourceInput, nil
	case "output", "OUTPUT":
		return guard.SourceOutput, nil
	}
	return "", fmt.Errorf("invalid source %q: must be INPUT or OUTPUT", s)
}
