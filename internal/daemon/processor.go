package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/audit"
	"github.com/ppiankov/guardstream/internal/guard"
	"github.com/ppiankov/guardstream/internal/store"
)

// maxFileBytes bounds how much of a dropped file the daemon will read.
// Larger files produce a failed verdict instead of unbounded memory use.
const maxFileBytes = 10 << 20

// Verdict is the JSON document written to the outbox for each inbox
// file.
type Verdict struct {
	File        string          `json:"file"`
	Status      string          `json:"status"` // done|failed
	Blocked     bool            `json:"blocked"`
	Action      string          `json:"action,omitempty"`
	Text        string          `json:"text,omitempty"`
	Findings    []guard.Finding `json:"findings,omitempty"`
	Chunks      int             `json:"chunks,omitempty"`
	Units       int             `json:"units,omitempty"`
	Error       string          `json:"error,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// ProcessorConfig holds runtime configuration for file evaluation.
type ProcessorConfig struct {
	Outbox        string
	Source        guard.Source
	PolicyID      string
	PolicyVersion string
	AuditLog      *audit.Log   // optional
	Store         *store.Store // optional
	Logger        zerolog.Logger
}

// Processor evaluates dropped files and writes verdicts.
type Processor struct {
	guard *guard.Guard
	cfg   ProcessorConfig
}

// NewProcessor creates a processor around the given guard.
func NewProcessor(g *guard.Guard, cfg ProcessorConfig) *Processor {
	if cfg.Source == "" {
		cfg.Source = guard.SourceInput
	}
	return &Processor{guard: g, cfg: cfg}
}

// Process evaluates one inbox file end to end: read, chunk-evaluate,
// write the verdict, record it. Unreadable or oversized files produce a
// failed verdict rather than an error; only a verdict that cannot be
// written is reported back.
func (p *Processor) Process(ctx context.Context, path string) error {
	name := filepath.Base(path)

	// Reject symlinks before reading so an inbox entry cannot point the
	// daemon at arbitrary files elsewhere on the filesystem.
	fi, err := os.Lstat(path)
	if err != nil {
		return p.writeFailed(name, fmt.Sprintf("stat: %v", err))
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return p.writeFailed(name, "rejected symlink")
	}
	if fi.Size() > maxFileBytes {
		return p.writeFailed(name, fmt.Sprintf("file is %d bytes, limit is %d", fi.Size(), maxFileBytes))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p.writeFailed(name, fmt.Sprintf("read: %v", err))
	}

	verdict, err := p.guard.EvaluateFullText(ctx, guard.Request{
		Content:       string(data),
		Source:        p.cfg.Source,
		PolicyID:      p.cfg.PolicyID,
		PolicyVersion: p.cfg.PolicyVersion,
	})
	if err != nil {
		p.cfg.Logger.Error().Err(err).Str("file", name).Msg("evaluation failed")
		// The verdict keeps whatever cleared the chunks before the
		// failure; the error names the failing chunk.
		return p.write(Verdict{
			File:        name,
			Status:      "failed",
			Text:        verdict.Text,
			Chunks:      len(verdict.History),
			Units:       totalUnits(verdict.History),
			Error:       err.Error(),
			CompletedAt: time.Now().UTC(),
		})
	}

	p.record(ctx, name, verdict)

	out := Verdict{
		File:        name,
		Status:      "done",
		Blocked:     verdict.Blocked,
		Action:      string(verdict.Last.Action),
		Text:        verdict.Text,
		Findings:    verdict.Last.Findings,
		Chunks:      len(verdict.History),
		Units:       totalUnits(verdict.History),
		CompletedAt: time.Now().UTC(),
	}
	p.cfg.Logger.Info().
		Str("file", name).
		Bool("blocked", verdict.Blocked).
		Int("chunks", len(verdict.History)).
		Msg("file evaluated")
	return p.write(out)
}

// record feeds the audit trail and verdict store when configured.
func (p *Processor) record(ctx context.Context, name string, v guard.Verdict) {
	if p.cfg.AuditLog != nil {
		for i, res := range v.History {
			_ = p.cfg.AuditLog.Record(audit.Entry{
				Origin:   "watch",
				Input:    name,
				Source:   string(p.cfg.Source),
				Action:   string(res.Action),
				Blocked:  res.Blocked(),
				Findings: len(res.Findings),
				Units:    res.Units,
				Chunk:    i,
			})
		}
	}
	if p.cfg.Store != nil {
		_ = p.cfg.Store.Insert(ctx, store.Record{
			Origin:   "watch",
			Input:    name,
			Source:   string(p.cfg.Source),
			Action:   string(v.Last.Action),
			Blocked:  v.Blocked,
			Findings: len(v.Last.Findings),
			Units:    totalUnits(v.History),
			Chunks:   len(v.History),
		})
	}
}

func (p *Processor) writeFailed(name, reason string) error {
	return p.write(Verdict{
		File:        name,
		Status:      "failed",
		Error:       reason,
		CompletedAt: time.Now().UTC(),
	})
}

func (p *Processor) write(v Verdict) error {
	if err := os.MkdirAll(p.cfg.Outbox, 0700); err != nil {
		return fmt.Errorf("create outbox: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	out := filepath.Join(p.cfg.Outbox, verdictName(v.File))
	if err := os.WriteFile(out, data, 0600); err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// verdictName maps an inbox file name to its outbox verdict name.
func verdictName(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return base + ".verdict.json"
}

func totalUnits(history []guard.Result) int {
	total := 0
	for _, r := range history {
		total += r.Units
	}
	return total
}
