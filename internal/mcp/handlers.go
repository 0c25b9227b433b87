package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/guardstream/internal/audit"
	"github.com/ppiankov/guardstream/internal/guard"
	"github.com/ppiankov/guardstream/internal/store"
)

// GuardTextInput defines parameters for the guard_text tool.
type GuardTextInput struct {
	Content string `json:"content" jsonschema:"text to evaluate"`
	Source  string `json:"source,omitempty" jsonschema:"INPUT or OUTPUT (default INPUT)"`
}

// GuardTextOutput carries the verdict for the evaluated text.
type GuardTextOutput struct {
	Blocked  bool            `json:"blocked"`
	Action   string          `json:"action"`
	Text     string          `json:"text"`
	Findings []guard.Finding `json:"findings,omitempty"`
	Chunks   int             `json:"chunks"`
	Units    int             `json:"units"`
}

// StatusInput is empty, the tool takes no parameters.
type StatusInput struct{}

// StatusOutput reports quota limits and cumulative counters.
type StatusOutput struct {
	UnitSize       int `json:"unit_size"`
	QuotaUnits     int `json:"quota_units"`
	UnitsPerSecond int `json:"units_per_second"`
	MaxChars       int `json:"max_chars"`

	Total      int `json:"total_evaluations,omitempty"`
	Blocked    int `json:"blocked,omitempty"`
	Intervened int `json:"intervened,omitempty"`
	UnitsSpent int `json:"units_spent,omitempty"`
}

func (s *Server) handleGuardText(ctx context.Context, req *mcpsdk.CallToolRequest, input GuardTextInput) (*mcpsdk.CallToolResult, GuardTextOutput, error) {
	source := guard.SourceInput
	if strings.EqualFold(input.Source, string(guard.SourceOutput)) {
		source = guard.SourceOutput
	}

	verdict, err := s.guard.EvaluateFullText(ctx, guard.Request{
		Content:       input.Content,
		Source:        source,
		PolicyID:      s.policyID,
		PolicyVersion: s.policyVersion,
	})
	if err != nil {
		return nil, GuardTextOutput{}, err
	}

	s.record(ctx, source, verdict)

	out := GuardTextOutput{
		Blocked:  verdict.Blocked,
		Action:   string(verdict.Last.Action),
		Text:     verdict.Text,
		Findings: verdict.Last.Findings,
		Chunks:   len(verdict.History),
		Units:    totalUnits(verdict.History),
	}
	if verdict.Blocked {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest, _ StatusInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	limits := s.guard.Limits()
	out := StatusOutput{
		UnitSize:       limits.UnitSize,
		QuotaUnits:     limits.QuotaUnits,
		UnitsPerSecond: limits.UnitsPerSecond,
		MaxChars:       limits.MaxChars(),
	}

	if s.store != nil {
		sum, err := s.store.Summarize(ctx)
		if err != nil {
			return nil, StatusOutput{}, err
		}
		out.Total = sum.Total
		out.Blocked = sum.Blocked
		out.Intervened = sum.Intervened
		out.UnitsSpent = sum.Units
	}
	return nil, out, nil
}

func (s *Server) record(ctx context.Context, source guard.Source, v guard.Verdict) {
	if s.auditLog != nil {
		for i, res := range v.History {
			if err := s.auditLog.Record(audit.Entry{
				Origin:   "mcp",
				Source:   string(source),
				Action:   string(res.Action),
				Blocked:  res.Blocked(),
				Findings: len(res.Findings),
				Units:    res.Units,
				Chunk:    i,
			}); err != nil {
				s.log.Warn().Err(err).Msg("audit record failed")
			}
		}
	}
	if s.store != nil {
		if err := s.store.Insert(ctx, store.Record{
			Origin:   "mcp",
			Source:   string(source),
			Action:   string(v.Last.Action),
			Blocked:  v.Blocked,
			Findings: len(v.Last.Findings),
			Units:    totalUnits(v.History),
			Chunks:   len(v.History),
		}); err != nil {
			s.log.Warn().Err(err).Msg("store insert failed")
		}
	}
}

func totalUnits(history []guard.Result) int {
	total := 0
	for _, r := range history {
		total += r.Units
	}
	return total
}
