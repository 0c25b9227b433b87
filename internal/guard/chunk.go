package guard

import (
	"context"
	"fmt"
	"strings"
)

// Verdict is the outcome of evaluating a full static text.
type Verdict struct {
	Blocked bool     `json:"blocked"`
	Text    string   `json:"text"`
	Last    Result   `json:"last"`
	History []Result `json:"history,omitempty"`
}

// EvaluateFullText evaluates arbitrarily long static text. Text within
// the per-call cap goes out as a single unit; longer text is split into
// contiguous windows of at most MaxChars characters, evaluated strictly
// in order. A blocked window short-circuits: its replacement text becomes
// the verdict text and no further calls are made. Otherwise each window's
// replacement (not the raw window) is concatenated, so non-blocking
// remediation on earlier windows survives.
//
// On an evaluation failure at window i the error carries the chunk index
// and the returned verdict keeps everything accumulated from windows
// [0, i).
func (g *Guard) EvaluateFullText(ctx context.Context, req Request) (Verdict, error) {
	runes := []rune(req.Content)
	if len(runes) <= g.limits.MaxChars() {
		res, err := g.Evaluate(ctx, req)
		if err != nil {
			return Verdict{}, err
		}
		return Verdict{Blocked: res.Blocked(), Text: res.Text, Last: res, History: []Result{res}}, nil
	}

	var out strings.Builder
	var history []Result
	for i, window := range windows(runes, g.limits.MaxChars()) {
		unit := req
		unit.Content = window
		res, err := g.Evaluate(ctx, unit)
		if err != nil {
			return Verdict{Text: out.String(), History: history},
				fmt.Errorf("chunk %d: %w", i, err)
		}
		history = append(history, res)
		if res.Blocked() {
			return Verdict{Blocked: true, Text: res.Text, Last: res, History: history}, nil
		}
		out.WriteString(res.Text)
	}

	last := history[len(history)-1]
	return Verdict{Blocked: false, Text: out.String(), Last: last, History: history}, nil
}

// windows splits text into contiguous, non-overlapping chunks of at most
// size runes. The concatenation of the chunks equals the input exactly.
func windows(runes []rune, size int) []string {
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
