package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Event is one element of a live token stream. Producers return io.EOF
// when the stream is exhausted, or ErrMalformedEvent for events missing
// their expected fields (the dispatcher skips those). Events carrying
// neither a delta nor a stop are telemetry and are ignored.
type Event struct {
	Delta      string
	Stop       bool
	StopReason string
}

// TokenStream yields successive events from a live generation process.
type TokenStream interface {
	Next(ctx context.Context) (Event, error)
}

// Transcript is the outcome of dispatching one stream.
type Transcript struct {
	Text    string   `json:"text"`
	History []Result `json:"history,omitempty"`
	Stopped bool     `json:"stopped"` // true when a blocked flush halted the stream
}

// Blocked reports whether any recorded evaluation blocked.
func (t Transcript) Blocked() bool {
	for _, r := range t.History {
		if r.Blocked() {
			return true
		}
	}
	return false
}

// Dispatch consumes a token stream, accumulating deltas into a buffer
// and flushing the buffer through the evaluator each time an append
// pushes it past one unit. The flush evaluates the buffer as it stood
// before the triggering delta; that delta seeds the next buffer. A
// blocked flush appends its replacement text and stops consumption.
// At stream end any residual buffer gets one final flush.
//
// req supplies Source and policy identity; req.Content is ignored.
// Evaluation failures return the transcript accumulated so far together
// with the error (partial-result policy).
func (g *Guard) Dispatch(ctx context.Context, stream TokenStream, req Request) (Transcript, error) {
	var t Transcript
	var out strings.Builder
	var buf []rune

	flush := func(content string) (Result, error) {
		unit := req
		unit.Content = content
		res, err := g.Evaluate(ctx, unit)
		if err != nil {
			t.Text = out.String()
			return Result{}, fmt.Errorf("flush %d (offset %d): %w", len(t.History), out.Len(), err)
		}
		t.History = append(t.History, res)
		out.WriteString(res.Text)
		return res, nil
	}

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, ErrMalformedEvent) {
				g.log.Warn().Msg("skipping malformed stream event")
				continue
			}
			t.Text = out.String()
			return t, fmt.Errorf("token stream: %w", err)
		}
		if ev.Stop {
			break
		}
		if ev.Delta == "" {
			continue
		}

		deltaLen := utf8.RuneCountInString(ev.Delta)
		buf = append(buf, []rune(ev.Delta)...)
		if len(buf) <= g.limits.UnitSize {
			continue
		}
		pre := len(buf) - deltaLen
		if pre <= 0 {
			// A single delta larger than one unit: hold it until the
			// next append or stream end.
			continue
		}

		res, err := flush(string(buf[:pre]))
		if err != nil {
			return t, err
		}
		buf = append(buf[:0:0], buf[pre:]...)
		if res.Blocked() {
			t.Text = out.String()
			t.Stopped = true
			return t, nil
		}
	}

	if len(buf) > 0 {
		res, err := flush(string(buf))
		if err != nil {
			return t, err
		}
		if res.Blocked() {
			t.Stopped = true
		}
	}

	t.Text = out.String()
	return t, nil
}
