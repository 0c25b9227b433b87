package guard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// sliceStream replays a fixed sequence of events and counts consumption.
type sliceStream struct {
	events   []Event
	errs     map[int]error // injected per-position errors
	consumed int
}

func (s *sliceStream) Next(_ context.Context) (Event, error) {
	i := s.consumed
	s.consumed++
	if err, ok := s.errs[i]; ok {
		return Event{}, err
	}
	if i >= len(s.events) {
		return Event{}, io.EOF
	}
	return s.events[i], nil
}

func deltas(texts ...string) []Event {
	evs := make([]Event, len(texts))
	for i, txt := range texts {
		evs[i] = Event{Delta: txt}
	}
	return evs
}

func TestDispatchTwoFlushes(t *testing.T) {
	// 2*unitSize+1 chars shaped so the threshold is crossed exactly once:
	// one threshold flush plus the end-of-stream flush.
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 1000})
	stream := &sliceStream{events: deltas(strings.Repeat("a", 1000), strings.Repeat("b", 1001))}

	tr, err := g.Dispatch(context.Background(), stream, Request{Source: SourceOutput})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected exactly 2 evaluations, got %d", len(fake.calls))
	}
	if len(fake.calls[0]) != 1000 || len(fake.calls[1]) != 1001 {
		t.Errorf("expected flushes of 1000 and 1001 chars, got %d and %d",
			len(fake.calls[0]), len(fake.calls[1]))
	}
	want := strings.Repeat("a", 1000) + strings.Repeat("b", 1001)
	if tr.Text != want {
		t.Error("final text must equal the full delta concatenation")
	}
	if tr.Stopped || tr.Blocked() {
		t.Error("clean stream must not stop")
	}
}

func TestDispatchTriggeringDeltaSeedsNextBuffer(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 10})
	// 8 + 5: second append crosses the threshold, so the flush carries the
	// first 8 chars and the 5-char delta seeds the next buffer.
	stream := &sliceStream{events: deltas("aaaaaaaa", "bbbbb")}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(fake.calls))
	}
	if fake.calls[0] != "aaaaaaaa" {
		t.Errorf("threshold flush must exclude the triggering delta, got %q", fake.calls[0])
	}
	if fake.calls[1] != "bbbbb" {
		t.Errorf("triggering delta must seed the next buffer, got %q", fake.calls[1])
	}
	if tr.Text != "aaaaaaaabbbbb" {
		t.Errorf("unexpected final text %q", tr.Text)
	}
}

func TestDispatchWorldScenario(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 1000})

	texts := []string{"Hello "}
	for i := 0; i < 200; i++ {
		texts = append(texts, "world ")
	}
	texts = append(texts, "end")
	stream := &sliceStream{events: deltas(texts...)}

	tr, err := g.Dispatch(context.Background(), stream, Request{Source: SourceOutput})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	full := strings.Join(texts, "")
	if tr.Text != full {
		t.Error("final text must equal the exact concatenation of all deltas")
	}
	var evaluated strings.Builder
	for i, call := range fake.calls {
		if i < len(fake.calls)-1 && len(call) > 1000 {
			t.Errorf("threshold flush %d carries %d chars, exceeds one unit", i, len(call))
		}
		evaluated.WriteString(call)
	}
	if evaluated.String() != full {
		t.Error("evaluated units must cover the stream exactly")
	}
	if len(fake.calls) != 2 {
		t.Errorf("expected one threshold flush plus one end flush, got %d", len(fake.calls))
	}
}

func TestDispatchBlockedStopsConsumption(t *testing.T) {
	fake := &fakeEvaluator{
		respond: func(int, Request) (Result, error) {
			return blockedResult("[blocked]"), nil
		},
	}
	g := newTestGuard(fake, Limits{UnitSize: 10})

	events := deltas("aaaaaaaaaa", "bbbbb", "ccccc", "ddddd", "eeeee")
	stream := &sliceStream{events: events}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Stopped || !tr.Blocked() {
		t.Fatal("expected guard-initiated stop")
	}
	if len(fake.calls) != 1 {
		t.Errorf("no evaluation may follow a blocked flush, got %d", len(fake.calls))
	}
	// The blocked flush fires while consuming the second delta; nothing
	// after it may be pulled from the stream.
	if stream.consumed > 2 {
		t.Errorf("expected at most 2 consumed events, got %d", stream.consumed)
	}
	if tr.Text != "[blocked]" {
		t.Errorf("expected replacement text only, got %q", tr.Text)
	}
}

func TestDispatchFinalFlushOnStop(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 1000})
	stream := &sliceStream{events: []Event{
		{Delta: "partial "},
		{Delta: "output"},
		{Stop: true, StopReason: "end_turn"},
	}}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected a single end-of-stream flush, got %d", len(fake.calls))
	}
	if tr.Text != "partial output" {
		t.Errorf("unexpected text %q", tr.Text)
	}
}

func TestDispatchSkipsMalformedEvents(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 1000})
	stream := &sliceStream{
		events: deltas("good ", "swallowed", "still good"),
		errs:   map[int]error{1: ErrMalformedEvent}, // replaces the event at position 1
	}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err != nil {
		t.Fatalf("malformed events must not fail the stream: %v", err)
	}
	if tr.Text != "good still good" {
		t.Errorf("unexpected text %q", tr.Text)
	}
	if stream.consumed != 4 {
		t.Errorf("stream must continue past malformed events, consumed %d", stream.consumed)
	}
}

func TestDispatchOversizedDeltaHeldUntilNextFlush(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{UnitSize: 10})
	stream := &sliceStream{events: deltas(strings.Repeat("a", 15), "b")}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 evaluations, got %d", len(fake.calls))
	}
	if len(fake.calls[0]) != 15 || fake.calls[1] != "b" {
		t.Errorf("oversized delta must flush whole on the next append, got %q then %q",
			fake.calls[0], fake.calls[1])
	}
	if tr.Text != strings.Repeat("a", 15)+"b" {
		t.Errorf("unexpected text %q", tr.Text)
	}
}

func TestDispatchFailureReturnsPartialTranscript(t *testing.T) {
	fake := &fakeEvaluator{
		respond: func(call int, req Request) (Result, error) {
			if call == 1 {
				return Result{}, errors.New("service unavailable")
			}
			return passThrough(req.Content), nil
		},
	}
	g := newTestGuard(fake, Limits{UnitSize: 10})
	stream := &sliceStream{events: deltas("aaaaaaaaaa", "bbbbbbbbbb", "c")}

	tr, err := g.Dispatch(context.Background(), stream, Request{})
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if !strings.Contains(err.Error(), "flush 1") {
		t.Errorf("error should name the failing flush, got %v", err)
	}
	if tr.Text != "aaaaaaaaaa" {
		t.Errorf("expected text accumulated before the failure, got %q", tr.Text)
	}
	if len(tr.History) != 1 {
		t.Errorf("expected history of 1, got %d", len(tr.History))
	}
}

func TestDispatchEmptyStream(t *testing.T) {
	fake := &fakeEvaluator{}
	g := newTestGuard(fake, Limits{})

	tr, err := g.Dispatch(context.Background(), &sliceStream{}, Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 0 || tr.Text != "" || len(tr.History) != 0 {
		t.Error("empty stream must produce an empty transcript with no calls")
	}
}
