package guardstream

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/guardstream/internal/guard"
)

func echoGenerate(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func TestWrapCleanRoundTrip(t *testing.T) {
	c := newTestClient(t, passEvaluator())
	guarded := c.Wrap(echoGenerate)

	out, err := guarded(context.Background(), "hello")
	if err != nil {
		t.Fatalf("guarded: %v", err)
	}
	if out != "echo: hello" {
		t.Fatalf("output = %q, want echoed prompt", out)
	}
}

func TestWrapBlocksInputBeforeGeneration(t *testing.T) {
	c := newTestClient(t, blockOn("forbidden"))

	called := false
	guarded := c.Wrap(func(ctx context.Context, prompt string) (string, error) {
		called = true
		return prompt, nil
	})

	_, err := guarded(context.Background(), "a forbidden prompt")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Source != SourceInput {
		t.Fatalf("blocked source = %q, want INPUT", blocked.Source)
	}
	if called {
		t.Fatal("generation ran on blocked input")
	}
}

func TestWrapBlocksOutput(t *testing.T) {
	c := newTestClient(t, blockOn("forbidden"))

	guarded := c.Wrap(func(ctx context.Context, prompt string) (string, error) {
		return "a forbidden completion", nil
	})

	_, err := guarded(context.Background(), "clean prompt")
	var blocked *BlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected *BlockedError, got %v", err)
	}
	if blocked.Source != SourceOutput {
		t.Fatalf("blocked source = %q, want OUTPUT", blocked.Source)
	}
	if blocked.Text != "[blocked]" {
		t.Fatalf("blocked text = %q, want replacement", blocked.Text)
	}
}

func TestWrapPassesRemediatedPrompt(t *testing.T) {
	eval := &fakeEvaluator{respond: func(req guard.Request) (guard.Result, error) {
		if req.Source == guard.SourceInput && strings.Contains(req.Content, "555-0199") {
			return guard.Result{
				Action:   guard.ActionIntervened,
				Text:     strings.ReplaceAll(req.Content, "555-0199", "{PHONE}"),
				Findings: []guard.Finding{{Policy: guard.PolicyPII, Name: "PHONE", Blocked: false}},
				Units:    1,
			}, nil
		}
		return guard.Result{Action: guard.ActionNone, Text: req.Content, Units: 1}, nil
	}}
	c := newTestClient(t, eval)

	var seen string
	guarded := c.Wrap(func(ctx context.Context, prompt string) (string, error) {
		seen = prompt
		return "ok", nil
	})

	out, err := guarded(context.Background(), "call 555-0199 now")
	if err != nil {
		t.Fatalf("guarded: %v", err)
	}
	if seen != "call {PHONE} now" {
		t.Fatalf("generation saw %q, want anonymized prompt", seen)
	}
	if out != "ok" {
		t.Fatalf("output = %q, want ok", out)
	}
}

func TestWrapSurfacesGenerationError(t *testing.T) {
	c := newTestClient(t, passEvaluator())

	genErr := errors.New("model unavailable")
	guarded := c.Wrap(func(ctx context.Context, prompt string) (string, error) {
		return "", genErr
	})

	_, err := guarded(context.Background(), "hello")
	if !errors.Is(err, genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}
}
