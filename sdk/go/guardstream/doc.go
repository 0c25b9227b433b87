// Package guardstream provides in-process content guarding for Go agent
// frameworks. It evaluates text and model output against a managed
// guardrail policy, chunking long text to the per-call quota and pacing
// calls against the shared units/second budget.
//
// Usage:
//
//	gs, err := guardstream.New(ctx,
//	    guardstream.WithRegion("us-east-1"),
//	    guardstream.WithGuardrail("gr-abc123", "1"),
//	)
//	verdict, err := gs.GuardText(ctx, userInput, guardstream.SourceInput)
//	if verdict.Blocked {
//	    // refuse the request, verdict.Text carries the replacement
//	}
//
// Generation functions are wrapped so their output never reaches the
// caller unscreened:
//
//	guarded := gs.Wrap(myGenerate)
//	out, err := guarded(ctx, prompt) // *BlockedError when policy blocks
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import github.com/ppiankov/guardstream/sdk/go/guardstream.
package guardstream
