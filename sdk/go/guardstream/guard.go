package guardstream

import (
	"context"
)

// GenerateFunc is a text generation function that Wrap guards: prompt
// in, completion out.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// Wrap returns a GenerateFunc that screens the prompt before calling fn
// and the completion before returning it. Either side blocking yields a
// *BlockedError; intervened (non-blocking) replacements flow through,
// so fn sees the remediated prompt and the caller the remediated
// completion.
func (c *Client) Wrap(fn GenerateFunc) GenerateFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		in, err := c.GuardText(ctx, prompt, SourceInput)
		if err != nil {
			return "", err
		}
		if in.Blocked {
			return "", &BlockedError{Source: SourceInput, Text: in.Text, Findings: in.Findings}
		}

		completion, err := fn(ctx, in.Text)
		if err != nil {
			return "", err
		}

		out, err := c.GuardText(ctx, completion, SourceOutput)
		if err != nil {
			return "", err
		}
		if out.Blocked {
			return "", &BlockedError{Source: SourceOutput, Text: out.Text, Findings: out.Findings}
		}
		return out.Text, nil
	}
}
