package bedrock

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/guard"
)

// streamCloser is the slice of *bedrockruntime.ConverseStreamEventStream
// the adapter needs; tests substitute a fake.
type streamCloser interface {
	Close() error
	Err() error
}

// ModelStream adapts a ConverseStream event sequence to guard.TokenStream.
// Only text deltas and the stop event matter to the dispatcher; message
// boundaries are ignored and metadata is logged as telemetry.
type ModelStream struct {
	events <-chan types.ConverseStreamOutput
	closer streamCloser
	log    zerolog.Logger
}

// Converse starts a streamed generation for prompt against modelID and
// returns it as a token stream for dispatching.
func (c *Client) Converse(ctx context.Context, modelID, prompt string) (*ModelStream, error) {
	out, err := c.api.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId: aws.String(modelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: prompt}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("converse stream: %w", mapError(err))
	}

	stream := out.GetStream()
	return &ModelStream{events: stream.Events(), closer: stream, log: c.log}, nil
}

// Next yields the next token stream event. It returns io.EOF once the
// event channel closes cleanly and guard.ErrMalformedEvent for events
// missing their expected payload.
func (s *ModelStream) Next(ctx context.Context) (guard.Event, error) {
	select {
	case <-ctx.Done():
		return guard.Event{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			if s.closer != nil {
				if err := s.closer.Err(); err != nil {
					return guard.Event{}, &guard.ServiceError{Op: "ConverseStream", Err: err}
				}
			}
			return guard.Event{}, io.EOF
		}
		return s.translate(ev)
	}
}

func (s *ModelStream) translate(ev types.ConverseStreamOutput) (guard.Event, error) {
	switch v := ev.(type) {
	case *types.ConverseStreamOutputMemberContentBlockDelta:
		if v.Value.Delta == nil {
			return guard.Event{}, guard.ErrMalformedEvent
		}
		if text, ok := v.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
			return guard.Event{Delta: text.Value}, nil
		}
		// Non-text delta (tool use, reasoning): nothing to guard.
		return guard.Event{}, nil

	case *types.ConverseStreamOutputMemberMessageStop:
		return guard.Event{Stop: true, StopReason: string(v.Value.StopReason)}, nil

	case *types.ConverseStreamOutputMemberMessageStart,
		*types.ConverseStreamOutputMemberContentBlockStart,
		*types.ConverseStreamOutputMemberContentBlockStop:
		return guard.Event{}, nil

	case *types.ConverseStreamOutputMemberMetadata:
		if v.Value.Usage != nil {
			s.log.Debug().
				Int32("input_tokens", aws.ToInt32(v.Value.Usage.InputTokens)).
				Int32("output_tokens", aws.ToInt32(v.Value.Usage.OutputTokens)).
				Msg("stream metadata")
		}
		return guard.Event{}, nil

	default:
		return guard.Event{}, guard.ErrMalformedEvent
	}
}

// Close releases the underlying event stream.
func (s *ModelStream) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
