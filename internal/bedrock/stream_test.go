package bedrock

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/guard"
)

type fakeCloser struct {
	err    error
	closed bool
}

func (f *fakeCloser) Close() error { f.closed = true; return nil }
func (f *fakeCloser) Err() error   { return f.err }

func newFakeStream(events []types.ConverseStreamOutput, closer *fakeCloser) *ModelStream {
	ch := make(chan types.ConverseStreamOutput, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return &ModelStream{events: ch, closer: closer, log: zerolog.Nop()}
}

func TestStreamTranslatesEvents(t *testing.T) {
	events := []types.ConverseStreamOutput{
		&types.ConverseStreamOutputMemberMessageStart{
			Value: types.MessageStartEvent{Role: types.ConversationRoleAssistant},
		},
		&types.ConverseStreamOutputMemberContentBlockDelta{
			Value: types.ContentBlockDeltaEvent{
				Delta: &types.ContentBlockDeltaMemberText{Value: "Hello "},
			},
		},
		&types.ConverseStreamOutputMemberContentBlockDelta{
			Value: types.ContentBlockDeltaEvent{
				Delta: &types.ContentBlockDeltaMemberText{Value: "world"},
			},
		},
		&types.ConverseStreamOutputMemberMessageStop{
			Value: types.MessageStopEvent{StopReason: types.StopReasonEndTurn},
		},
	}
	s := newFakeStream(events, &fakeCloser{})
	ctx := context.Background()

	// messageStart carries nothing to guard.
	ev, err := s.Next(ctx)
	if err != nil || ev.Delta != "" || ev.Stop {
		t.Fatalf("messageStart should be a no-op event, got %+v err=%v", ev, err)
	}

	var text string
	for i := 0; i < 2; i++ {
		ev, err = s.Next(ctx)
		if err != nil {
			t.Fatalf("delta %d: %v", i, err)
		}
		text += ev.Delta
	}
	if text != "Hello world" {
		t.Errorf("expected deltas to carry text, got %q", text)
	}

	ev, err = s.Next(ctx)
	if err != nil || !ev.Stop || ev.StopReason != "end_turn" {
		t.Errorf("expected stop event with reason end_turn, got %+v err=%v", ev, err)
	}

	if _, err = s.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("exhausted stream must return io.EOF, got %v", err)
	}
}

func TestStreamMissingDeltaIsMalformed(t *testing.T) {
	events := []types.ConverseStreamOutput{
		&types.ConverseStreamOutputMemberContentBlockDelta{
			Value: types.ContentBlockDeltaEvent{Delta: nil},
		},
	}
	s := newFakeStream(events, &fakeCloser{})

	_, err := s.Next(context.Background())
	if !errors.Is(err, guard.ErrMalformedEvent) {
		t.Errorf("expected ErrMalformedEvent, got %v", err)
	}
}

func TestStreamMetadataIsTelemetryOnly(t *testing.T) {
	events := []types.ConverseStreamOutput{
		&types.ConverseStreamOutputMemberMetadata{
			Value: types.ConverseStreamMetadataEvent{
				Usage: &types.TokenUsage{InputTokens: aws.Int32(12), OutputTokens: aws.Int32(34)},
			},
		},
	}
	s := newFakeStream(events, &fakeCloser{})

	ev, err := s.Next(context.Background())
	if err != nil || ev.Delta != "" || ev.Stop {
		t.Errorf("metadata must be a no-op event, got %+v err=%v", ev, err)
	}
}

func TestStreamErrorSurfacesAsServiceError(t *testing.T) {
	s := newFakeStream(nil, &fakeCloser{err: errors.New("connection reset")})

	_, err := s.Next(context.Background())
	var se *guard.ServiceError
	if !errors.As(err, &se) {
		t.Errorf("expected ServiceError from broken stream, got %v", err)
	}
}

func TestStreamClose(t *testing.T) {
	closer := &fakeCloser{}
	s := newFakeStream(nil, closer)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closer.closed {
		t.Error("close must release the underlying stream")
	}
}
