package guardstream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/bedrock"
	"github.com/ppiankov/guardstream/internal/guard"
	"github.com/ppiankov/guardstream/internal/ratelimit"
)

// Client guards text in-process. Thread-safe for concurrent callers;
// all evaluations share one units/second budget.
type Client struct {
	cfg   clientConfig
	guard *guard.Guard
}

// New creates a Client with the given options. Unless WithEvaluator is
// supplied, a Bedrock runtime client is built from the default AWS
// config chain and the guardrail options are required.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, o := range opts {
		o(&cfg)
	}

	log := zerolog.Nop()
	if cfg.logger != nil {
		log = *cfg.logger
	}

	eval := cfg.evaluator
	if eval == nil {
		if cfg.guardrailID == "" {
			return nil, fmt.Errorf("guardstream: no guardrail configured: use WithGuardrail")
		}
		client, err := bedrock.NewClient(ctx, bedrock.Config{
			Region:          cfg.region,
			Profile:         cfg.profile,
			AccessKeyID:     cfg.accessKeyID,
			SecretAccessKey: cfg.secretAccessKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("guardstream: %w", err)
		}
		eval = client
	}
	if cfg.guardrailVersion == "" {
		cfg.guardrailVersion = "DRAFT"
	}

	limits := cfg.limits.WithDefaults()
	g := guard.New(eval, guard.Config{
		Limits:      limits,
		MaxAttempts: cfg.maxAttempts,
		Limiter:     ratelimit.New(limits.UnitsPerSecond),
		Logger:      &log,
	})
	return &Client{cfg: cfg, guard: g}, nil
}

// GuardText evaluates text of any length. Long text is chunked to the
// per-call quota; the first blocked chunk short-circuits.
func (c *Client) GuardText(ctx context.Context, text string, source Source) (Verdict, error) {
	verdict, err := c.guard.EvaluateFullText(ctx, c.request(text, source))
	if err != nil {
		return Verdict{}, err
	}
	return toVerdict(verdict), nil
}

func (c *Client) request(content string, source Source) guard.Request {
	return guard.Request{
		Content:       content,
		Source:        guard.Source(source),
		PolicyID:      c.cfg.guardrailID,
		PolicyVersion: c.cfg.guardrailVersion,
	}
}
