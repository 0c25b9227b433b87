package guard

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// DefaultMaxAttempts bounds how many times a throttled evaluation is
// retried before it is surfaced as a ServiceError.
const DefaultMaxAttempts = 5

// Evaluator evaluates one bounded text unit against the configured
// policy. It is stateless: identical requests against identical policy
// state yield identical results.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// UnitReserver grants units from a shared per-second budget, blocking
// until the reservation fits. *ratelimit.Limiter satisfies it.
type UnitReserver interface {
	Reserve(ctx context.Context, units int) error
}

// Config tunes a Guard. Zero values fall back to defaults.
type Config struct {
	Limits      Limits
	MaxAttempts int           // retry attempts for throttled calls
	RetryBase   time.Duration // initial backoff interval
	Limiter     UnitReserver    // optional shared units/second budget
	Logger      *zerolog.Logger // nil disables logging
	OnResult    func(Result)    // invoked after every recorded evaluation
}

// Guard wraps an Evaluator with local quota validation, unit rate
// reservation, and bounded retry on throttling. One Guard may serve
// concurrent callers; each Dispatch call owns its own stream state.
type Guard struct {
	eval        Evaluator
	limits      Limits
	maxAttempts int
	retryBase   time.Duration
	limiter     UnitReserver
	log         zerolog.Logger
	onResult    func(Result)
}

// New creates a Guard around the given evaluator.
func New(eval Evaluator, cfg Config) *Guard {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Guard{
		eval:        eval,
		limits:      cfg.Limits.WithDefaults(),
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
		limiter:     cfg.Limiter,
		log:         log,
		onResult:    cfg.OnResult,
	}
}

// Limits returns the quota constants the guard enforces.
func (g *Guard) Limits() Limits { return g.limits }

// Evaluate checks one bounded text unit. Content longer than the
// per-call cap fails with *QuotaError before any network call.
// Throttled calls are retried with exponential backoff up to the
// configured attempt count, then wrapped in *ServiceError.
func (g *Guard) Evaluate(ctx context.Context, req Request) (Result, error) {
	chars := utf8.RuneCountInString(req.Content)
	if chars > g.limits.MaxChars() {
		return Result{}, &QuotaError{Chars: chars, Limit: g.limits.MaxChars()}
	}

	if g.limiter != nil {
		if err := g.limiter.Reserve(ctx, g.limits.Units(chars)); err != nil {
			return Result{}, fmt.Errorf("reserve %d units: %w", g.limits.Units(chars), err)
		}
	}

	res, err := g.callWithRetry(ctx, req)
	if err != nil {
		return Result{}, err
	}
	g.record(res)
	return res, nil
}

// callWithRetry drives the evaluator, retrying only throttle errors.
func (g *Guard) callWithRetry(ctx context.Context, req Request) (Result, error) {
	var res Result
	attempt := 0

	op := func() error {
		attempt++
		r, err := g.eval.Evaluate(ctx, req)
		if err != nil {
			var te *ThrottleError
			if errors.As(err, &te) {
				g.log.Warn().Int("attempt", attempt).Msg("evaluation throttled, backing off")
				return err
			}
			return backoff.Permanent(err)
		}
		res = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryBase
	bo.MaxElapsedTime = 0 // attempt count, not wall clock, bounds the retries

	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(bo, ctx), uint64(g.maxAttempts-1)))
	if err != nil {
		var te *ThrottleError
		if errors.As(err, &te) {
			return Result{}, &ServiceError{
				Op:  "evaluate",
				Err: fmt.Errorf("still throttled after %d attempts: %w", attempt, te),
			}
		}
		var se *ServiceError
		var qe *QuotaError
		if errors.As(err, &se) || errors.As(err, &qe) {
			return Result{}, err
		}
		return Result{}, &ServiceError{Op: "evaluate", Err: err}
	}
	return res, nil
}

func (g *Guard) record(res Result) {
	if g.onResult != nil {
		g.onResult(res)
	}
	g.log.Debug().
		Str("action", string(res.Action)).
		Int("findings", len(res.Findings)).
		Int("units", res.Units).
		Msg("unit evaluated")
}
