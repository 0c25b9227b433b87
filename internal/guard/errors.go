package guard

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a token stream event missing its expected
// fields. The dispatcher logs and skips these; they never terminate
// the stream.
var ErrMalformedEvent = errors.New("malformed stream event")

// QuotaError is a local validation failure: the content exceeds the
// per-call unit cap. It is surfaced before any network call and is
// never retried.
type QuotaError struct {
	Chars int
	Limit int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("content is %d chars, per-call quota allows %d", e.Chars, e.Limit)
}

// ThrottleError wraps the external service's rate-limit rejection.
// The guard retries throttled evaluations with backoff before giving up.
type ThrottleError struct {
	Err error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("evaluation throttled: %v", e.Err)
}

func (e *ThrottleError) Unwrap() error { return e.Err }

// ServiceError is any other external failure. It is not retried; the
// caller receives it together with whatever output accumulated before
// the failing unit. Batch and stream callers wrap it with the chunk or
// flush ordinal.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
