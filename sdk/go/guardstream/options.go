package guardstream

import (
	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/guard"
)

// Option configures a Client at creation time.
type Option func(*clientConfig)

type clientConfig struct {
	region          string
	profile         string
	accessKeyID     string
	secretAccessKey string

	guardrailID      string
	guardrailVersion string

	limits      guard.Limits
	maxAttempts int
	logger      *zerolog.Logger
	evaluator   guard.Evaluator
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *clientConfig) { c.region = region }
}

// WithProfile sets the shared AWS config profile.
func WithProfile(name string) Option {
	return func(c *clientConfig) { c.profile = name }
}

// WithStaticCredentials sets explicit AWS credentials, bypassing the
// default provider chain.
func WithStaticCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *clientConfig) {
		c.accessKeyID = accessKeyID
		c.secretAccessKey = secretAccessKey
	}
}

// WithGuardrail selects the guardrail policy to evaluate against.
// Version "DRAFT" targets the working draft.
func WithGuardrail(id, version string) Option {
	return func(c *clientConfig) {
		c.guardrailID = id
		c.guardrailVersion = version
	}
}

// WithLimits overrides the service quota constants. Zero fields keep
// their defaults.
func WithLimits(unitSize, quotaUnits, unitsPerSecond int) Option {
	return func(c *clientConfig) {
		c.limits = guard.Limits{
			UnitSize:       unitSize,
			QuotaUnits:     quotaUnits,
			UnitsPerSecond: unitsPerSecond,
		}
	}
}

// WithMaxAttempts bounds throttle retries per evaluation.
func WithMaxAttempts(n int) Option {
	return func(c *clientConfig) { c.maxAttempts = n }
}

// WithLogger attaches a zerolog logger. Without one the client is
// silent.
func WithLogger(log zerolog.Logger) Option {
	return func(c *clientConfig) { c.logger = &log }
}

// WithEvaluator injects a custom unit evaluator instead of the Bedrock
// ApplyGuardrail backend. Intended for tests and alternative services.
func WithEvaluator(eval guard.Evaluator) Option {
	return func(c *clientConfig) { c.evaluator = eval }
}
