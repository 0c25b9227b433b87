// Package bedrock adapts the Bedrock runtime API to the guard package:
// ApplyGuardrail as the unit evaluator and ConverseStream as the token
// stream source.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/ppiankov/guardstream/internal/guard"
)

// api is the slice of the Bedrock runtime client the adapter uses.
type api interface {
	ApplyGuardrail(ctx context.Context, params *bedrockruntime.ApplyGuardrailInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ApplyGuardrailOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput,
		optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Config selects the AWS account and region. Empty fields fall back to
// the default credential chain.
type Config struct {
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
}

// Client implements guard.Evaluator over ApplyGuardrail and opens
// guarded model streams over ConverseStream.
type Client struct {
	api api
	log zerolog.Logger
}

// NewClient builds a Bedrock runtime client from the default AWS config
// chain, overridden by whatever cfg specifies.
func NewClient(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &Client{api: bedrockruntime.NewFromConfig(awsCfg), log: log}, nil
}

// Evaluate submits one bounded text unit to ApplyGuardrail and flattens
// the per-policy assessments into uniform findings.
func (c *Client) Evaluate(ctx context.Context, req guard.Request) (guard.Result, error) {
	src := types.GuardrailContentSourceInput
	if req.Source == guard.SourceOutput {
		src = types.GuardrailContentSourceOutput
	}

	out, err := c.api.ApplyGuardrail(ctx, &bedrockruntime.ApplyGuardrailInput{
		GuardrailIdentifier: aws.String(req.PolicyID),
		GuardrailVersion:    aws.String(req.PolicyVersion),
		Source:              src,
		Content: []types.GuardrailContentBlock{
			&types.GuardrailContentBlockMemberText{
				Value: types.GuardrailTextBlock{Text: aws.String(req.Content)},
			},
		},
	})
	if err != nil {
		return guard.Result{}, mapError(err)
	}

	intervened := out.Action == types.GuardrailActionGuardrailIntervened
	findings := flattenAssessments(out.Assessments)

	// On NONE the service echoes nothing back; replacement text is the
	// input verbatim by contract.
	text := req.Content
	if intervened {
		var sb strings.Builder
		for _, o := range out.Outputs {
			sb.WriteString(aws.ToString(o.Text))
		}
		text = sb.String()
	}

	return guard.Result{
		Intervened: intervened,
		Action:     guard.DecideAction(intervened, findings),
		Text:       text,
		Findings:   findings,
		Units:      billedUnits(out.Usage),
	}, nil
}

// flattenAssessments turns every violated sub-policy entry into one
// finding with a uniform blocked flag, regardless of which policy
// category produced it.
func flattenAssessments(assessments []types.GuardrailAssessment) []guard.Finding {
	var findings []guard.Finding
	for _, a := range assessments {
		if a.TopicPolicy != nil {
			for _, topic := range a.TopicPolicy.Topics {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyTopic,
					Name:    aws.ToString(topic.Name),
					Blocked: topic.Action == types.GuardrailTopicPolicyActionBlocked,
					Detail:  string(topic.Type),
				})
			}
		}
		if a.ContentPolicy != nil {
			for _, f := range a.ContentPolicy.Filters {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyContent,
					Name:    string(f.Type),
					Blocked: f.Action == types.GuardrailContentPolicyActionBlocked,
					Detail:  fmt.Sprintf("confidence=%s", f.Confidence),
				})
			}
		}
		if a.WordPolicy != nil {
			for _, w := range a.WordPolicy.CustomWords {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyWord,
					Match:   aws.ToString(w.Match),
					Blocked: w.Action == types.GuardrailWordPolicyActionBlocked,
				})
			}
			for _, w := range a.WordPolicy.ManagedWordLists {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyWord,
					Name:    string(w.Type),
					Match:   aws.ToString(w.Match),
					Blocked: w.Action == types.GuardrailWordPolicyActionBlocked,
				})
			}
		}
		if a.SensitiveInformationPolicy != nil {
			for _, p := range a.SensitiveInformationPolicy.PiiEntities {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyPII,
					Name:    string(p.Type),
					Match:   aws.ToString(p.Match),
					Blocked: p.Action == types.GuardrailSensitiveInformationPolicyActionBlocked,
				})
			}
			for _, r := range a.SensitiveInformationPolicy.Regexes {
				findings = append(findings, guard.Finding{
					Policy:  guard.PolicyRegex,
					Name:    aws.ToString(r.Name),
					Match:   aws.ToString(r.Match),
					Blocked: r.Action == types.GuardrailSensitiveInformationPolicyActionBlocked,
				})
			}
		}
	}
	return findings
}

// billedUnits reports the text units the call consumed. Each policy type
// counts units over the same text, so the maximum reflects the billable
// size of the request.
func billedUnits(usage *types.GuardrailUsage) int {
	if usage == nil {
		return 0
	}
	units := int32(0)
	for _, u := range []*int32{
		usage.TopicPolicyUnits,
		usage.ContentPolicyUnits,
		usage.WordPolicyUnits,
		usage.SensitiveInformationPolicyUnits,
	} {
		if u != nil && *u > units {
			units = *u
		}
	}
	return int(units)
}

// mapError translates Bedrock failures into the guard error taxonomy.
func mapError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &guard.ThrottleError{Err: err}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return &guard.ThrottleError{Err: err}
		}
	}
	return &guard.ServiceError{Op: "ApplyGuardrail", Err: err}
}
