// Package guard implements the quota-respecting content-guard dispatcher:
// a unit evaluator wrapper, a batch chunker for long static text, and a
// threshold-buffered dispatcher for live token streams. The external
// evaluation service and the token producer are injected behind the
// Evaluator and TokenStream interfaces.
package guard

// Source says whether the evaluated text is model input or model output.
type Source string

const (
	SourceInput  Source = "INPUT"
	SourceOutput Source = "OUTPUT"
)

// Action is the verdict for one evaluated text unit.
type Action string

const (
	// ActionNone means the content passed unchanged.
	ActionNone Action = "NONE"
	// ActionIntervened means the service modified the content
	// (e.g. anonymized PII) but nothing blocked; processing continues
	// with the replacement text.
	ActionIntervened Action = "INTERVENED"
	// ActionBlocked means at least one finding blocks the request.
	ActionBlocked Action = "BLOCKED"
)

// PolicyKind identifies the sub-policy a finding came from.
type PolicyKind string

const (
	PolicyTopic   PolicyKind = "topic"
	PolicyContent PolicyKind = "content"
	PolicyWord    PolicyKind = "word"
	PolicyPII     PolicyKind = "pii"
	PolicyRegex   PolicyKind = "regex"
)

// Finding is one violated sub-policy entry. All policy categories flatten
// to this shape, with a uniform Blocked flag instead of per-category
// action vocabularies.
type Finding struct {
	Policy  PolicyKind `json:"policy"`
	Name    string     `json:"name,omitempty"`
	Match   string     `json:"match,omitempty"`
	Blocked bool       `json:"blocked"`
	Detail  string     `json:"detail,omitempty"`
}

// Request is one bounded evaluation request. Content must fit within the
// per-call unit quota; callers evaluating longer text pre-chunk via
// EvaluateFullText.
type Request struct {
	Content       string
	Source        Source
	PolicyID      string
	PolicyVersion string
}

// Result is the outcome of evaluating one text unit.
type Result struct {
	Intervened bool      `json:"intervened"`
	Action     Action    `json:"action"`
	Text       string    `json:"text"` // replacement text; equals the input verbatim when Action is NONE
	Findings   []Finding `json:"findings,omitempty"`
	Units      int       `json:"units,omitempty"` // text units billed by the service
}

// Blocked reports whether this result halts processing.
func (r Result) Blocked() bool { return r.Action == ActionBlocked }

// DecideAction derives the unit verdict from the service action and the
// flattened findings: blocked iff any finding blocks, otherwise intervened
// iff the service modified the content.
func DecideAction(intervened bool, findings []Finding) Action {
	for _, f := range findings {
		if f.Blocked {
			return ActionBlocked
		}
	}
	if intervened {
		return ActionIntervened
	}
	return ActionNone
}
