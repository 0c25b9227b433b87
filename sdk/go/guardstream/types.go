package guardstream

import (
	"fmt"

	"github.com/ppiankov/guardstream/internal/guard"
)

// Source says whether guarded text is model input or model output.
type Source string

const (
	SourceInput  Source = Source(guard.SourceInput)
	SourceOutput Source = Source(guard.SourceOutput)
)

// Finding is one violated sub-policy entry.
type Finding struct {
	Policy  string
	Name    string
	Match   string
	Blocked bool
	Detail  string
}

// Verdict is the outcome of guarding a text.
type Verdict struct {
	Blocked  bool
	Text     string // replacement text, the input verbatim when nothing matched
	Findings []Finding
	Units    int // text units billed across all chunks
	Chunks   int
}

// BlockedError is returned by wrapped functions when policy blocks.
type BlockedError struct {
	Source   Source
	Text     string // replacement text for the blocking unit
	Findings []Finding
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("guardstream blocked %s content (%d findings)", e.Source, len(e.Findings))
}

func toFindings(in []guard.Finding) []Finding {
	if len(in) == 0 {
		return nil
	}
	out := make([]Finding, len(in))
	for i, f := range in {
		out[i] = Finding{
			Policy:  string(f.Policy),
			Name:    f.Name,
			Match:   f.Match,
			Blocked: f.Blocked,
			Detail:  f.Detail,
		}
	}
	return out
}

func toVerdict(v guard.Verdict) Verdict {
	units := 0
	for _, r := range v.History {
		units += r.Units
	}
	return Verdict{
		Blocked:  v.Blocked,
		Text:     v.Text,
		Findings: toFindings(v.Last.Findings),
		Units:    units,
		Chunks:   len(v.History),
	}
}
