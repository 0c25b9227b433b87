// Package audit keeps a tamper-evident JSONL trail of evaluation
// verdicts: one line per evaluated unit, hash-chained to the previous
// line.
package audit

// Entry is one evaluated unit in the audit trail. All fields are scalars
// (no map[string]any) so json.Marshal field order is deterministic and
// the hash chain is reproducible.
type Entry struct {
	Timestamp string `json:"ts"`
	Origin    string `json:"origin"` // cli|stream|watch|mcp
	Input     string `json:"input,omitempty"`
	Source    string `json:"source"` // INPUT|OUTPUT
	Action    string `json:"action"` // NONE|INTERVENED|BLOCKED
	Blocked   bool   `json:"blocked"`
	Findings  int    `json:"findings"`
	Units     int    `json:"units"`
	Chunk     int    `json:"chunk"` // unit ordinal within its text or stream
	PrevHash  string `json:"prev_hash"`
}
