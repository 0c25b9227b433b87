package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// VerifyResult is the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify reads a verdict log and validates the hash chain, reporting
// either an intact chain or the first broken link.
func Verify(path string) VerifyResult {
	f, err := os.Open(path)
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	var prevLine []byte

	for scanner.Scan() {
		lineNum++
		line := append([]byte(nil), scanner.Bytes()...)

		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return VerifyResult{Error: fmt.Sprintf("parse error: %v", err), ErrorLine: lineNum}
		}

		want := GenesisHash
		if lineNum > 1 {
			want = HashLine(prevLine)
		}
		if entry.PrevHash != want {
			return VerifyResult{
				Error:     fmt.Sprintf("hash mismatch: expected %s, got %s", want, entry.PrevHash),
				ErrorLine: lineNum,
			}
		}
		prevLine = line
	}

	if err := scanner.Err(); err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: lineNum}
}
