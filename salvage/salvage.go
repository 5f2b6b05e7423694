// ABOUTME: Best-effort recovery of structured values from strings that resemble but do not strictly conform to JSON.
// ABOUTME: Runs strict parse, lenient (hjson) parse, then structural repair; degrades to returning the original text.
package salvage

import (
	"encoding/json"
	"log"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
)

// Recover converts a value that is supposed to be JSON into a structured value.
//
// Non-string inputs are returned unchanged (they are already structured).
// Strings that do not look like JSON documents are returned unchanged (they
// are prose). Otherwise three parse attempts run in order: strict JSON, a
// lenient parse tolerating trailing commas, comments, and unquoted keys, and
// a structural repair pass followed by a strict parse. If all three fail the
// original string is returned so callers always have usable text.
func Recover(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}

	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return s
	}

	var out any
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out
	}

	out = nil
	if err := hjson.Unmarshal([]byte(trimmed), &out); err == nil {
		// Canonicalize through encoding/json so downstream type switches see
		// plain map[string]any / []any regardless of hjson internals.
		if b, err := json.Marshal(out); err == nil {
			var canon any
			if err := json.Unmarshal(b, &canon); err == nil {
				return canon
			}
		}
		return out
	}

	repaired := Repair(trimmed)
	out = nil
	if err := json.Unmarshal([]byte(repaired), &out); err == nil {
		return out
	}

	log.Printf("salvage exhausted attempts=3 text=%q", clip(trimmed, 160))
	return s
}

// clip shortens a string for log output.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
