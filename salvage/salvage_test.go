// ABOUTME: Tests for the JSON salvage parser covering strict, lenient, and repair stages.
// ABOUTME: Verifies recoverable malformations parse to the intended document and prose passes through unchanged.
package salvage

import (
	"encoding/json"
	"reflect"
	"testing"
)

// normalize round-trips a value through encoding/json so numeric types from
// different parse stages (float64 vs hjson internals) compare equal.
func normalize(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestRecoverNonStringPassthrough(t *testing.T) {
	in := map[string]any{"a": 1}
	got := Recover(in)
	if !reflect.DeepEqual(got, in) {
		t.Errorf("expected passthrough, got %#v", got)
	}
}

func TestRecoverProsePassthrough(t *testing.T) {
	for _, s := range []string{
		"분석 결과는 다음과 같습니다.",
		"just some plain prose",
		"",
		"  leading space, no braces",
	} {
		if got := Recover(s); got != s {
			t.Errorf("Recover(%q) = %#v, want input unchanged", s, got)
		}
	}
}

func TestRecoverStrictJSON(t *testing.T) {
	got := Recover(`{"query_id": "Q1", "count": 3}`)
	want := map[string]any{"query_id": "Q1", "count": float64(3)}
	if !reflect.DeepEqual(normalize(t, got), normalize(t, want)) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestRecoverTrailingComma(t *testing.T) {
	got := Recover(`{"values": [1, 2, 3,],}`)
	want := map[string]any{"values": []any{float64(1), float64(2), float64(3)}}
	if !reflect.DeepEqual(normalize(t, got), normalize(t, want)) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestRecoverComments(t *testing.T) {
	got := Recover("{\n// generated\n\"a\": 1\n}")
	want := map[string]any{"a": float64(1)}
	if !reflect.DeepEqual(normalize(t, got), normalize(t, want)) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestRecoverUnquotedKeysAndSingleQuotes(t *testing.T) {
	got := Recover(`{title: 'X', values: [1,2,]}`)
	want := map[string]any{"title": "X", "values": []any{float64(1), float64(2)}}
	if !reflect.DeepEqual(normalize(t, got), normalize(t, want)) {
		t.Errorf("got %#v, want %#v", got, want)
	}
}

func TestRecoverTruncatedDocument(t *testing.T) {
	got := Recover(`{"query": "SELECT 1", "explanation": "partial`)
	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %#v", got)
	}
	if m["query"] != "SELECT 1" {
		t.Errorf("query = %#v", m["query"])
	}
	if m["explanation"] != "partial" {
		t.Errorf("explanation = %#v", m["explanation"])
	}
}

func TestRecoverExhaustedReturnsOriginal(t *testing.T) {
	// Starts like JSON but cannot be rescued into anything structured.
	in := `{::},,]][[`
	if got := Recover(in); got != in {
		t.Errorf("expected original string back, got %#v", got)
	}
}

func TestRepairTable(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trailing comma object", `{"a": 1,}`, `{"a": 1}`},
		{"trailing comma array", `[1,2,]`, `[1,2]`},
		{"single quotes", `{'a': 'b'}`, `{"a": "b"}`},
		{"bare key", `{a: 1}`, `{"a": 1}`},
		{"bare value", `{a: yes}`, `{"a": "yes"}`},
		{"literals kept", `{a: true, b: null}`, `{"a": true, "b": null}`},
		{"line comment", "{\"a\": 1 // note\n}", "{\"a\": 1 \n}"},
		{"unclosed brace", `{"a": 1`, `{"a": 1}`},
		{"unclosed string and brace", `{"a": "b`, `{"a": "b"}`},
		{"escaped quote preserved", `{"a": "say \"hi\""}`, `{"a": "say \"hi\""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Repair(tt.in); got != tt.want {
				t.Errorf("Repair(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
