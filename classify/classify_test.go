// ABOUTME: Tests for ordered-rule payload classification into Result variants.
// ABOUTME: Covers totality, determinism, rule ordering, and the composite sub-part split.
package classify

import (
	"strings"
	"testing"
)

func TestClassifyPrimitives(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "hello", "hello"},
		{"number", float64(42), "42"},
		{"bool", true, "true"},
		{"nil", nil, ""},
		{"array", []any{float64(1), float64(2)}, "[\n  1,\n  2\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Classify(tt.in)
			if r.Kind != KindText {
				t.Fatalf("Kind = %q, want text", r.Kind)
			}
			if r.Text != tt.want {
				t.Errorf("Text = %q, want %q", r.Text, tt.want)
			}
		})
	}
}

func TestClassifyEmbedPointer(t *testing.T) {
	r := Classify(map[string]any{
		"type":  "embed",
		"url":   "https://example.com/dashboards/voc-2024",
		"title": "VOC 2024",
	})
	if r.Kind != KindEmbed {
		t.Fatalf("Kind = %q, want embed", r.Kind)
	}
	if r.Embed.URL != "https://example.com/dashboards/voc-2024" {
		t.Errorf("URL = %q", r.Embed.URL)
	}
	if r.Embed.Title != "VOC 2024" {
		t.Errorf("Title = %q", r.Embed.Title)
	}
}

func TestClassifyDashboardEnvelope(t *testing.T) {
	// The backend nests the dashboard fields under "data".
	r := Classify(map[string]any{
		"type": "dashboard",
		"data": map[string]any{
			"dashboard_url": "https://quicksight.example.com/sn/dashboards/voc-2024",
			"dashboard_id":  "voc-2024",
			"title":         "QuickSight Dashboard",
			"description":   "",
			"widgets":       []any{},
			"filters":       []any{},
			"created_at":    "2024-06-01T00:00:00",
		},
	})
	if r.Kind != KindEmbed {
		t.Fatalf("Kind = %q, want embed", r.Kind)
	}
	if r.Embed.URL != "https://quicksight.example.com/sn/dashboards/voc-2024" {
		t.Errorf("URL = %q", r.Embed.URL)
	}
	if r.Embed.Title != "QuickSight Dashboard" {
		t.Errorf("Title = %q", r.Embed.Title)
	}
}

func TestClassifyDashboardEnvelopeQuicksightURL(t *testing.T) {
	r := Classify(map[string]any{
		"type": "dashboard",
		"data": map[string]any{"quicksight_url": "https://e.com/d"},
	})
	if r.Kind != KindEmbed || r.Embed.URL != "https://e.com/d" || r.Embed.Title != "Dashboard" {
		t.Fatalf("got %+v", r)
	}
}

func TestClassifyEmbedDefaultTitle(t *testing.T) {
	r := Classify(map[string]any{"type": "dashboard", "url": "https://e.com/d"})
	if r.Kind != KindEmbed || r.Embed.Title != "Dashboard" {
		t.Fatalf("got %+v", r)
	}
}

func TestClassifySingleFieldError(t *testing.T) {
	r := Classify(map[string]any{"message": "에이전트 오류: timeout"})
	if r.Kind != KindError {
		t.Fatalf("Kind = %q, want error", r.Kind)
	}
	if r.Err.Message != "에이전트 오류: timeout" {
		t.Errorf("Message = %q", r.Err.Message)
	}
}

// A message field next to other fields must not classify as an error; the
// single-field rule exists exactly so it runs before the broader checks.
func TestClassifyErrorRuleRequiresSingleField(t *testing.T) {
	r := Classify(map[string]any{"message": "note", "query": "SELECT 1"})
	if r.Kind != KindAgent {
		t.Fatalf("Kind = %q, want analysis", r.Kind)
	}
}

func TestClassifyComposite(t *testing.T) {
	r := Classify(map[string]any{
		"query_id":                      "Q1",
		"query":                         "select count(*) from voc_reports",
		"explanation":                   "VOC 건수 집계 쿼리입니다.",
		"sample_analysis":               "총 3,245건이 접수되었습니다.",
		"csv_url":                       "https://example.com/data.csv",
		"chart_url":                     "https://example.com/chart",
		"visualization_analysis_result": "채널별 분포가 고릅니다.",
	})
	if r.Kind != KindAgent {
		t.Fatalf("Kind = %q, want analysis", r.Kind)
	}
	a := r.Agent
	if a.QueryID != "Q1" {
		t.Errorf("QueryID = %q", a.QueryID)
	}
	if a.Narrative == nil {
		t.Fatal("expected narrative sub-part")
	}
	if a.Narrative.CSVURL != "https://example.com/data.csv" {
		t.Errorf("CSVURL = %q", a.Narrative.CSVURL)
	}
	if !strings.Contains(a.Narrative.FormattedQuery, "SELECT") {
		t.Errorf("FormattedQuery = %q, expected uppercased keywords", a.Narrative.FormattedQuery)
	}
	if a.Chart == nil {
		t.Fatal("expected chart sub-part")
	}
	if a.Chart.URL != "https://example.com/chart" {
		t.Errorf("chart URL = %q", a.Chart.URL)
	}
}

func TestClassifyCompositeNarrativeOnly(t *testing.T) {
	r := Classify(map[string]any{"query_id": "Q1", "explanation": "설명"})
	if r.Kind != KindAgent {
		t.Fatalf("Kind = %q", r.Kind)
	}
	if r.Agent.Narrative == nil || r.Agent.Chart != nil {
		t.Errorf("expected narrative only, got %+v", r.Agent)
	}
}

func TestClassifyTable(t *testing.T) {
	r := Classify(map[string]any{
		"title":       "VOC by channel",
		"columns":     []any{"Channel", "Count"},
		"rows":        []any{[]any{"web", float64(12)}, []any{"app", float64(30)}},
		"total_count": float64(42),
		"period":      "2024-01",
	})
	if r.Kind != KindTable {
		t.Fatalf("Kind = %q, want table", r.Kind)
	}
	tb := r.Table
	if len(tb.Columns) != 2 || tb.Columns[0].Label != "Channel" {
		t.Errorf("columns = %+v", tb.Columns)
	}
	if len(tb.Rows) != 2 {
		t.Errorf("rows = %+v", tb.Rows)
	}
	if tb.TotalCount != 42 {
		t.Errorf("TotalCount = %d", tb.TotalCount)
	}
	if tb.Period != "2024-01" {
		t.Errorf("Period = %q", tb.Period)
	}
}

func TestClassifyChart(t *testing.T) {
	r := Classify(map[string]any{
		"chart_type": "pie",
		"title":      "채널별 비율",
		"labels":     []any{"web", "app", "call"},
		"datasets":   []any{[]any{float64(40), float64(35), float64(25)}},
	})
	if r.Kind != KindChart {
		t.Fatalf("Kind = %q, want chart", r.Kind)
	}
	c := r.Chart
	if c.ChartType != "pie" || len(c.Labels) != 3 {
		t.Errorf("chart = %+v", c)
	}
	if len(c.Datasets) != 1 || len(c.Datasets[0].Values) != 3 {
		t.Errorf("datasets = %+v", c.Datasets)
	}
}

func TestClassifyEmptyObjectFallsBackToText(t *testing.T) {
	r := Classify(map[string]any{})
	if r.Kind != KindText {
		t.Fatalf("Kind = %q, want text", r.Kind)
	}
	if r.Text != "{}" {
		t.Errorf("Text = %q", r.Text)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	in := map[string]any{"unrecognized": float64(1), "fields": "x"}
	first := Classify(in)
	for i := 0; i < 20; i++ {
		if got := Classify(in); got.Kind != first.Kind {
			t.Fatalf("classification changed across runs: %q vs %q", got.Kind, first.Kind)
		}
	}
}

func TestFormatSQL(t *testing.T) {
	in := "select count(*), channel from voc_reports where year = 2024 group by channel order by channel"
	got := FormatSQL(in)
	for _, want := range []string{"SELECT", "\nFROM", "\nWHERE", "\nGROUP BY", "\nORDER BY"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted query missing %q:\n%s", want, got)
		}
	}
}

func TestFormatSQLKeepsStringLiterals(t *testing.T) {
	in := "select * from t where note = 'select from where'"
	got := FormatSQL(in)
	if !strings.Contains(got, "'select from where'") {
		t.Errorf("string literal was rewritten:\n%s", got)
	}
}

func TestFormatSQLEmpty(t *testing.T) {
	if got := FormatSQL(""); got != "" {
		t.Errorf("FormatSQL(\"\") = %q", got)
	}
}
