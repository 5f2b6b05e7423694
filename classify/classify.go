// ABOUTME: Runtime discrimination of untyped final payloads into exactly one Result variant.
// ABOUTME: An explicit ordered rule list makes the overlap-sensitive decision order a visible contract.
package classify

import (
	"encoding/json"
	"fmt"
	"log"
)

// embedMarkers are the discriminator values that identify an embeddable
// dashboard pointer.
var embedMarkers = map[string]bool{
	"embed":     true,
	"dashboard": true,
}

// compositeFields are the field names whose presence marks a composite agent
// result.
var compositeFields = []string{
	"query_id",
	"query",
	"explanation",
	"sample_analysis",
	"csv_url",
	"chart_url",
	"visualization_analysis_result",
}

// Classify maps a structured value to exactly one Result variant.
//
// Rules run top to bottom; the first match wins. Order matters because the
// shapes structurally overlap: an embed pointer carries a "url" a composite
// result could also carry, and a bare {"message": ...} error would satisfy
// the broader composite check if tested later.
//
//  1. non-object value            -> Text
//  2. type is an embed marker     -> EmbedPointer
//  3. single error-message field  -> ErrorResult
//  4. chart_type present          -> ChartResult
//  5. columns/rows or table_data  -> TabularResult
//  6. any composite field present -> AgentResult
//  7. fallback                    -> Text (stringified, miss logged)
//
// Classification is total and deterministic; it never panics.
func Classify(v any) Result {
	m, ok := v.(map[string]any)
	if !ok {
		return Result{Kind: KindText, Text: stringify(v)}
	}

	if embedMarkers[str(m["type"])] {
		// The backend wraps dashboards as {"type":"dashboard","data":{...}}
		// with the URL and title one level down; a bare embed pointer keeps
		// them at the top level. Accept both.
		fields := m
		if url := firstStr(m, "url", "dashboard_url", "quicksight_url"); url == "" {
			if sub, ok := m["data"].(map[string]any); ok {
				fields = sub
			}
		}
		if url := firstStr(fields, "url", "dashboard_url", "quicksight_url"); url != "" {
			title := str(fields["title"])
			if title == "" {
				title = "Dashboard"
			}
			return Result{Kind: KindEmbed, Embed: &EmbedPointer{URL: url, Title: title}}
		}
	}

	// A single-field error object must be recognized before the structural
	// checks below so it is not swallowed by the composite rule.
	if len(m) == 1 {
		if msg := firstStr(m, "message", "error"); msg != "" {
			return Result{Kind: KindError, Err: &ErrorResult{Message: msg}}
		}
	}

	if str(m["chart_type"]) != "" {
		return Result{Kind: KindChart, Chart: chartFrom(m)}
	}

	if _, ok := m["table_data"]; ok {
		return Result{Kind: KindTable, Table: tableFrom(m)}
	}
	if _, ok := m["columns"]; ok {
		if _, ok := m["rows"]; ok {
			return Result{Kind: KindTable, Table: tableFrom(m)}
		}
	}

	for _, f := range compositeFields {
		if _, ok := m[f]; ok {
			return Result{Kind: KindAgent, Agent: agentFrom(m)}
		}
	}

	log.Printf("classify miss keys=%d payload=%q", len(m), clip(stringify(m), 160))
	return Result{Kind: KindText, Text: stringify(m)}
}

// agentFrom builds the composite variant. The narrative and chart sub-parts
// are populated independently; either may be absent.
func agentFrom(m map[string]any) *AgentResult {
	r := &AgentResult{QueryID: str(m["query_id"])}

	query := str(m["query"])
	explanation := str(m["explanation"])
	sample := firstStr(m, "sample_analysis", "result")
	csvURL := str(m["csv_url"])
	if query != "" || explanation != "" || sample != "" || csvURL != "" {
		r.Narrative = &DataNarrative{
			Query:          query,
			FormattedQuery: FormatSQL(query),
			Explanation:    explanation,
			SampleAnalysis: sample,
			CSVURL:         csvURL,
		}
	}

	chartURL := firstStr(m, "chart_url", "quicksight_url")
	vizAnalysis := str(m["visualization_analysis_result"])
	if chartURL != "" || vizAnalysis != "" {
		r.Chart = &ChartPart{URL: chartURL, Analysis: vizAnalysis}
	}

	return r
}

func tableFrom(m map[string]any) *TabularResult {
	t := &TabularResult{
		Title:   str(m["title"]),
		Period:  str(m["period"]),
		Summary: str(m["summary"]),
	}

	if cols, ok := m["columns"].([]any); ok {
		for _, c := range cols {
			switch col := c.(type) {
			case map[string]any:
				t.Columns = append(t.Columns, Column{Key: str(col["key"]), Label: str(col["label"])})
			default:
				label := str(col)
				t.Columns = append(t.Columns, Column{Key: label, Label: label})
			}
		}
	}

	rows, ok := m["rows"].([]any)
	if !ok {
		rows, _ = m["table_data"].([]any)
	}
	for _, r := range rows {
		switch row := r.(type) {
		case []any:
			t.Rows = append(t.Rows, row)
		case map[string]any:
			// Keyed rows are flattened in column order.
			flat := make([]any, 0, len(t.Columns))
			for _, c := range t.Columns {
				flat = append(flat, row[c.Key])
			}
			t.Rows = append(t.Rows, flat)
		default:
			t.Rows = append(t.Rows, []any{row})
		}
	}

	if n, ok := asInt(m["total_count"]); ok {
		t.TotalCount = n
	} else {
		t.TotalCount = len(t.Rows)
	}
	return t
}

func chartFrom(m map[string]any) *ChartResult {
	c := &ChartResult{
		Title:     str(m["title"]),
		ChartType: str(m["chart_type"]),
		Insight:   firstStr(m, "description", "summary"),
	}

	if labels, ok := m["labels"].([]any); ok {
		for _, l := range labels {
			c.Labels = append(c.Labels, str(l))
		}
	}

	datasets, _ := m["datasets"].([]any)
	for i, d := range datasets {
		switch ds := d.(type) {
		case map[string]any:
			set := Dataset{Label: str(ds["label"])}
			if vals, ok := ds["data"].([]any); ok {
				set.Values = floats(vals)
			}
			c.Datasets = append(c.Datasets, set)
		case []any:
			c.Datasets = append(c.Datasets, Dataset{
				Label:  fmt.Sprintf("Dataset %d", i+1),
				Values: floats(ds),
			})
		}
	}
	return c
}

func floats(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		switch n := v.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		case json.Number:
			f, _ := n.Float64()
			out = append(out, f)
		default:
			out = append(out, 0)
		}
	}
	return out
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

// str returns v as a string when it is one, else "".
func str(v any) string {
	s, _ := v.(string)
	return s
}

// firstStr returns the first non-empty string value among the named keys.
func firstStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringify renders an arbitrary value for text display. JSON is preferred;
// anything unmarshalable falls back to fmt formatting.
func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	}
	if b, err := json.MarshalIndent(v, "", "  "); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
