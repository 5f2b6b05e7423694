// ABOUTME: Renders classified analysis results into terminal text: narratives, tables, charts, and embed hints.
// ABOUTME: Markdown goes through glamour with panic recovery; formatting failures always fall back to raw text.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/kicksight/classify"
)

// maxTableRows bounds how many rows of a tabular result are printed before an
// elision marker.
const maxTableRows = 20

// ResultView renders classified results for the chat transcript.
type ResultView struct {
	markdown *glamour.TermRenderer
	width    int
}

// NewResultView builds a ResultView with a glamour renderer sized to width.
// A renderer construction failure degrades to plain-text markdown.
func NewResultView(width int) *ResultView {
	v := &ResultView{width: width}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		v.markdown = r
	}
	return v
}

// Render returns the display text for one classified result.
func (v *ResultView) Render(res classify.Result) string {
	switch res.Kind {
	case classify.KindText:
		return v.renderMarkdown(res.Text)
	case classify.KindError:
		return ErrorStyle.Render(res.Err.Message)
	case classify.KindEmbed:
		return v.renderEmbedPointer(res.Embed)
	case classify.KindTable:
		return v.renderTable(res.Table)
	case classify.KindChart:
		return v.renderChart(res.Chart)
	case classify.KindAgent:
		return v.renderAgent(res.Agent)
	}
	return v.renderMarkdown(res.Text)
}

// renderMarkdown runs text through glamour, recovering from renderer panics
// and falling back to the raw string.
func (v *ResultView) renderMarkdown(text string) (out string) {
	if v.markdown == nil {
		return text
	}
	defer func() {
		if r := recover(); r != nil {
			out = text
		}
	}()
	rendered, err := v.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

func (v *ResultView) renderEmbedPointer(e *classify.EmbedPointer) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(e.Title))
	b.WriteString("\n")
	b.WriteString(field("Dashboard", e.URL))
	b.WriteString("\n")
	b.WriteString(ProgressStyle.Render("Press ctrl+o to open the dashboard panel"))
	return b.String()
}

func (v *ResultView) renderTable(t *classify.TabularResult) string {
	var b strings.Builder
	if t.Title != "" {
		b.WriteString(TitleStyle.Render(t.Title))
		b.WriteString("\n")
	}
	if t.Period != "" {
		b.WriteString(field("Period", t.Period))
		b.WriteString("\n")
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = lipgloss.Width(col.Label)
	}
	rows := t.Rows
	truncated := false
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
		truncated = true
	}
	cells := make([][]string, len(rows))
	for ri, row := range rows {
		cells[ri] = make([]string, len(t.Columns))
		for ci := range t.Columns {
			var val string
			if ci < len(row) {
				val = fmt.Sprint(row[ci])
			}
			cells[ri][ci] = val
			if w := lipgloss.Width(val); w > widths[ci] {
				widths[ci] = w
			}
		}
	}

	for i, col := range t.Columns {
		b.WriteString(TitleStyle.Render(pad(col.Label, widths[i])))
		b.WriteString("  ")
	}
	b.WriteString("\n")
	for _, row := range cells {
		for i, val := range row {
			b.WriteString(pad(val, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString(ProgressStyle.Render(fmt.Sprintf("... %d more rows", len(t.Rows)-maxTableRows)))
		b.WriteString("\n")
	}
	if t.TotalCount > 0 {
		b.WriteString(field("Total", fmt.Sprint(t.TotalCount)))
		b.WriteString("\n")
	}
	if t.Summary != "" {
		b.WriteString(v.renderMarkdown(t.Summary))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderChart draws each series as a proportional unicode bar chart.
func (v *ResultView) renderChart(c *classify.ChartResult) string {
	var b strings.Builder
	if c.Title != "" {
		b.WriteString(TitleStyle.Render(c.Title))
		b.WriteString("\n")
	}
	if c.ChartType != "" {
		b.WriteString(field("Chart", c.ChartType))
		b.WriteString("\n")
	}

	for _, ds := range c.Datasets {
		if len(c.Datasets) > 1 && ds.Label != "" {
			b.WriteString(ValueStyle.Render(ds.Label))
			b.WriteString("\n")
		}
		max := 0.0
		for _, val := range ds.Values {
			if val > max {
				max = val
			}
		}
		for i, val := range ds.Values {
			label := ""
			if i < len(c.Labels) {
				label = c.Labels[i]
			}
			b.WriteString(pad(label, 14))
			b.WriteString(" ")
			b.WriteString(QueryStyle.Render(bar(val, max, 30)))
			b.WriteString(fmt.Sprintf(" %.4g\n", val))
		}
	}
	if c.Insight != "" {
		b.WriteString(v.renderMarkdown(c.Insight))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v *ResultView) renderAgent(a *classify.AgentResult) string {
	var b strings.Builder
	if a.QueryID != "" {
		b.WriteString(field("Query ID", a.QueryID))
		b.WriteString("\n")
	}
	if n := a.Narrative; n != nil {
		if q := n.FormattedQuery; q != "" {
			b.WriteString(QueryStyle.Render(q))
			b.WriteString("\n")
		} else if n.Query != "" {
			b.WriteString(QueryStyle.Render(n.Query))
			b.WriteString("\n")
		}
		if n.Explanation != "" {
			b.WriteString(v.renderMarkdown(n.Explanation))
			b.WriteString("\n")
		}
		if n.SampleAnalysis != "" {
			b.WriteString(v.renderMarkdown(n.SampleAnalysis))
			b.WriteString("\n")
		}
		if n.CSVURL != "" {
			b.WriteString(field("CSV", n.CSVURL))
			b.WriteString("\n")
		}
	}
	if c := a.Chart; c != nil {
		if c.URL != "" {
			b.WriteString(field("Chart", c.URL))
			b.WriteString("\n")
		}
		if c.Analysis != "" {
			b.WriteString(v.renderMarkdown(c.Analysis))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// pad right-pads s with spaces to at least width display cells.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// bar scales val against max into a block-character bar of at most width cells.
func bar(val, max float64, width int) string {
	if max <= 0 || val < 0 {
		return ""
	}
	n := int(val / max * float64(width))
	if n == 0 && val > 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}
