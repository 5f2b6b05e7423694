// ABOUTME: Typed result variants produced by classifying a supervisor agent's final payload.
// ABOUTME: One tagged Result struct with exactly one populated variant per classification.
package classify

// Kind tags which variant a classified Result holds.
type Kind string

const (
	KindText  Kind = "text"
	KindError Kind = "error"
	KindEmbed Kind = "embed"
	KindTable Kind = "table"
	KindChart Kind = "chart"
	KindAgent Kind = "analysis"
)

// Result is the outcome of classifying a structured payload. Exactly one of
// the variant fields matching Kind is populated.
type Result struct {
	Kind  Kind
	Text  string
	Err   *ErrorResult
	Embed *EmbedPointer
	Table *TabularResult
	Chart *ChartResult
	Agent *AgentResult
}

// ErrorResult is a backend-reported error message.
type ErrorResult struct {
	Message string
}

// EmbedPointer references an externally hosted, iframe-style dashboard.
type EmbedPointer struct {
	URL   string
	Title string
}

// Column describes one column of a tabular result.
type Column struct {
	Key   string
	Label string
}

// TabularResult is row/column data with an optional period label and summary.
type TabularResult struct {
	Title      string
	Columns    []Column
	Rows       [][]any
	TotalCount int
	Period     string
	Summary    string
}

// Dataset is one named series of a chart.
type Dataset struct {
	Label  string
	Values []float64
}

// ChartResult is chart-ready data: either a category/percentage breakdown
// (single dataset over labels) or multi-series time-indexed values, plus any
// derived insight text the backend attached.
type ChartResult struct {
	Title     string
	ChartType string
	Labels    []string
	Datasets  []Dataset
	Insight   string
}

// DataNarrative is the query-and-explanation sub-part of a composite agent
// result.
type DataNarrative struct {
	Query          string
	FormattedQuery string
	Explanation    string
	SampleAnalysis string
	CSVURL         string
}

// ChartPart is the visualization sub-part of a composite agent result.
type ChartPart struct {
	URL      string
	Analysis string
}

// AgentResult is the composite supervisor result. It is one visually composed
// answer that may carry both a data narrative and a chart part at once; the
// split into sub-parts is a rendering concern, not two separate results.
type AgentResult struct {
	QueryID   string
	Narrative *DataNarrative
	Chart     *ChartPart
}
