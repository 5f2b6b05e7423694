// ABOUTME: Wire model for supervisor trace events pushed over the streaming chat endpoint.
// ABOUTME: One JSON object per event, discriminated by the "type" field; unknown kinds are forward-compatible.
package trace

// Kind discriminates the type of a pushed trace event.
type Kind string

const (
	KindStreamStart          Kind = "stream_start"
	KindReasoning            Kind = "reasoning"
	KindAgentStart           Kind = "agent_start"
	KindKnowledgeBase        Kind = "knowledge_base"
	KindQueryExecution       Kind = "query_execution"
	KindVisualizationCreated Kind = "visualization_created"
	KindError                Kind = "error"
	KindFinalResponse        Kind = "final_response"
)

// Event is one server-pushed trace event. Only the fields relevant to the
// event's Kind are populated; everything else is zero. The backend may emit
// kinds this client does not know (for example action_complete); those are
// handled generically by the reducer.
type Event struct {
	Type            Kind   `json:"type"`
	Message         string `json:"message,omitempty"`
	Content         string `json:"content,omitempty"`
	Agent           string `json:"agent,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	ReferencesCount int    `json:"references_count,omitempty"`
	QueryID         string `json:"query_id,omitempty"`
	ChartType       string `json:"chart_type,omitempty"`
	Result          any    `json:"result,omitempty"`
	Success         bool   `json:"success,omitempty"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp,omitempty"`
}
