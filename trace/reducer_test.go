// ABOUTME: Tests for the streaming session reducer state machine.
// ABOUTME: Driven by literal event slices; covers transitions, buffer bounds, terminal-once, and recovery semantics.
package trace

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/2389-research/kicksight/classify"
)

func TestReducerInitialState(t *testing.T) {
	r := NewReducer()
	if r.State() != StateIdle {
		t.Errorf("State = %v, want idle", r.State())
	}
	if r.Resolved() {
		t.Error("new reducer must not be resolved")
	}
	if len(r.ProgressLines()) != 0 {
		t.Errorf("progress lines = %v, want empty", r.ProgressLines())
	}
}

func TestReducerSuccessScenario(t *testing.T) {
	r := NewReducer()
	events := []Event{
		{Type: KindStreamStart, Message: "분석 시작"},
		{Type: KindAgentStart, Agent: "DB Agent", Message: "조회 중"},
		{Type: KindFinalResponse, Success: true, Result: map[string]any{
			"query_id": "Q1", "explanation": "설명",
		}},
	}
	for _, ev := range events {
		r.HandleEvent(ev)
	}

	if r.State() != StateResolvedSuccess {
		t.Fatalf("State = %v, want resolved_success", r.State())
	}
	out, ok := r.Outcome()
	if !ok || !out.Success {
		t.Fatalf("Outcome = %+v, ok=%v", out, ok)
	}
	if out.Result.Kind != classify.KindAgent {
		t.Fatalf("result kind = %q, want analysis", out.Result.Kind)
	}
	if out.Result.Agent.QueryID != "Q1" {
		t.Errorf("QueryID = %q, want Q1", out.Result.Agent.QueryID)
	}
	if got := r.ProgressLines(); len(got) != 0 {
		t.Errorf("progress buffer not dropped on resolve: %v", got)
	}
}

func TestReducerUpstreamFailure(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	r.HandleEvent(Event{Type: KindFinalResponse, Success: false})

	if r.State() != StateResolvedFailure {
		t.Fatalf("State = %v, want resolved_failure", r.State())
	}
	out, _ := r.Outcome()
	if !errors.Is(out.Err, ErrAnalysisFailed) {
		t.Errorf("Err = %v, want ErrAnalysisFailed", out.Err)
	}
}

func TestReducerResolvesExactlyOnce(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	r.HandleEvent(Event{Type: KindFinalResponse, Success: true, Result: "done"})

	first, _ := r.Outcome()

	// Everything after the terminal event is ignored.
	r.HandleEvent(Event{Type: KindFinalResponse, Success: false})
	r.HandleEvent(Event{Type: KindAgentStart, Agent: "DB Agent"})
	r.ResolveFailure(errors.New("late transport error"))

	second, _ := r.Outcome()
	if first.Success != second.Success || first.Err != second.Err {
		t.Errorf("outcome changed after terminal: %+v vs %+v", first, second)
	}
	if r.State() != StateResolvedSuccess {
		t.Errorf("State = %v, want resolved_success", r.State())
	}
}

func TestReducerProgressBufferBounded(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	for i := 0; i < 60; i++ {
		r.HandleEvent(Event{Type: KindQueryExecution, QueryID: fmt.Sprintf("Q%d", i)})
	}
	lines := r.ProgressLines()
	if len(lines) != 5 {
		t.Fatalf("retained %d lines, want 5", len(lines))
	}
	if !strings.Contains(lines[4], "Q59") {
		t.Errorf("newest line = %q, want the latest event", lines[4])
	}
	if !strings.Contains(lines[0], "Q55") {
		t.Errorf("oldest retained line = %q, want Q55", lines[0])
	}
}

func TestReducerReasoningHeadlineOnly(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	r.HandleEvent(Event{Type: KindReasoning, Content: "First I will inspect the schema.\nThen join the tables.\nFinally aggregate."})

	lines := r.ProgressLines()
	last := lines[len(lines)-1]
	if last != "First I will inspect the schema." {
		t.Errorf("line = %q, want headline only", last)
	}
	if r.State() != StateReasoning {
		t.Errorf("State = %v, want reasoning", r.State())
	}
}

func TestReducerAgentStartFallbacks(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
		icon string
	}{
		{
			"display name preferred",
			Event{Type: KindAgentStart, DisplayName: "Database Agent", Agent: "db-raw", Message: "querying"},
			"Database Agent: querying",
			"🗄️",
		},
		{
			"raw agent mapped",
			Event{Type: KindAgentStart, Agent: "quicksight-worker-2"},
			"QuickSight Agent: invoking...",
			"📊",
		},
		{
			"generic label",
			Event{Type: KindAgentStart},
			"Agent: invoking...",
			DefaultIcon,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReducer()
			r.HandleEvent(tt.ev)
			lines := r.ProgressLines()
			if len(lines) != 1 || lines[0] != tt.want {
				t.Errorf("lines = %v, want [%q]", lines, tt.want)
			}
			if r.Icon() != tt.icon {
				t.Errorf("Icon = %q, want %q", r.Icon(), tt.icon)
			}
		})
	}
}

func TestReducerKnowledgeBaseDefaultsToZero(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindKnowledgeBase})
	lines := r.ProgressLines()
	if len(lines) != 1 || !strings.Contains(lines[0], "0 references") {
		t.Errorf("lines = %v", lines)
	}
}

func TestReducerErrorEventIsNotTerminal(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	r.HandleEvent(Event{Type: KindError, Message: "일시적인 오류"})

	if r.Resolved() {
		t.Fatal("error event must not resolve the reducer")
	}

	// The stream may still finish normally afterwards.
	r.HandleEvent(Event{Type: KindFinalResponse, Success: true, Result: "ok"})
	out, _ := r.Outcome()
	if !out.Success {
		t.Errorf("expected success after diagnostic error, got %+v", out)
	}
}

func TestReducerUnknownKind(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: "action_complete", Message: "CSV export 작업 완료"})
	r.HandleEvent(Event{Type: "some_future_event"})

	lines := r.ProgressLines()
	if len(lines) != 1 || lines[0] != "CSV export 작업 완료" {
		t.Errorf("lines = %v", lines)
	}
}

func TestReducerResolveFailureOnce(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})

	errA := errors.New("connection lost")
	r.ResolveFailure(errA)
	r.ResolveFailure(errors.New("second"))

	out, ok := r.Outcome()
	if !ok || out.Err != errA {
		t.Errorf("Outcome = %+v, want first failure retained", out)
	}
	if r.State() != StateResolvedFailure {
		t.Errorf("State = %v", r.State())
	}
}

func TestReducerFinalResponseEnvelopeAndSalvage(t *testing.T) {
	// The backend wraps results as {type, data}, and data may itself be a
	// JSON string that needs salvage before classification.
	r := NewReducer()
	r.HandleEvent(Event{Type: KindStreamStart})
	r.HandleEvent(Event{Type: KindFinalResponse, Success: true, Result: map[string]any{
		"type": "text",
		"data": `{"query_id": "8465df6e", "query": "SELECT 1", "explanation": "테스트"}`,
	}})

	out, _ := r.Outcome()
	if !out.Success {
		t.Fatalf("outcome = %+v", out)
	}
	if out.Result.Kind != classify.KindAgent {
		t.Fatalf("kind = %q, want analysis", out.Result.Kind)
	}
	if out.Result.Agent.QueryID != "8465df6e" {
		t.Errorf("QueryID = %q", out.Result.Agent.QueryID)
	}
}

func TestReducerFinalResponseEmbedKeepsEnvelope(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindFinalResponse, Success: true, Result: map[string]any{
		"type":  "embed",
		"url":   "https://quicksight.example.com/sn/dashboards/voc-2024",
		"title": "VOC 2024",
	}})
	out, _ := r.Outcome()
	if out.Result.Kind != classify.KindEmbed {
		t.Fatalf("kind = %q, want embed", out.Result.Kind)
	}
	if out.Result.Embed.Title != "VOC 2024" {
		t.Errorf("title = %q", out.Result.Embed.Title)
	}
}

func TestReducerFinalResponseDashboardEnvelope(t *testing.T) {
	r := NewReducer()
	r.HandleEvent(Event{Type: KindFinalResponse, Success: true, Result: map[string]any{
		"type": "dashboard",
		"data": map[string]any{
			"dashboard_url": "https://quicksight.example.com/sn/dashboards/voc-2024",
			"title":         "QuickSight Dashboard",
		},
	}})
	out, _ := r.Outcome()
	if out.Result.Kind != classify.KindEmbed {
		t.Fatalf("kind = %q, want embed", out.Result.Kind)
	}
	if out.Result.Embed.URL != "https://quicksight.example.com/sn/dashboards/voc-2024" {
		t.Errorf("url = %q", out.Result.Embed.URL)
	}
}

func TestAgentDisplayName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"query-refinement-v2", "Query Refinement Agent"},
		{"DB Agent", "Database Agent"},
		{"prod-database-agent", "Database Agent"},
		{"quicksight_mock", "QuickSight Agent"},
		{"visualization-worker", "QuickSight Agent"},
		{"Planner", "Planner"},
	}
	for _, tt := range tests {
		if got := AgentDisplayName(tt.in); got != tt.want {
			t.Errorf("AgentDisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
