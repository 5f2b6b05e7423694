// ABOUTME: Streaming session reducer: an explicit state machine consuming trace events for one in-flight request.
// ABOUTME: Projects events into bounded progress lines and resolves exactly one terminal outcome.
package trace

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389-research/kicksight/classify"
	"github.com/2389-research/kicksight/salvage"
)

// maxProgressLines bounds the progress buffer to the most recent lines; the
// buffer shows "what is happening now", not a transcript.
const maxProgressLines = 5

// ErrAnalysisFailed reports that the backend resolved the request with
// success=false (an upstream failure, distinct from a transport failure).
var ErrAnalysisFailed = errors.New("analysis failed: the agent could not complete the request")

// State is the reducer's position in the request lifecycle.
type State int

const (
	StateIdle State = iota
	StateStarted
	StateReasoning
	StateAgentActive
	StateToolEvent
	StateResolvedSuccess
	StateResolvedFailure
)

// String returns a short name for the state, for logs and tests.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarted:
		return "started"
	case StateReasoning:
		return "reasoning"
	case StateAgentActive:
		return "agent_active"
	case StateToolEvent:
		return "tool_event"
	case StateResolvedSuccess:
		return "resolved_success"
	case StateResolvedFailure:
		return "resolved_failure"
	}
	return "unknown"
}

// Outcome is the single terminal result of a streaming request.
type Outcome struct {
	Success bool
	Result  classify.Result // populated when Success
	Err     error           // populated when !Success
}

// Reducer consumes an ordered sequence of trace events for one request and
// produces exactly one terminal outcome. It is transport-agnostic: callers
// feed it events via HandleEvent and read state back through accessors, so
// tests can drive it with a literal event slice.
//
// A Reducer is not safe for concurrent use; all mutation happens on the
// single goroutine that owns the stream.
type Reducer struct {
	state   State
	lines   []string
	icon    string
	outcome *Outcome
}

// NewReducer returns a Reducer in StateIdle.
func NewReducer() *Reducer {
	return &Reducer{state: StateIdle, icon: DefaultIcon}
}

// State returns the current lifecycle state.
func (r *Reducer) State() State { return r.state }

// Resolved reports whether a terminal outcome has been produced.
func (r *Reducer) Resolved() bool { return r.outcome != nil }

// Outcome returns the terminal outcome, and whether one exists yet.
func (r *Reducer) Outcome() (Outcome, bool) {
	if r.outcome == nil {
		return Outcome{}, false
	}
	return *r.outcome, true
}

// ProgressLines returns a copy of the retained progress lines, oldest first.
func (r *Reducer) ProgressLines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Icon returns the icon tag of the most recent agent step.
func (r *Reducer) Icon() string { return r.icon }

// HandleEvent applies one trace event. Once the reducer is resolved all
// further events are ignored.
func (r *Reducer) HandleEvent(ev Event) {
	if r.outcome != nil {
		return
	}

	switch ev.Type {
	case KindStreamStart:
		r.state = StateStarted
		msg := ev.Message
		if msg == "" {
			msg = "Starting analysis..."
		}
		r.push(msg)

	case KindReasoning:
		r.state = StateReasoning
		if headline := firstLine(ev.Content); headline != "" {
			r.push(headline)
		}

	case KindAgentStart:
		r.state = StateAgentActive
		name := ev.DisplayName
		if name == "" {
			name = AgentDisplayName(ev.Agent)
		}
		if name == "" {
			name = "Agent"
		}
		msg := ev.Message
		if msg == "" {
			msg = "invoking..."
		}
		r.icon = AgentIcon(name)
		r.push(fmt.Sprintf("%s: %s", name, msg))

	case KindKnowledgeBase:
		r.state = StateToolEvent
		r.push(fmt.Sprintf("Knowledge base: %d references found", ev.ReferencesCount))

	case KindQueryExecution:
		r.state = StateToolEvent
		r.push(fmt.Sprintf("Running query %s", ev.QueryID))

	case KindVisualizationCreated:
		r.state = StateToolEvent
		r.push(fmt.Sprintf("Building %s chart", ev.ChartType))

	case KindError:
		// Diagnostic only: the stream may continue, or end without a
		// terminal event (the runner handles that case).
		msg := ev.Message
		if msg == "" {
			msg = ev.Error
		}
		if msg == "" {
			msg = "The backend reported an error"
		}
		r.push(msg)

	case KindFinalResponse:
		r.resolveFinal(ev)

	default:
		// Forward compatibility: unknown kinds with a human-readable
		// message still surface as progress; anything else is ignored.
		if ev.Message != "" {
			r.push(ev.Message)
		}
	}
}

// ResolveFailure forces a terminal failure from outside the event stream
// (transport close, inactivity timeout, abandonment). No-op once resolved.
func (r *Reducer) ResolveFailure(err error) {
	if r.outcome != nil {
		return
	}
	r.outcome = &Outcome{Success: false, Err: err}
	r.state = StateResolvedFailure
	r.lines = nil
}

func (r *Reducer) resolveFinal(ev Event) {
	if !ev.Success {
		r.outcome = &Outcome{Success: false, Err: ErrAnalysisFailed}
		r.state = StateResolvedFailure
		r.lines = nil
		return
	}

	payload := unwrapResult(ev.Result)
	result := classify.Classify(salvage.Recover(payload))
	r.outcome = &Outcome{Success: true, Result: result}
	r.state = StateResolvedSuccess
	r.lines = nil
}

// unwrapResult strips the backend formatter's {type, data} envelope when
// present. Embed pointers keep their envelope: their discriminator lives in
// the "type" field itself.
func unwrapResult(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	typ, _ := m["type"].(string)
	if typ == "" || typ == "embed" || typ == "dashboard" {
		return v
	}
	if data, ok := m["data"]; ok {
		return data
	}
	return v
}

// push appends a progress line, retaining only the most recent
// maxProgressLines entries.
func (r *Reducer) push(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > maxProgressLines {
		r.lines = r.lines[len(r.lines)-maxProgressLines:]
	}
}

// firstLine returns the first non-empty line of a multi-line payload,
// trimmed. Multi-line reasoning is summarized to its headline.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
