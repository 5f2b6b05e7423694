// ABOUTME: YAML-scripted replay scenarios: ordered trace events with per-event delays.
// ABOUTME: Scenarios are matched to incoming questions by keyword; a built-in default always exists.
package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/kicksight/trace"
)

// ScenarioEvent is one scripted event with an optional delay before emission.
type ScenarioEvent struct {
	DelayMS         int    `yaml:"delay_ms"`
	Type            string `yaml:"type"`
	Message         string `yaml:"message"`
	Content         string `yaml:"content"`
	Agent           string `yaml:"agent"`
	DisplayName     string `yaml:"display_name"`
	ReferencesCount int    `yaml:"references_count"`
	QueryID         string `yaml:"query_id"`
	ChartType       string `yaml:"chart_type"`
	Result          any    `yaml:"result"`
	Success         bool   `yaml:"success"`
	Error           string `yaml:"error"`
}

// Delay returns the pause before this event is emitted.
func (e ScenarioEvent) Delay() time.Duration {
	return time.Duration(e.DelayMS) * time.Millisecond
}

// Trace converts the scripted event to the wire model, stamping the current
// time.
func (e ScenarioEvent) Trace() trace.Event {
	return trace.Event{
		Type:            trace.Kind(e.Type),
		Message:         e.Message,
		Content:         e.Content,
		Agent:           e.Agent,
		DisplayName:     e.DisplayName,
		ReferencesCount: e.ReferencesCount,
		QueryID:         e.QueryID,
		ChartType:       e.ChartType,
		Result:          e.Result,
		Success:         e.Success,
		Error:           e.Error,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
}

// Scenario is one named replay script. Match holds lowercase keywords; a
// scenario applies when any keyword appears in the incoming question.
type Scenario struct {
	Name   string          `yaml:"name"`
	Match  []string        `yaml:"match"`
	Events []ScenarioEvent `yaml:"events"`
}

// Library holds the loaded scenarios plus the built-in default.
type Library struct {
	scenarios []Scenario
}

// LoadLibrary reads every *.yaml and *.yml file in dir. An empty dir path
// yields a library containing only the built-in default scenario.
func LoadLibrary(dir string) (*Library, error) {
	lib := &Library{}
	if dir == "" {
		return lib, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario dir: %w", err)
	}
	var names []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := filepath.Ext(ent.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, ent.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading scenario %s: %w", name, err)
		}
		var sc Scenario
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("parsing scenario %s: %w", name, err)
		}
		if sc.Name == "" {
			sc.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if len(sc.Events) == 0 {
			return nil, fmt.Errorf("scenario %s has no events", name)
		}
		lib.scenarios = append(lib.scenarios, sc)
	}
	return lib, nil
}

// Pick selects the first scenario whose keywords match the question,
// case-insensitively, falling back to the built-in default.
func (l *Library) Pick(question string) Scenario {
	q := strings.ToLower(question)
	for _, sc := range l.scenarios {
		for _, kw := range sc.Match {
			if kw != "" && strings.Contains(q, strings.ToLower(kw)) {
				return sc
			}
		}
	}
	return defaultScenario(question)
}

// Len returns the number of loaded scenarios, not counting the default.
func (l *Library) Len() int { return len(l.scenarios) }

// defaultScenario is the fallback script: a short reasoning trace ending in a
// composite analysis result echoing the question.
func defaultScenario(question string) Scenario {
	return Scenario{
		Name: "default",
		Events: []ScenarioEvent{
			{Type: string(trace.KindStreamStart), Message: "분석을 시작합니다", DelayMS: 100},
			{Type: string(trace.KindAgentStart), Agent: "refinement", Message: "질문을 분석하고 있습니다", DelayMS: 200},
			{Type: string(trace.KindKnowledgeBase), ReferencesCount: 3, DelayMS: 150},
			{Type: string(trace.KindAgentStart), Agent: "db", Message: "쿼리를 생성하고 있습니다", DelayMS: 200},
			{Type: string(trace.KindQueryExecution), QueryID: "Q-REPLAY-1", DelayMS: 300},
			{
				Type:    string(trace.KindFinalResponse),
				Success: true,
				DelayMS: 200,
				Result: map[string]any{
					"query_id":    "Q-REPLAY-1",
					"query":       "SELECT channel, COUNT(*) AS total FROM voc GROUP BY channel",
					"explanation": "요청하신 내용에 대한 샘플 분석 결과입니다: " + question,
				},
			},
		},
	}
}
