// ABOUTME: Display-name normalization and icon lookup for supervisor sub-agents.
// ABOUTME: Raw agent identifiers map to stable human-readable names with a generic fallback.
package trace

import "strings"

// DefaultIcon is used for agents without a dedicated icon.
const DefaultIcon = "🤖"

// agentIcons maps canonical display names to presentation icons.
var agentIcons = map[string]string{
	"Query Refinement Agent": "🔍",
	"Database Agent":         "🗄️",
	"QuickSight Agent":       "📊",
}

// AgentDisplayName maps a raw agent identifier to its display name. Unknown
// identifiers are returned as-is so new sub-agents still show something
// meaningful.
func AgentDisplayName(agent string) string {
	lower := strings.ToLower(agent)
	switch {
	case strings.Contains(lower, "refinement"):
		return "Query Refinement Agent"
	case strings.Contains(lower, "db"), strings.Contains(lower, "database"):
		return "Database Agent"
	case strings.Contains(lower, "quicksight"), strings.Contains(lower, "visualization"):
		return "QuickSight Agent"
	}
	return agent
}

// AgentIcon returns the icon for a display name, falling back to DefaultIcon.
func AgentIcon(displayName string) string {
	if icon, ok := agentIcons[displayName]; ok {
		return icon
	}
	return DefaultIcon
}
