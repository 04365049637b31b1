package models

import "strings"

// Priority is the urgency tier of a todo item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalizes free text to one of the three tiers. Anything
// unrecognised becomes medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Rank orders tiers for sorting: high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Emoji returns the marker written before the task text, trailing space included.
func (p Priority) Emoji() string {
	switch p {
	case PriorityHigh:
		return "🔴 "
	case PriorityMedium:
		return "🟠 "
	case PriorityLow:
		return "🟢 "
	default:
		return ""
	}
}

// PriorityFromEmoji maps a marker back to its tier; a missing marker is medium.
func PriorityFromEmoji(icon string) Priority {
	switch strings.TrimSpace(icon) {
	case "🔴":
		return PriorityHigh
	case "🟢":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// TodoItem is one actionable task with a back-link to its originating note.
type TodoItem struct {
	Task     string   `json:"task"`
	Priority Priority `json:"priority"`
	Context  string   `json:"context,omitempty"`
	Source   string   `json:"source,omitempty"`
}
