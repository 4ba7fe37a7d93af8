package domain

import "time"

// TurnRole identifies who produced a conversation turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	// RoleSummary marks the single condensed turn that replaces folded
	// history. When present it is always first in the session.
	RoleSummary TurnRole = "summary"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
