package domain

import "time"

// Phase is the current state of a conversation's requirements-gathering
// state machine. Transitions are owned exclusively by the conversation
// service; nothing else writes a phase.
type Phase string

const (
	PhaseGathering          Phase = "gathering"
	PhaseConfirmationFirst  Phase = "confirmation_first"
	PhaseClarifying         Phase = "clarifying"
	PhaseConfirmationSecond Phase = "confirmation_second"
	PhaseHumanEscalation    Phase = "human_escalation"
	PhaseComplete           Phase = "complete"
)

// Terminal reports whether the phase accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseHumanEscalation || p == PhaseComplete
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are append-only; once
// written they are never mutated or removed.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the full state of one requirements-gathering conversation.
type Session struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"userId,omitempty"`
	Messages             []Message      `json:"messages"`
	Phase                Phase          `json:"phase"`
	ProblemType          string         `json:"problemType,omitempty"`
	Requirements         map[string]any `json:"requirements"`
	ReadinessScore       int            `json:"readinessScore"`
	ConfirmationAttempts int            `json:"confirmationAttempts"`
	EscalationReason     string         `json:"escalationReason,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// SessionSummary is the listing projection of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"messageCount"`
	ProblemType  string    `json:"problemType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MetadataUpdate is a partial session-metadata write. Nil fields are left
// untouched (shallow merge).
type MetadataUpdate struct {
	UserID           *string
	ProblemType      *string
	Requirements     map[string]any
	ReadinessScore   *int
	EscalationReason *string
}
