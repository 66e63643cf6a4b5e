package models

import "time"

// Role identifies a message participant.
type Role string

const (
	// RoleUser marks a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant marks a message produced by the agent service.
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation's visible history. Messages are
// immutable once created and appended in arrival order. Timestamp is unix
// seconds, matching the agent service history payload.
type Message struct {
	Role      Role    `json:"role"`
	Content   string  `json:"content"`
	Timestamp float64 `json:"timestamp"`
}

// Time converts the message timestamp to a time.Time.
func (m Message) Time() time.Time {
	return unixSecondsToTime(m.Timestamp)
}
