package models

import (
	"time"
	"unicode/utf8"
)

// Conversation summarizes one chat thread held by the agent service. The
// service reports timestamps as unix seconds with sub-second precision, so
// they are kept as float64 and only converted for display.
type Conversation struct {
	ID            string  `json:"thread_id"`
	Title         string  `json:"title"`
	CreatedAt     float64 `json:"created_at"`
	LastMessageAt float64 `json:"last_message_at"`
	MessageCount  int     `json:"message_count"`
}

// LastActivity converts the last-message timestamp to a time.Time.
func (c Conversation) LastActivity() time.Time {
	return unixSecondsToTime(c.LastMessageAt)
}

const titleRuneLimit = 30

// DeriveTitle builds a conversation title from the first user message, the
// same way the agent service titles a conversation it creates implicitly:
// the first 30 characters, with a truncation marker when the message is
// longer.
func DeriveTitle(text string) string {
	if utf8.RuneCountInString(text) <= titleRuneLimit {
		return text
	}
	return string([]rune(text)[:titleRuneLimit]) + "..."
}

func unixSecondsToTime(seconds float64) time.Time {
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
