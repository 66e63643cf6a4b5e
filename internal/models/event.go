package models

// EventKind discriminates the events carried by a turn's response stream.
type EventKind string

const (
	// EventProgress reports an intermediate step taken while producing the
	// reply.
	EventProgress EventKind = "step"
	// EventCompletion carries the final assistant reply and the set of
	// active agents and tools. It ends the turn.
	EventCompletion EventKind = "done"
	// EventFailure carries a failure reported by the service, or a
	// transport failure converted by the client. It ends the turn.
	EventFailure EventKind = "error"
)

// StreamEvent is one decoded event from a turn's response stream. Icon is
// only set for progress events; Agents and Tools only for completions.
type StreamEvent struct {
	Kind   EventKind
	Icon   string
	Text   string
	Agents []string
	Tools  []string
}
