package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries one delivered record (chat or notice).
	EventMessage EventKind = iota
	// EventHistory replays a room's history privately to a joiner.
	EventHistory
	// EventSuggestions delivers response suggestions to agents.
	EventSuggestions
	// EventError notifies a client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind        EventKind
	Room        string
	Record      Record
	Records     []Record // EventHistory
	Suggestions []string // EventSuggestions
	Error       *CoreError
}

func errorEvent(room string, err *CoreError) *Event {
	return &Event{Kind: EventError, Room: room, Error: err}
}
