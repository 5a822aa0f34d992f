package events

import "time"

// Prefix starts every event type and is the broker subject root.
const Prefix = "research"

// Event is a workflow occurrence forwarded to consumers outside the process.
type Event interface {
	// EventType doubles as the broker subject (e.g. "research.FACT_SAVED").
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// SessionEvent is something that happened inside one research session:
// a saved fact, a workflow stage change, or the end of a run.
type SessionEvent struct {
	Kind       string
	SessionID  string
	RunID      string // empty for facts saved by hand outside a run
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e SessionEvent) EventType() string {
	return Prefix + "." + e.Kind
}

// Payload puts the session and run ids next to the event data.
func (e SessionEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"session_id": e.SessionID,
		"data":       e.Data,
	}
	if e.RunID != "" {
		p["run_id"] = e.RunID
	}
	return p
}

func (e SessionEvent) Timestamp() time.Time {
	return e.OccurredAt
}
