package engine

// Event names emitted by the scheduler.
const (
	EventQueued           = "queued"
	EventAdmitted         = "admitted"
	EventCompleted        = "completed"
	EventCancelled        = "cancelled"
	EventFailed           = "failed"
	EventInterruptTimeout = "interrupt_timeout"
)

// Event represents a request lifecycle event.
// Minimal and stable: name + request ID and optional fields via key/values.
type Event struct {
	Name      string         `json:"name"`
	RequestID string         `json:"request_id"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// EventPublisher receives events from the scheduler. Implementations should
// be lightweight and non-blocking. Publish is called from the scheduler
// goroutine and from request drivers, so it must be safe for concurrent use,
// must not panic, and must not call back into the Scheduler.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

func terminalEventName(s Status) string {
	switch s {
	case StatusCompleted:
		return EventCompleted
	case StatusCancelled:
		return EventCancelled
	default:
		return EventFailed
	}
}
