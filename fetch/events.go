package fetch

import "time"

// EventKind classifies a progress event emitted while fetching.
type EventKind string

const (
	// EventProgress is emitted after a page is fetched successfully.
	EventProgress EventKind = "progress"
	// EventRateLimit is emitted when the upstream responds 429 and the
	// client backs off. Wait carries the backoff duration.
	EventRateLimit EventKind = "rate_limit"
	// EventError is emitted for a transient failure that will be retried.
	EventError EventKind = "error"
	// EventCriticalError is emitted for a fatal failure (no retry).
	EventCriticalError EventKind = "critical_error"
	// EventComplete is emitted by the coordinator when collection finishes.
	EventComplete EventKind = "complete"
)

// Event describes one step of the fetch state machine.
type Event struct {
	Kind    EventKind
	Worker  int
	Page    int
	Records int
	Wait    time.Duration
	Err     error
}

// EventFunc receives progress events. Implementations must not block.
type EventFunc func(Event)
