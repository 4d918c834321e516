package interfaces

import "context"

// EventType identifies a lifecycle notification published on the bus.
type EventType string

// Events the generation pipeline and translation machine publish. The
// WebSocket feed subscribes to all of them.
const (
	EventJobProgress     EventType = "job_progress"
	EventJobCompleted    EventType = "job_completed"
	EventJobFailed       EventType = "job_failed"
	EventQAInserted      EventType = "qa_inserted"
	EventLanguageBlocked EventType = "language_blocked"
)

// Event carries a typed payload; progress events carry the job row,
// translation events carry language snapshots.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler consumes a published event. A returned error is logged by the
// bus, never propagated to the publisher.
type EventHandler func(ctx context.Context, event Event) error

// EventService is the in-process pub/sub bus.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error

	// Publish delivers asynchronously and never blocks on subscribers.
	Publish(ctx context.Context, event Event) error

	// PublishSync waits for every handler before returning.
	PublishSync(ctx context.Context, event Event) error

	Close() error
}
