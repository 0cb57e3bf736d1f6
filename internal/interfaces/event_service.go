// Package interfaces defines the contracts that decouple the Pipeline
// Manager/Worker/Scraper from their collaborators: the Event Bus, the
// Store, and the Fetcher.
package interfaces

import (
	"context"

	"github.com/ternarybob/ingestor/internal/models"
)

// EventType identifies the kind of payload an Event carries.
type EventType string

const (
	// EventJobStatusChange fires on every Job state transition.
	EventJobStatusChange EventType = "JOB_STATUS_CHANGE"
	// EventJobProgress fires once per processed BFS item.
	EventJobProgress EventType = "JOB_PROGRESS"
	// EventJobListChange fires on enqueue and on clearCompletedJobs.
	EventJobListChange EventType = "JOB_LIST_CHANGE"
	// EventLibraryChange fires after the terminal state of a successful
	// ingest, when the persisted library set may have changed.
	EventLibraryChange EventType = "LIBRARY_CHANGE"
)

// JobStatusPayload is carried by EventJobStatusChange.
type JobStatusPayload struct {
	Job *models.Job
}

// JobProgressPayload is carried by EventJobProgress.
type JobProgressPayload struct {
	Job      *models.Job
	Progress *models.ProgressSnapshot
}

// Event is one message flowing through the Bus.
type Event struct {
	Type    EventType
	Payload interface{}
}

// Handler processes one Event. A returned error is logged by the Bus and
// does not stop delivery to other handlers.
type Handler func(ctx context.Context, event Event) error

// UnsubscribeFunc removes the handler it was returned for. Safe to call
// more than once.
type UnsubscribeFunc func()

// EventBus is an in-process typed pub/sub with synchronous fan-out: Emit
// delivers to every current subscriber before returning, ignoring (but
// logging) handler errors. Subscribers must be fast; long work should be
// dispatched asynchronously by the handler itself.
type EventBus interface {
	// On subscribes fn to eventType and returns a token that removes just
	// this subscription.
	On(eventType EventType, fn Handler) (UnsubscribeFunc, error)
	// Once behaves like On but auto-unsubscribes after the first delivery.
	Once(eventType EventType, fn Handler) (UnsubscribeFunc, error)
	// RemoveAllListeners drops every subscriber for eventType, or every
	// subscriber for every type when eventType is "".
	RemoveAllListeners(eventType EventType)
	// ListenerCount reports the current subscriber count for eventType.
	ListenerCount(eventType EventType) int
	// Emit delivers event to all current subscribers of event.Type.
	Emit(ctx context.Context, event Event) error
	// Close removes all listeners and marks the bus shut down.
	Close() error
}
