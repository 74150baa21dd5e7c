package history

import (
	"context"
	"time"
)

// EventType defines the kind of backend lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventExit  EventType = "exit"
)

// Run identifies one backend process lifetime.
type Run struct {
	Command   string    `json:"command"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	// Set on exit events only. ExitCode is -1 when the process was signaled
	// or never ran; Signal is empty unless a signal terminated it.
	ExitCode int    `json:"exit_code"`
	Signal   string `json:"signal,omitempty"`
	ExitErr  string `json:"exit_error,omitempty"`
}

// Event represents a lifecycle event to be persisted.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Run        Run       `json:"run"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
