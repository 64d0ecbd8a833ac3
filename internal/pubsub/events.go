// Package pubsub provides a generic publish/subscribe broker used for
// in-process fan-out of log entries and manifest change sets.
package pubsub

import (
	"context"
	"time"
)

// EventType classifies a published message.
type EventType string

const (
	// LogEntryEvent carries a formatted log line.
	LogEntryEvent EventType = "log.entry"
	// ManifestAppliedEvent carries a change set applied to a component manager.
	ManifestAppliedEvent EventType = "manifest.applied"
	// ManifestFailedEvent carries a manifest reload failure.
	ManifestFailedEvent EventType = "manifest.failed"
)

// Event is a published message with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher publishes events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}

// Next blocks until the next event arrives on ch.
// ok is false when ctx is done or the channel was closed.
func Next[T any](ctx context.Context, ch <-chan Event[T]) (Event[T], bool) {
	select {
	case <-ctx.Done():
		return Event[T]{}, false
	case event, ok := <-ch:
		return event, ok
	}
}
