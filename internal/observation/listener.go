// Package observation implements the event bus: listeners register with a
// reference event and are notified of every fired event it matches.
package observation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/observation/event"
)

// Listener receives events. Implementations must be comparable, usually a
// pointer type, since the bus identifies listeners with ==.
type Listener interface {
	OnEvent(ctx context.Context, e event.Event, source, data any) error
}

// EventListener is a named listener that declares the events it wants.
type EventListener interface {
	Listener
	Name() string
	Events() []event.Event
}

// ListenerRole is the component role under which EventListeners are
// registered for pickup by Initialize.
var ListenerRole = component.RoleFor[EventListener]()

// ListenerFunc adapts a function into an EventListener.
type ListenerFunc struct {
	name   string
	events []event.Event
	fn     func(ctx context.Context, e event.Event, source, data any) error
}

// NewListenerFunc returns a named listener for events calling fn. An empty
// name is replaced with a generated one.
func NewListenerFunc(name string, fn func(ctx context.Context, e event.Event, source, data any) error, events ...event.Event) *ListenerFunc {
	if name == "" {
		name = "listener-" + uuid.NewString()
	}
	return &ListenerFunc{name: name, events: events, fn: fn}
}

func (l *ListenerFunc) Name() string { return l.name }

func (l *ListenerFunc) Events() []event.Event { return append([]event.Event(nil), l.events...) }

func (l *ListenerFunc) OnEvent(ctx context.Context, e event.Event, source, data any) error {
	return l.fn(ctx, e, source, data)
}

func (l *ListenerFunc) String() string { return l.name }

func listenerName(l Listener) string {
	if named, ok := l.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", l)
}
