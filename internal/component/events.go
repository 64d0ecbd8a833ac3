package component

import (
	"github.com/zjrosen/componentry/internal/observation/event"
)

// DescriptorAddedEvent is sent after a descriptor is registered. As a
// reference event, an empty Role or Hint matches any value.
type DescriptorAddedEvent struct {
	Role Role
	Hint string
}

func (e DescriptorAddedEvent) Matches(other event.Event) bool {
	o, ok := other.(DescriptorAddedEvent)
	return ok && keyMatches(e.Role, e.Hint, o.Role, o.Hint)
}

// DescriptorRemovedEvent is sent after a descriptor is unregistered or
// replaced. Matching works as for DescriptorAddedEvent.
type DescriptorRemovedEvent struct {
	Role Role
	Hint string
}

func (e DescriptorRemovedEvent) Matches(other event.Event) bool {
	o, ok := other.(DescriptorRemovedEvent)
	return ok && keyMatches(e.Role, e.Hint, o.Role, o.Hint)
}

func keyMatches(role Role, hint string, otherRole Role, otherHint string) bool {
	return (role == "" || role == otherRole) && (hint == "" || hint == otherHint)
}
