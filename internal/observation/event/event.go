// Package event defines the values exchanged on the observation bus and the
// filter algebra used to decide whether a fired event is of interest to a
// registered listener.
package event

import (
	"reflect"
)

// Event is a notification value. A listener registers with a reference event
// and is invoked for every fired event the reference event matches.
//
// Matches is directional: ref.Matches(fired) answers "does ref cover fired".
type Event interface {
	Matches(other Event) bool
}

// FilterableEvent is an event narrowed by a Filter. A nil Filter behaves
// like AlwaysMatching.
type FilterableEvent interface {
	Event
	Filter() Filter
}

// Equaler lets an event define its own identity for listener bookkeeping.
type Equaler interface {
	Equal(other Event) bool
}

// TypeKey returns the dispatch key for e: its dynamic Go type.
func TypeKey(e Event) reflect.Type {
	return reflect.TypeOf(e)
}

// Equal reports whether a and b are the same event for registration
// purposes. Events implementing Equaler decide themselves; others are
// compared structurally.
func Equal(a, b Event) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(Equaler); ok {
		return eq.Equal(b)
	}
	if TypeKey(a) != TypeKey(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// MatchesFilter implements Event.Matches for filterable events: other must
// have the same dynamic type as self and carry a filter that self's filter
// matches.
func MatchesFilter(self FilterableEvent, other Event) bool {
	if other == nil || TypeKey(self) != TypeKey(other) {
		return false
	}
	fo, ok := other.(FilterableEvent)
	if !ok {
		return false
	}
	return filterOrAlways(self.Filter()).Matches(filterOrAlways(fo.Filter()))
}

func filterOrAlways(f Filter) Filter {
	if f == nil {
		return AlwaysMatching
	}
	return f
}

// Base carries a filter and can be embedded by concrete events. The
// embedding type still declares Matches, usually as
//
//	func (e DocumentSaved) Matches(o event.Event) bool { return event.MatchesFilter(e, o) }
type Base struct {
	filter Filter
}

// NewBase returns a Base narrowed by f.
func NewBase(f Filter) Base {
	return Base{filter: f}
}

// Named returns a Base narrowed to a fixed name.
func Named(name string) Base {
	return Base{filter: FixedName(name)}
}

// Filter returns the event's filter, AlwaysMatching when none was set.
func (b Base) Filter() Filter {
	return filterOrAlways(b.filter)
}

// allEvent matches every event of any type.
type allEvent struct{}

func (allEvent) Matches(Event) bool { return true }

func (allEvent) String() string { return "AllEvent" }

// AllEvent is the reference event for listeners interested in everything.
// The observation bus dispatches it across all event types.
var AllEvent Event = allEvent{}

// IsAll reports whether e is AllEvent.
func IsAll(e Event) bool {
	_, ok := e.(allEvent)
	return ok
}
