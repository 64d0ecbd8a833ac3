package observation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/observation/event"
	"github.com/zjrosen/componentry/internal/tracing"
)

// registration is one (reference event, listener) pair.
type registration struct {
	ref      event.Event
	listener Listener
}

// Manager is the observation bus.
//
// Registrations are kept per event type in insertion order. Slices are
// never mutated in place, so Notify iterates a stable snapshot while
// listeners add or remove registrations.
type Manager struct {
	mu        sync.RWMutex
	listeners map[reflect.Type][]registration
	named     map[string]EventListener

	policy DispatchPolicy
	tracer trace.Tracer

	components *componentBridge
}

var _ component.Notifier = (*Manager)(nil)

var allEventKey = event.TypeKey(event.AllEvent)

// Option configures a Manager.
type Option func(*Manager)

// WithDispatchPolicy sets how listener failures surface from Notify.
func WithDispatchPolicy(p DispatchPolicy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithTracer records a span per Notify.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// NewManager returns an empty bus.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		listeners: make(map[reflect.Type][]registration),
		named:     make(map[string]EventListener),
		policy:    PolicyLog,
		tracer:    tracing.NoopTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddListener subscribes l to events matched by e.
//
// If l is already registered under e's type with a reference event equal to
// or matching e, nothing changes. Registrations of l that e matches are
// narrower and are replaced by a single registration for e at the end of
// the list.
func (m *Manager) AddListener(e event.Event, l Listener) error {
	if e == nil {
		return ErrNilEvent
	}
	if err := checkListener(l); err != nil {
		return err
	}

	key := event.TypeKey(e)

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.listeners[key]
	for _, r := range current {
		if r.listener == l && (event.Equal(r.ref, e) || r.ref.Matches(e)) {
			return nil
		}
	}

	next := make([]registration, 0, len(current)+1)
	replaced := 0
	for _, r := range current {
		if r.listener == l && e.Matches(r.ref) {
			replaced++
			continue
		}
		next = append(next, r)
	}
	m.listeners[key] = append(next, registration{ref: e, listener: l})

	log.Debug(log.CatObservation, "listener added",
		"listener", listenerName(l),
		"event", key,
		"replaced", replaced)
	return nil
}

// RemoveListener unsubscribes l from e and from every narrower reference
// event of the same type. A nil e removes l everywhere.
func (m *Manager) RemoveListener(e event.Event, l Listener) {
	if e == nil {
		m.RemoveAll(l)
		return
	}
	key := event.TypeKey(e)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.filterLocked(key, func(r registration) bool {
		return r.listener == l && (event.Equal(r.ref, e) || e.Matches(r.ref))
	})
}

// RemoveAll unsubscribes l from every event type.
func (m *Manager) RemoveAll(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.listeners {
		m.filterLocked(key, func(r registration) bool { return r.listener == l })
	}
}

// filterLocked drops registrations under key for which drop returns true.
// m.mu must be held for writing.
func (m *Manager) filterLocked(key reflect.Type, drop func(registration) bool) {
	current := m.listeners[key]
	next := make([]registration, 0, len(current))
	for _, r := range current {
		if !drop(r) {
			next = append(next, r)
		}
	}
	if len(next) == len(current) {
		return
	}
	if len(next) == 0 {
		delete(m.listeners, key)
		return
	}
	m.listeners[key] = next
}

// AddEventListener registers l under its name for each of its events.
func (m *Manager) AddEventListener(l EventListener) error {
	if err := checkListener(l); err != nil {
		return err
	}

	m.mu.Lock()
	if _, exists := m.named[l.Name()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrListenerExists, l.Name())
	}
	m.named[l.Name()] = l
	m.mu.Unlock()

	for _, e := range l.Events() {
		if err := m.AddListener(e, l); err != nil {
			m.RemoveEventListener(l.Name())
			return fmt.Errorf("add listener %s: %w", l.Name(), err)
		}
	}

	log.Info(log.CatObservation, "event listener registered", "name", l.Name(), "events", len(l.Events()))
	return nil
}

// RemoveEventListener unregisters the named listener from every event.
func (m *Manager) RemoveEventListener(name string) EventListener {
	m.mu.Lock()
	l, ok := m.named[name]
	delete(m.named, name)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.RemoveAll(l)
	log.Info(log.CatObservation, "event listener removed", "name", name)
	return l
}

// Listener returns the named listener.
func (m *Manager) Listener(name string) (EventListener, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.named[name]
	return l, ok
}

// ListenerNames returns the names of every named listener.
func (m *Manager) ListenerNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.named))
	for n := range m.named {
		names = append(names, n)
	}
	return names
}

// AddEvent subscribes an already registered named listener to e.
func (m *Manager) AddEvent(name string, e event.Event) error {
	l, ok := m.Listener(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, name)
	}
	return m.AddListener(e, l)
}

// RemoveEvent unsubscribes a named listener from e.
func (m *Manager) RemoveEvent(name string, e event.Event) error {
	l, ok := m.Listener(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrListenerNotFound, name)
	}
	m.RemoveListener(e, l)
	return nil
}

// Registrations returns the number of registrations under e's type.
func (m *Manager) Registrations(e event.Event) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners[event.TypeKey(e)])
}

// Notify dispatches e to every listener whose reference event matches it:
// AllEvent listeners first, then listeners of e's type, each group in
// registration order. A listener runs at most once per call even when
// several of its registrations match.
//
// Listener failures never stop the dispatch. With PolicyLog they are logged
// and Notify returns nil; with PolicyAggregate they are joined and returned.
func (m *Manager) Notify(ctx context.Context, e event.Event, source, data any) error {
	if e == nil {
		return ErrNilEvent
	}
	key := event.TypeKey(e)

	m.mu.RLock()
	all := m.listeners[allEventKey]
	typed := m.listeners[key]
	m.mu.RUnlock()

	if len(all) == 0 && len(typed) == 0 {
		return nil
	}
	if key == allEventKey {
		typed = nil
	}

	ctx, span := tracing.Start(ctx, m.tracer, tracing.SpanObservationNotify,
		attribute.String(tracing.AttrEventType, key.String()),
		attribute.Int(tracing.AttrListenerCount, len(all)+len(typed)),
	)

	invoked := make(map[Listener]struct{}, len(all)+len(typed))
	var errs []error
	for _, snapshot := range [][]registration{all, typed} {
		for _, r := range snapshot {
			if !r.ref.Matches(e) {
				continue
			}
			if _, done := invoked[r.listener]; done {
				continue
			}
			invoked[r.listener] = struct{}{}

			if err := dispatch(ctx, r.listener, e, source, data); err != nil {
				span.AddEvent(tracing.EventListenerFailed, trace.WithAttributes(
					attribute.String(tracing.AttrListenerName, listenerName(r.listener)),
					attribute.String(tracing.AttrErrorMessage, err.Error()),
				))
				log.ErrorErr(log.CatObservation, "listener failed", err,
					"listener", listenerName(r.listener),
					"event", key)
				errs = append(errs, err)
			}
		}
	}

	span.SetAttributes(attribute.Int(tracing.AttrDispatchFailed, len(errs)))
	joined := errors.Join(errs...)
	tracing.Finish(span, joined)

	if m.policy == PolicyAggregate {
		return joined
	}
	return nil
}

func dispatch(ctx context.Context, l Listener, e event.Event, source, data any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DispatchError{Listener: listenerName(l), Event: e, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := l.OnEvent(ctx, e, source, data); err != nil {
		return &DispatchError{Listener: listenerName(l), Event: e, Err: err}
	}
	return nil
}

func checkListener(l Listener) error {
	if l == nil {
		return fmt.Errorf("%w: nil listener", ErrListenerNotComparable)
	}
	if t := reflect.TypeOf(l); !t.Comparable() {
		return fmt.Errorf("%w: %s", ErrListenerNotComparable, t)
	}
	return nil
}
