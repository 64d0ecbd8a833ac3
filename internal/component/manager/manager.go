// Package manager implements the component registry: a concurrent store of
// descriptors keyed by role and hint that builds components on demand,
// wires their dependencies, and can delegate to a parent registry.
//
// A Manager may be embedded in a larger application type; the zero value is
// not usable, create one with New.
package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/observation/event"
	"github.com/zjrosen/componentry/internal/tracing"
)

// entry pairs one descriptor with its cached instance. A replaced key gets a
// fresh entry, so a descriptor and its instance never mix across
// registrations.
type entry struct {
	desc *component.Descriptor
	seq  uint64

	mu       sync.Mutex // serialises construction
	instance any
	built    atomic.Bool

	// retired is set once the entry left the registry; disposed guards the
	// single Dispose call on its instance.
	retired  atomic.Bool
	disposed atomic.Bool
}

func (e *entry) cached() (any, bool) {
	if !e.built.Load() {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance, true
}

// Manager is the default component.Manager.
type Manager struct {
	mu      sync.RWMutex
	entries map[component.Key]*entry
	order   map[component.Role][]string // hints per role in registration order
	seq     uint64

	parent   component.Manager
	notifier component.Notifier

	strict bool
	tracer trace.Tracer
}

var _ component.Manager = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithStrict rejects registering over an existing key.
func WithStrict(strict bool) Option {
	return func(m *Manager) { m.strict = strict }
}

// WithTracer records a span per component construction.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// WithNotifier sends descriptor added/removed events to n.
func WithNotifier(n component.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// New returns an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		entries: make(map[component.Key]*entry),
		order:   make(map[component.Role][]string),
		tracer:  tracing.NoopTracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetNotifier installs the receiver of descriptor lifecycle events.
func (m *Manager) SetNotifier(n component.Notifier) {
	m.mu.Lock()
	m.notifier = n
	m.mu.Unlock()
}

// Register stores d, replacing any descriptor under the same key. The
// descriptor is copied, so later changes to d are not observed.
func (m *Manager) Register(ctx context.Context, d *component.Descriptor, instance any) error {
	if d == nil {
		return &component.RepositoryError{Op: "register", Err: fmt.Errorf("%w: nil descriptor", component.ErrInvalidDescriptor)}
	}

	desc := d.Clone()
	key := desc.Key()

	if err := desc.Validate(); err != nil {
		return &component.RepositoryError{Key: key, Op: "register", Err: fmt.Errorf("%w: %v", component.ErrInvalidDescriptor, err)}
	}
	if desc.Factory == nil && instance == nil {
		return &component.RepositoryError{Key: key, Op: "register", Err: fmt.Errorf("%w: no factory and no instance", component.ErrInvalidDescriptor)}
	}

	m.mu.Lock()
	old, exists := m.entries[key]
	if exists && m.strict {
		m.mu.Unlock()
		return &component.RepositoryError{Key: key, Op: "register", Err: component.ErrDuplicateComponent}
	}

	m.seq++
	e := &entry{desc: desc, seq: m.seq}
	if instance != nil {
		e.instance = instance
		e.built.Store(true)
	}
	m.entries[key] = e
	if !exists {
		m.order[key.Role] = append(m.order[key.Role], key.Hint)
	}
	notifier := m.notifier
	m.mu.Unlock()

	log.Debug(log.CatComponent, "registered component",
		"key", key,
		"implementation", desc.Implementation,
		"strategy", desc.Strategy,
		"replaced", exists,
		"preset", instance != nil)

	if exists {
		m.release(ctx, key, old, instance)
		m.notify(ctx, notifier, component.DescriptorRemovedEvent{Role: key.Role, Hint: key.Hint}, old.desc)
	}
	m.notify(ctx, notifier, component.DescriptorAddedEvent{Role: key.Role, Hint: key.Hint}, desc)

	return nil
}

// Unregister removes the local component role/hint and disposes its cached
// instance. Unknown keys are ignored.
func (m *Manager) Unregister(ctx context.Context, role component.Role, hint string) error {
	key := component.NewKey(role, hint)

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.entries, key)
	m.order[key.Role] = removeHint(m.order[key.Role], key.Hint)
	if len(m.order[key.Role]) == 0 {
		delete(m.order, key.Role)
	}
	notifier := m.notifier
	m.mu.Unlock()

	log.Debug(log.CatComponent, "unregistered component", "key", key)

	m.release(ctx, key, e, nil)
	m.notify(ctx, notifier, component.DescriptorRemovedEvent{Role: key.Role, Hint: key.Hint}, e.desc)

	return nil
}

// HasComponent reports whether role/hint is registered here or in an
// ancestor. Nothing is constructed.
func (m *Manager) HasComponent(role component.Role, hint string) bool {
	key := component.NewKey(role, hint)

	m.mu.RLock()
	_, ok := m.entries[key]
	parent := m.parent
	m.mu.RUnlock()

	if ok {
		return true
	}
	return parent != nil && parent.HasComponent(role, key.Hint)
}

// Descriptor returns a copy of the descriptor visible for role/hint.
func (m *Manager) Descriptor(role component.Role, hint string) (*component.Descriptor, bool) {
	key := component.NewKey(role, hint)

	m.mu.RLock()
	e, ok := m.entries[key]
	parent := m.parent
	m.mu.RUnlock()

	if ok {
		return e.desc.Clone(), true
	}
	if parent != nil {
		return parent.Descriptor(role, key.Hint)
	}
	return nil, false
}

// Descriptors returns copies of every descriptor of role visible from this
// manager: local ones in registration order, then ancestors' whose hint is
// not registered locally.
func (m *Manager) Descriptors(role component.Role) []*component.Descriptor {
	m.mu.RLock()
	hints := m.order[role]
	out := make([]*component.Descriptor, 0, len(hints))
	seen := make(map[string]bool, len(hints))
	for _, h := range hints {
		out = append(out, m.entries[component.Key{Role: role, Hint: h}].desc.Clone())
		seen[h] = true
	}
	parent := m.parent
	m.mu.RUnlock()

	if parent == nil {
		return out
	}
	for _, d := range parent.Descriptors(role) {
		if !seen[d.Hint] {
			out = append(out, d)
		}
	}
	return out
}

// Dispose releases every cached instance in reverse registration order and
// empties the registry. Errors from Disposable components are joined.
func (m *Manager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.entries = make(map[component.Key]*entry)
	m.order = make(map[component.Role][]string)
	notifier := m.notifier
	m.mu.Unlock()

	sortBySeqDesc(entries)

	var errs []error
	for _, e := range entries {
		if err := dispose(ctx, e); err != nil {
			errs = append(errs, err)
		}
		m.notify(ctx, notifier, component.DescriptorRemovedEvent{Role: e.desc.Role, Hint: e.desc.Hint}, e.desc)
	}

	log.Info(log.CatComponent, "manager disposed", "components", len(entries), "errors", len(errs))
	return errors.Join(errs...)
}

// Keys returns every local key, ordered by role then registration order.
func (m *Manager) Keys() []component.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := make([]component.Role, 0, len(m.order))
	for r := range m.order {
		roles = append(roles, r)
	}
	slices.Sort(roles)

	var keys []component.Key
	for _, r := range roles {
		for _, h := range m.order[r] {
			keys = append(keys, component.Key{Role: r, Hint: h})
		}
	}
	return keys
}

// release disposes a superseded entry's instance unless it is being carried
// over as the replacement's preset instance.
func (m *Manager) release(ctx context.Context, key component.Key, e *entry, keep any) {
	e.retired.Store(true)
	inst, ok := e.cached()
	if !ok || (keep != nil && sameInstance(inst, keep)) {
		return
	}
	if err := dispose(ctx, e); err != nil {
		log.ErrorErr(log.CatComponent, "failed to dispose component", err, "key", key)
	}
}

func (m *Manager) notify(ctx context.Context, n component.Notifier, e event.Event, desc *component.Descriptor) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e, m, desc); err != nil {
		log.ErrorErr(log.CatComponent, "descriptor event listener failed", err, "descriptor", desc)
	}
}
