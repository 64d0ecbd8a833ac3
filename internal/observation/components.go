package observation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/observation/event"
)

// notifierSetter is implemented by component managers that publish
// descriptor lifecycle events.
type notifierSetter interface {
	SetNotifier(n component.Notifier)
}

// Initialize registers every EventListener component of components and
// keeps following ListenerRole registrations. When components accepts a
// notifier, the bus installs itself so later registrations are seen.
func (m *Manager) Initialize(ctx context.Context, components component.Manager) error {
	bridge := &componentBridge{bus: m, components: components, byHint: make(map[string]string)}

	m.mu.Lock()
	if m.components != nil {
		m.mu.Unlock()
		return fmt.Errorf("observation manager already initialized")
	}
	m.components = bridge
	m.mu.Unlock()

	if err := m.AddListener(component.DescriptorAddedEvent{Role: ListenerRole}, bridge); err != nil {
		return err
	}
	if err := m.AddListener(component.DescriptorRemovedEvent{Role: ListenerRole}, bridge); err != nil {
		return err
	}
	if ns, ok := components.(notifierSetter); ok {
		ns.SetNotifier(m)
	}

	var errs []error
	for _, d := range components.Descriptors(ListenerRole) {
		if err := bridge.add(ctx, d.Hint); err != nil {
			log.ErrorErr(log.CatObservation, "failed to register listener component", err, "hint", d.Hint)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// componentBridge mirrors ListenerRole components into the bus.
type componentBridge struct {
	bus        *Manager
	components component.Manager

	mu     sync.Mutex
	byHint map[string]string // component hint -> listener name
}

func (b *componentBridge) OnEvent(ctx context.Context, e event.Event, _, _ any) error {
	switch ev := e.(type) {
	case component.DescriptorAddedEvent:
		return b.add(ctx, ev.Hint)
	case component.DescriptorRemovedEvent:
		b.remove(ev.Hint)
	}
	return nil
}

func (b *componentBridge) add(ctx context.Context, hint string) error {
	v, err := b.components.Lookup(ctx, ListenerRole, hint)
	if err != nil {
		return err
	}
	l, ok := v.(EventListener)
	if !ok {
		return &component.LookupError{
			Role: ListenerRole,
			Hint: hint,
			Err:  fmt.Errorf("%T: %w", v, component.ErrRoleTypeMismatch),
		}
	}

	b.remove(hint)
	if err := b.bus.AddEventListener(l); err != nil {
		return err
	}

	b.mu.Lock()
	b.byHint[hint] = l.Name()
	b.mu.Unlock()
	return nil
}

func (b *componentBridge) remove(hint string) {
	b.mu.Lock()
	name, ok := b.byHint[hint]
	delete(b.byHint, hint)
	b.mu.Unlock()

	if ok {
		b.bus.RemoveEventListener(name)
	}
}
