package manager

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/tracing"
)

// Lookup resolves role/hint locally, then through the parent chain.
func (m *Manager) Lookup(ctx context.Context, role component.Role, hint string) (any, error) {
	key := component.NewKey(role, hint)

	m.mu.RLock()
	e, ok := m.entries[key]
	parent := m.parent
	m.mu.RUnlock()

	if !ok {
		if parent != nil {
			return parent.Lookup(ctx, role, key.Hint)
		}
		return nil, component.NotFound(role, key.Hint)
	}

	inst, err := m.instance(ctx, e)
	if err != nil {
		return nil, &component.LookupError{Role: role, Hint: key.Hint, Err: err}
	}
	return inst, nil
}

// LookupList resolves every visible hint of role, in Descriptors order.
func (m *Manager) LookupList(ctx context.Context, role component.Role) ([]any, error) {
	_, values, err := m.collect(ctx, role, allowAll)
	if err != nil {
		return nil, err
	}
	return values, nil
}

// LookupMap resolves every visible hint of role. A local hint shadows the
// same hint in an ancestor.
func (m *Manager) LookupMap(ctx context.Context, role component.Role) (map[string]any, error) {
	hints, values, err := m.collect(ctx, role, allowAll)
	if err != nil {
		return nil, err
	}
	return toMap(hints, values), nil
}

func allowAll(string) bool { return true }

func toMap(hints []string, values []any) map[string]any {
	out := make(map[string]any, len(hints))
	for i, h := range hints {
		out[h] = values[i]
	}
	return out
}

func (m *Manager) collect(ctx context.Context, role component.Role, allow func(string) bool) ([]string, []any, error) {
	var (
		hints  []string
		values []any
	)
	for _, d := range m.Descriptors(role) {
		if !allow(d.Hint) {
			continue
		}
		v, err := m.Lookup(ctx, role, d.Hint)
		if err != nil {
			if vanished(err, role, d.Hint) {
				// Unregistered since Descriptors was taken.
				continue
			}
			return nil, nil, err
		}
		hints = append(hints, d.Hint)
		values = append(values, v)
	}
	return hints, values, nil
}

func vanished(err error, role component.Role, hint string) bool {
	var le *component.LookupError
	return errors.As(err, &le) && le.Role == role && le.Hint == hint && le.Err == component.ErrLookupNotFound
}

// instance returns e's component, building it when needed. Singletons are
// built at most once per entry.
func (m *Manager) instance(ctx context.Context, e *entry) (any, error) {
	if inst, ok := e.cached(); ok {
		return inst, nil
	}

	if path := cyclePath(ctx, e); path != nil {
		return nil, &component.CyclicDependencyError{Path: path}
	}

	if outermost(ctx) {
		if err := m.detectCycle(e); err != nil {
			return nil, err
		}
	}

	if e.desc.Strategy == component.PerLookup {
		return m.construct(ctx, e)
	}

	e.mu.Lock()
	if e.built.Load() {
		inst := e.instance
		e.mu.Unlock()
		return inst, nil
	}

	inst, err := m.construct(ctx, e)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.instance = inst
	e.built.Store(true)
	e.mu.Unlock()

	// The key was replaced or unregistered while this instance was being
	// built; release saw nothing to dispose, so dispose it here.
	if e.retired.Load() {
		log.Debug(log.CatComponent, "disposing component built for a retired entry", "key", e.desc.Key())
		if err := dispose(ctx, e); err != nil {
			log.ErrorErr(log.CatComponent, "failed to dispose component", err, "key", e.desc.Key())
		}
	}
	return inst, nil
}

func (m *Manager) construct(ctx context.Context, e *entry) (any, error) {
	desc := e.desc
	if desc.Factory == nil {
		return nil, &component.RepositoryError{
			Key: desc.Key(),
			Op:  "construct",
			Err: fmt.Errorf("%w: no factory", component.ErrInvalidDescriptor),
		}
	}

	ctx = withFrame(ctx, e)
	ctx, span := tracing.Start(ctx, m.tracer, tracing.SpanComponentConstruct,
		attribute.String(tracing.AttrComponentRole, string(desc.Role)),
		attribute.String(tracing.AttrComponentHint, desc.Hint),
		attribute.String(tracing.AttrComponentStrategy, desc.Strategy.String()),
		attribute.String(tracing.AttrComponentImpl, desc.Implementation),
	)

	inst, err := m.build(ctx, desc)
	tracing.Finish(span, err)
	return inst, err
}

func (m *Manager) build(ctx context.Context, desc *component.Descriptor) (any, error) {
	deps, err := m.resolveDependencies(ctx, desc)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).AddEvent(tracing.EventDependenciesResolved,
		trace.WithAttributes(attribute.Int(tracing.AttrDependencyCount, deps.Len())))

	inst, err := callFactory(ctx, desc, deps)
	if err != nil {
		return nil, err
	}

	if init, ok := inst.(component.Initializable); ok {
		if err := init.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", desc.Key(), err)
		}
	}

	log.Debug(log.CatComponent, "constructed component",
		"key", desc.Key(),
		"implementation", desc.Implementation,
		"dependencies", deps.Len())

	return inst, nil
}

func callFactory(ctx context.Context, desc *component.Descriptor, deps component.Dependencies) (inst any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory for %s panicked: %v", desc.Key(), r)
		}
	}()

	inst, err = desc.Factory(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("factory for %s: %w", desc.Key(), err)
	}
	if inst == nil {
		return nil, fmt.Errorf("factory for %s returned nil", desc.Key())
	}
	return inst, nil
}

// resolveDependencies looks every dependency up through m itself, never
// directly through the parent.
func (m *Manager) resolveDependencies(ctx context.Context, desc *component.Descriptor) (component.Dependencies, error) {
	points := make([]string, len(desc.Dependencies))
	values := make([]any, len(desc.Dependencies))

	for i, dep := range desc.Dependencies {
		points[i] = dep.InjectionPoint

		var (
			v   any
			err error
		)
		switch dep.Mapping {
		case component.MappingList:
			var list []any
			_, list, err = m.collect(ctx, dep.Role, dep.Allows)
			if list == nil {
				list = []any{}
			}
			v = list
		case component.MappingMap:
			var hints []string
			var list []any
			hints, list, err = m.collect(ctx, dep.Role, dep.Allows)
			if err == nil {
				v = toMap(hints, list)
			}
		default:
			v, err = m.Lookup(ctx, dep.Role, dep.Hint)
		}
		if err != nil {
			return component.Dependencies{}, fmt.Errorf("resolve %s (%s): %w", dep.InjectionPoint, dep, err)
		}
		values[i] = v
	}

	return component.NewDependencies(points, values), nil
}
