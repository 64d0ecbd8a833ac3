package manifest

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/component/builder"
	"github.com/zjrosen/componentry/internal/log"
)

// ErrNoFactory is returned when an unbound descriptor is constructed.
var ErrNoFactory = errors.New("no factory registered for implementation")

// Catalog declares the manifest's roles in order.
func (m *Manifest) Catalog() (*builder.RoleCatalog, error) {
	catalog := builder.NewRoleCatalog()
	for _, r := range m.Roles {
		extends := make([]component.Role, len(r.Extends))
		for i, e := range r.Extends {
			extends[i] = component.Role(e)
		}
		if err := catalog.Declare(component.Role(r.Name), extends...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	}
	return catalog, nil
}

// Build turns the manifest into descriptors, types first in document order,
// then explicit components.
//
// With a nil factories table every descriptor gets a factory that fails
// with ErrNoFactory, which is enough to register, verify and render a
// manifest without being able to construct it. With a table, an
// implementation missing from it is a build error.
func Build(m *Manifest, factories *FactoryTable) ([]*component.Descriptor, error) {
	catalog, err := m.Catalog()
	if err != nil {
		return nil, err
	}

	candidates, err := m.candidates(factories)
	if err != nil {
		return nil, err
	}

	b := builder.New(catalog)
	descriptors, buildErr := b.BuildAll(candidates)
	errs := []error{buildErr}

	for i, c := range m.Components {
		d, err := m.component(c, catalog, factories)
		if err != nil {
			errs = append(errs, fmt.Errorf("components[%d]: %w", i, err))
			continue
		}
		descriptors = append(descriptors, d)
	}

	seen := make(map[component.Key]string, len(descriptors))
	for _, d := range descriptors {
		if prev, dup := seen[d.Key()]; dup {
			errs = append(errs, &component.DescriptorBuildError{
				Implementation: d.Implementation,
				Role:           d.Role,
				Reason:         fmt.Sprintf("hint %q is already provided by %s", d.Hint, prev),
			})
			continue
		}
		seen[d.Key()] = d.Implementation
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	log.Debug(log.CatManifest, "built descriptors",
		"types", len(m.Types),
		"components", len(m.Components),
		"descriptors", len(descriptors))
	return descriptors, nil
}

func (m *Manifest) candidates(factories *FactoryTable) ([]builder.Candidate, error) {
	specs := make(map[string]TypeSpec, len(m.Types))
	for _, t := range m.Types {
		specs[t.Name] = t
	}

	built := make(map[string]*builder.Candidate, len(m.Types))
	var resolve func(name string, chain []string) (*builder.Candidate, error)
	resolve = func(name string, chain []string) (*builder.Candidate, error) {
		if c, ok := built[name]; ok {
			return c, nil
		}
		for _, n := range chain {
			if n == name {
				return nil, fmt.Errorf("%w: type %s inherits from itself through %v", ErrInvalidManifest, name, append(chain, name))
			}
		}
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown type %s", ErrInvalidManifest, name)
		}

		c, err := candidate(spec, factories)
		if err != nil {
			return nil, err
		}
		if spec.Base != "" {
			base, err := resolve(spec.Base, append(chain, name))
			if err != nil {
				return nil, err
			}
			c.Base = base
		}
		built[name] = c
		return c, nil
	}

	out := make([]builder.Candidate, 0, len(m.Types))
	var errs []error
	for _, t := range m.Types {
		c, err := resolve(t.Name, nil)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, *c)
	}
	return out, errors.Join(errs...)
}

func candidate(t TypeSpec, factories *FactoryTable) (*builder.Candidate, error) {
	impl := t.Implementation
	if impl == "" {
		impl = t.Name
	}

	strategy, err := component.ParseStrategy(t.Strategy)
	if err != nil {
		return nil, &component.DescriptorBuildError{Implementation: impl, Reason: err.Error()}
	}
	deps, err := dependencies(impl, t.Dependencies)
	if err != nil {
		return nil, err
	}
	factory, err := factoryFor(impl, factories)
	if err != nil {
		return nil, err
	}

	roles := make([]component.Role, len(t.Roles))
	for i, r := range t.Roles {
		roles[i] = component.Role(r)
	}
	return &builder.Candidate{
		Implementation: impl,
		Roles:          roles,
		Hints:          append([]string(nil), t.Hints...),
		Strategy:       strategy,
		Dependencies:   deps,
		Factory:        factory,
	}, nil
}

func (m *Manifest) component(c ComponentSpec, catalog *builder.RoleCatalog, factories *FactoryTable) (*component.Descriptor, error) {
	role := component.Role(c.Role)
	if !catalog.Known(role) {
		return nil, &component.DescriptorBuildError{Implementation: c.Implementation, Role: role, Reason: "unknown role"}
	}
	strategy, err := component.ParseStrategy(c.Strategy)
	if err != nil {
		return nil, &component.DescriptorBuildError{Implementation: c.Implementation, Role: role, Reason: err.Error()}
	}
	deps, err := dependencies(c.Implementation, c.Dependencies)
	if err != nil {
		return nil, err
	}
	for i := range deps {
		if deps[i].InjectionPoint == "" {
			deps[i].InjectionPoint = fmt.Sprintf("%s#%d", deps[i].Role, i)
		}
		if !catalog.Known(deps[i].Role) {
			return nil, &component.DescriptorBuildError{
				Implementation: c.Implementation,
				Role:           deps[i].Role,
				Reason:         fmt.Sprintf("unknown dependency role at %s", deps[i].InjectionPoint),
			}
		}
	}
	factory, err := factoryFor(c.Implementation, factories)
	if err != nil {
		return nil, err
	}

	d := &component.Descriptor{
		Role:           role,
		Hint:           c.Hint,
		Implementation: c.Implementation,
		Strategy:       strategy,
		Dependencies:   deps,
		Factory:        factory,
	}
	d = d.Clone()
	if err := d.Validate(); err != nil {
		return nil, &component.DescriptorBuildError{Implementation: c.Implementation, Role: role, Reason: err.Error()}
	}
	return d, nil
}

func dependencies(impl string, specs []DependencySpec) ([]component.Dependency, error) {
	out := make([]component.Dependency, 0, len(specs))
	for _, s := range specs {
		mapping, err := component.ParseMapping(s.Mapping)
		if err != nil {
			return nil, &component.DescriptorBuildError{
				Implementation: impl,
				Role:           component.Role(s.Role),
				Reason:         err.Error(),
			}
		}
		out = append(out, component.Dependency{
			Role:           component.Role(s.Role),
			Hint:           s.Hint,
			Mapping:        mapping,
			Hints:          append([]string(nil), s.Hints...),
			InjectionPoint: s.Field,
		})
	}
	return out, nil
}

func factoryFor(impl string, factories *FactoryTable) (component.Factory, error) {
	if factories == nil {
		return unbound(impl), nil
	}
	f, ok := factories.Lookup(impl)
	if !ok {
		return nil, &component.DescriptorBuildError{Implementation: impl, Reason: ErrNoFactory.Error()}
	}
	return f, nil
}

func unbound(impl string) component.Factory {
	return func(context.Context, component.Dependencies) (any, error) {
		return nil, fmt.Errorf("%s: %w", impl, ErrNoFactory)
	}
}
