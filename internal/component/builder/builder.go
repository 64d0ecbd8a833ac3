package builder

import (
	"errors"
	"fmt"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
)

// Candidate is the metadata a discovery step reports for one
// implementation. Base describes the type it derives from, whose roles and
// dependencies are inherited.
type Candidate struct {
	Implementation string
	Roles          []component.Role
	Hints          []string
	Strategy       component.Strategy
	Dependencies   []component.Dependency
	Factory        component.Factory
	Base           *Candidate
}

// Builder produces descriptors for candidates against a role catalog.
type Builder struct {
	catalog *RoleCatalog
}

// New returns a Builder resolving roles against catalog.
func New(catalog *RoleCatalog) *Builder {
	return &Builder{catalog: catalog}
}

// Build returns one descriptor per (role, hint) the candidate satisfies.
//
// Roles come in declaration order, the candidate's own before its bases',
// each followed depth-first by the roles it extends; repeats keep their
// first position. Dependencies list the candidate's own before its bases'.
// A candidate without hints gets the default hint.
func (b *Builder) Build(c Candidate) ([]*component.Descriptor, error) {
	roles, err := b.roles(c)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, &component.DescriptorBuildError{Implementation: c.Implementation, Reason: "declares no role"}
	}

	deps, err := b.dependencies(c)
	if err != nil {
		return nil, err
	}

	if !c.Strategy.Valid() {
		return nil, &component.DescriptorBuildError{
			Implementation: c.Implementation,
			Reason:         fmt.Sprintf("invalid strategy %s", c.Strategy),
		}
	}

	hints := c.Hints
	if len(hints) == 0 {
		hints = []string{component.DefaultHint}
	}

	descriptors := make([]*component.Descriptor, 0, len(roles)*len(hints))
	for _, role := range roles {
		for _, hint := range hints {
			d := &component.Descriptor{
				Role:           role,
				Hint:           component.NormalizeHint(hint),
				Implementation: c.Implementation,
				Strategy:       c.Strategy,
				Dependencies:   deps,
				Factory:        c.Factory,
			}
			// Each descriptor owns its dependency slice.
			descriptors = append(descriptors, d.Clone())
		}
	}

	log.Debug(log.CatDescriptor, "built descriptors",
		"implementation", c.Implementation,
		"roles", len(roles),
		"hints", len(hints),
		"dependencies", len(deps))

	return descriptors, nil
}

// BuildAll builds every candidate and joins all failures.
func (b *Builder) BuildAll(candidates []Candidate) ([]*component.Descriptor, error) {
	var (
		out  []*component.Descriptor
		errs []error
	)
	for _, c := range candidates {
		ds, err := b.Build(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ds...)
	}
	return out, errors.Join(errs...)
}

func (b *Builder) roles(c Candidate) ([]component.Role, error) {
	var (
		out  []component.Role
		seen = make(map[component.Role]bool)
	)

	var walk func(role component.Role)
	walk = func(role component.Role) {
		if seen[role] {
			return
		}
		seen[role] = true
		out = append(out, role)
		for _, parent := range b.catalog.Extends(role) {
			walk(parent)
		}
	}

	for cur := &c; cur != nil; cur = cur.Base {
		for _, role := range cur.Roles {
			if !b.catalog.Known(role) {
				return nil, &component.DescriptorBuildError{
					Implementation: c.Implementation,
					Role:           role,
					Reason:         "unknown role",
				}
			}
			walk(role)
		}
	}
	return out, nil
}

func (b *Builder) dependencies(c Candidate) ([]component.Dependency, error) {
	var out []component.Dependency
	for cur := &c; cur != nil; cur = cur.Base {
		for _, dep := range cur.Dependencies {
			if !b.catalog.Known(dep.Role) {
				return nil, &component.DescriptorBuildError{
					Implementation: c.Implementation,
					Role:           dep.Role,
					Reason:         fmt.Sprintf("unknown dependency role at %s", injectionPoint(dep, len(out))),
				}
			}
			if !dep.Mapping.Valid() {
				return nil, &component.DescriptorBuildError{
					Implementation: c.Implementation,
					Role:           dep.Role,
					Reason:         fmt.Sprintf("invalid mapping %s", dep.Mapping),
				}
			}
			if !dep.Mapping.IsCollection() && dep.Hint == component.WildcardHint {
				return nil, &component.DescriptorBuildError{
					Implementation: c.Implementation,
					Role:           dep.Role,
					Reason:         fmt.Sprintf("wildcard hint on a single mapping at %s", injectionPoint(dep, len(out))),
				}
			}
			if dep.InjectionPoint == "" {
				dep.InjectionPoint = injectionPoint(dep, len(out))
			}
			out = append(out, dep)
		}
	}
	return out, nil
}

func injectionPoint(dep component.Dependency, index int) string {
	if dep.InjectionPoint != "" {
		return dep.InjectionPoint
	}
	return fmt.Sprintf("%s#%d", dep.Role, index)
}
