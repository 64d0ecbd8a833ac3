// Package component defines the descriptor model of the component registry:
// roles, hints, descriptors, dependencies and the Manager contract that
// resolves them. The registry itself lives in the manager subpackage.
package component

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// DefaultHint is the hint used when none is given.
const DefaultHint = "default"

// WildcardHint selects every hint of a role in a collection dependency.
const WildcardHint = "*"

// Role identifies a service contract.
type Role string

// RoleFor derives the role key for the Go type T, usually an interface.
func RoleFor[T any]() Role {
	t := reflect.TypeFor[T]()
	if t.Name() != "" && t.PkgPath() != "" {
		return Role(t.PkgPath() + "." + t.Name())
	}
	return Role(t.String())
}

// NormalizeHint maps the empty hint to DefaultHint.
func NormalizeHint(hint string) string {
	if hint == "" {
		return DefaultHint
	}
	return hint
}

// Key is the unique registry key of a component.
type Key struct {
	Role Role
	Hint string
}

// NewKey returns a key with a normalized hint.
func NewKey(role Role, hint string) Key {
	return Key{Role: role, Hint: NormalizeHint(hint)}
}

func (k Key) String() string {
	return string(k.Role) + "/" + k.Hint
}

// Strategy controls how often a component is constructed.
type Strategy int

const (
	// Singleton builds the component once and caches it.
	Singleton Strategy = iota
	// PerLookup builds a new instance on every lookup.
	PerLookup
)

func (s Strategy) String() string {
	switch s {
	case Singleton:
		return "singleton"
	case PerLookup:
		return "per-lookup"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == Singleton || s == PerLookup
}

// ParseStrategy accepts "singleton", "per-lookup" (or "perlookup") and the
// empty string, which means Singleton.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singleton":
		return Singleton, nil
	case "per-lookup", "perlookup", "per_lookup":
		return PerLookup, nil
	default:
		return 0, fmt.Errorf("unknown instantiation strategy %q", s)
	}
}

// Mapping is the shape a dependency is injected as.
type Mapping int

const (
	// MappingSingle injects one component.
	MappingSingle Mapping = iota
	// MappingList injects every matching component as []any.
	MappingList
	// MappingMap injects every matching component as map[hint]any.
	MappingMap
)

func (m Mapping) String() string {
	switch m {
	case MappingSingle:
		return "single"
	case MappingList:
		return "list"
	case MappingMap:
		return "map"
	default:
		return fmt.Sprintf("mapping(%d)", int(m))
	}
}

// Valid reports whether m is a known mapping.
func (m Mapping) Valid() bool {
	return m >= MappingSingle && m <= MappingMap
}

// IsCollection reports whether m injects every hint of a role.
func (m Mapping) IsCollection() bool {
	return m == MappingList || m == MappingMap
}

// ParseMapping accepts "single", "list" and "map". Empty means single.
func ParseMapping(s string) (Mapping, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single":
		return MappingSingle, nil
	case "list":
		return MappingList, nil
	case "map":
		return MappingMap, nil
	default:
		return 0, fmt.Errorf("unknown dependency mapping %q", s)
	}
}

// Dependency declares one injection point of a component.
//
// For collection mappings Hint is ignored and every registered hint of Role
// is a candidate, restricted to Hints when that list is non-empty.
type Dependency struct {
	Role           Role
	Hint           string
	Mapping        Mapping
	Hints          []string
	InjectionPoint string
}

// Key returns the key a single-mapping dependency resolves.
func (d Dependency) Key() Key {
	return NewKey(d.Role, d.Hint)
}

// Allows reports whether hint passes the dependency's allow-list.
func (d Dependency) Allows(hint string) bool {
	if len(d.Hints) == 0 {
		return true
	}
	for _, h := range d.Hints {
		if h == hint || h == WildcardHint {
			return true
		}
	}
	return false
}

func (d Dependency) String() string {
	if d.Mapping.IsCollection() {
		if len(d.Hints) > 0 {
			return fmt.Sprintf("%s %s[%s]", d.Mapping, d.Role, strings.Join(d.Hints, ","))
		}
		return fmt.Sprintf("%s %s[*]", d.Mapping, d.Role)
	}
	return d.Key().String()
}

// Factory builds a component from its resolved dependencies.
type Factory func(ctx context.Context, deps Dependencies) (any, error)

// Descriptor describes one registrable implementation.
type Descriptor struct {
	Role           Role
	Hint           string
	Implementation string
	Strategy       Strategy
	Dependencies   []Dependency
	Factory        Factory
}

// Key returns the registry key of d.
func (d *Descriptor) Key() Key {
	return NewKey(d.Role, d.Hint)
}

// Clone returns a deep copy of d with normalized hints.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Hint = NormalizeHint(d.Hint)
	c.Dependencies = make([]Dependency, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		if !dep.Mapping.IsCollection() {
			dep.Hint = NormalizeHint(dep.Hint)
		}
		dep.Hints = append([]string(nil), dep.Hints...)
		c.Dependencies[i] = dep
	}
	return &c
}

// Validate checks d for structural problems. It does not look at other
// components.
func (d *Descriptor) Validate() error {
	if d.Role == "" {
		return fmt.Errorf("descriptor has no role")
	}
	if !d.Strategy.Valid() {
		return fmt.Errorf("invalid strategy %s", d.Strategy)
	}
	for i, dep := range d.Dependencies {
		if dep.Role == "" {
			return fmt.Errorf("dependency %d (%s) has no role", i, dep.InjectionPoint)
		}
		if !dep.Mapping.Valid() {
			return fmt.Errorf("dependency %d (%s) has invalid mapping %s", i, dep.InjectionPoint, dep.Mapping)
		}
		if !dep.Mapping.IsCollection() && dep.Hint == WildcardHint {
			return fmt.Errorf("dependency %d (%s) uses the wildcard hint on a single mapping", i, dep.InjectionPoint)
		}
	}
	return nil
}

func (d *Descriptor) String() string {
	impl := d.Implementation
	if impl == "" {
		impl = "?"
	}
	return fmt.Sprintf("%s (%s, %s)", d.Key(), impl, d.Strategy)
}
