package manifest

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/zjrosen/componentry/internal/component"
)

// Changes is the effect of moving from one descriptor set to another.
type Changes struct {
	Batch     string          `json:"batch,omitempty"`
	Added     []component.Key `json:"added,omitempty"`
	Replaced  []component.Key `json:"replaced,omitempty"`
	Removed   []component.Key `json:"removed,omitempty"`
	Unchanged int             `json:"unchanged"`
}

// Empty reports whether nothing changed.
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Replaced) == 0 && len(c.Removed) == 0
}

func (c *Changes) String() string {
	return fmt.Sprintf("+%d ~%d -%d =%d", len(c.Added), len(c.Replaced), len(c.Removed), c.Unchanged)
}

// Diff compares two descriptor sets by key. Added and Replaced follow the
// order of next; Removed follows the order of prev.
func Diff(prev, next []*component.Descriptor) *Changes {
	before := make(map[component.Key]*component.Descriptor, len(prev))
	for _, d := range prev {
		before[d.Key()] = d
	}

	c := &Changes{}
	seen := make(map[component.Key]bool, len(next))
	for _, d := range next {
		key := d.Key()
		seen[key] = true
		old, ok := before[key]
		switch {
		case !ok:
			c.Added = append(c.Added, key)
		case !sameDescriptor(old, d):
			c.Replaced = append(c.Replaced, key)
		default:
			c.Unchanged++
		}
	}
	for _, d := range prev {
		if !seen[d.Key()] {
			c.Removed = append(c.Removed, d.Key())
		}
	}
	return c
}

// sameDescriptor compares descriptors field by field. Factories compare by
// code pointer, so closures from the same function literal are equal.
func sameDescriptor(a, b *component.Descriptor) bool {
	if a.Implementation != b.Implementation || a.Strategy != b.Strategy {
		return false
	}
	if len(a.Dependencies) != len(b.Dependencies) {
		return false
	}
	for i := range a.Dependencies {
		da, db := a.Dependencies[i], b.Dependencies[i]
		if da.Role != db.Role || da.Hint != db.Hint || da.Mapping != db.Mapping || da.InjectionPoint != db.InjectionPoint {
			return false
		}
		if !slices.Equal(da.Hints, db.Hints) {
			return false
		}
	}
	return (a.Factory == nil) == (b.Factory == nil) &&
		(a.Factory == nil || reflect.ValueOf(a.Factory).Pointer() == reflect.ValueOf(b.Factory).Pointer())
}

// Render prints descriptors one per block, sorted by key, with their
// dependency edges indented below. The output is stable and line based.
func Render(descriptors []*component.Descriptor) string {
	sorted := slices.Clone(descriptors)
	slices.SortFunc(sorted, func(a, b *component.Descriptor) int {
		return strings.Compare(a.Key().String(), b.Key().String())
	})

	var sb strings.Builder
	for _, d := range sorted {
		fmt.Fprintf(&sb, "%s %s %s\n", d.Key(), d.Implementation, d.Strategy)
		for _, dep := range d.Dependencies {
			fmt.Fprintf(&sb, "  %s -> %s\n", dep.InjectionPoint, dep)
		}
	}
	return sb.String()
}
