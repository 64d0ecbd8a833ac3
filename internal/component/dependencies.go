package component

import (
	"fmt"
)

// Dependencies holds the resolved values of a descriptor's dependencies, in
// declaration order. Single mappings resolve to the component, list mappings
// to []any and map mappings to map[string]any.
type Dependencies struct {
	points []string
	values []any
}

// NewDependencies pairs injection points with resolved values.
func NewDependencies(points []string, values []any) Dependencies {
	if len(points) != len(values) {
		panic(fmt.Sprintf("component: %d injection points for %d values", len(points), len(values)))
	}
	return Dependencies{points: points, values: values}
}

// Len returns the number of resolved dependencies.
func (d Dependencies) Len() int {
	return len(d.values)
}

// At returns the i-th resolved value.
func (d Dependencies) At(i int) any {
	return d.values[i]
}

// Get returns the first value resolved for the injection point.
func (d Dependencies) Get(point string) (any, bool) {
	for i, p := range d.points {
		if p == point {
			return d.values[i], true
		}
	}
	return nil, false
}

// Points returns the injection point names in declaration order.
func (d Dependencies) Points() []string {
	return append([]string(nil), d.points...)
}

// Dep returns the value of a single-mapping dependency as T.
func Dep[T any](deps Dependencies, point string) (T, error) {
	var zero T
	v, ok := deps.Get(point)
	if !ok {
		return zero, fmt.Errorf("no dependency at injection point %q", point)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("dependency %q is %T: %w", point, v, ErrRoleTypeMismatch)
	}
	return t, nil
}

// DepList returns the value of a list-mapping dependency as []T.
func DepList[T any](deps Dependencies, point string) ([]T, error) {
	v, ok := deps.Get(point)
	if !ok {
		return nil, fmt.Errorf("no dependency at injection point %q", point)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("dependency %q is %T, not a list", point, v)
	}
	return castList[T](list)
}

// DepMap returns the value of a map-mapping dependency as map[string]T.
func DepMap[T any](deps Dependencies, point string) (map[string]T, error) {
	v, ok := deps.Get(point)
	if !ok {
		return nil, fmt.Errorf("no dependency at injection point %q", point)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dependency %q is %T, not a map", point, v)
	}
	return castMap[T](m)
}

func castList[T any](in []any) ([]T, error) {
	out := make([]T, 0, len(in))
	for i, v := range in {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("element %d is %T: %w", i, v, ErrRoleTypeMismatch)
		}
		out = append(out, t)
	}
	return out, nil
}

func castMap[T any](in map[string]any) (map[string]T, error) {
	out := make(map[string]T, len(in))
	for hint, v := range in {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("hint %q is %T: %w", hint, v, ErrRoleTypeMismatch)
		}
		out[hint] = t
	}
	return out, nil
}
