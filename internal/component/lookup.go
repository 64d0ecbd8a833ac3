package component

import (
	"context"
	"fmt"
)

// Lookup resolves the component registered for T's role and hint.
func Lookup[T any](ctx context.Context, m Manager, hint string) (T, error) {
	return LookupRole[T](ctx, m, RoleFor[T](), hint)
}

// LookupRole resolves role/hint and asserts the result to T.
func LookupRole[T any](ctx context.Context, m Manager, role Role, hint string) (T, error) {
	var zero T
	v, err := m.Lookup(ctx, role, hint)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &LookupError{
			Role: role,
			Hint: NormalizeHint(hint),
			Err:  fmt.Errorf("%T: %w", v, ErrRoleTypeMismatch),
		}
	}
	return t, nil
}

// LookupList resolves every component of T's role as []T.
func LookupList[T any](ctx context.Context, m Manager) ([]T, error) {
	role := RoleFor[T]()
	values, err := m.LookupList(ctx, role)
	if err != nil {
		return nil, err
	}
	out, err := castList[T](values)
	if err != nil {
		return nil, &LookupError{Role: role, Hint: WildcardHint, Err: err}
	}
	return out, nil
}

// LookupMap resolves every component of T's role keyed by hint.
func LookupMap[T any](ctx context.Context, m Manager) (map[string]T, error) {
	role := RoleFor[T]()
	values, err := m.LookupMap(ctx, role)
	if err != nil {
		return nil, err
	}
	out, err := castMap[T](values)
	if err != nil {
		return nil, &LookupError{Role: role, Hint: WildcardHint, Err: err}
	}
	return out, nil
}

// MustLookup is like Lookup but panics on error. Intended for wiring code
// in main packages and tests.
func MustLookup[T any](ctx context.Context, m Manager, hint string) T {
	t, err := Lookup[T](ctx, m, hint)
	if err != nil {
		panic(err)
	}
	return t
}
