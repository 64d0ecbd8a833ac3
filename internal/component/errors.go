package component

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrLookupNotFound     = errors.New("component not found")
	ErrRoleTypeMismatch   = errors.New("component does not implement the requested type")
	ErrDescriptorBuild    = errors.New("cannot build component descriptor")
	ErrCyclicDependency   = errors.New("cyclic component dependency")
	ErrRepository         = errors.New("component repository error")
	ErrDuplicateComponent = errors.New("component already registered")
	ErrInvalidDescriptor  = errors.New("invalid component descriptor")
	ErrParentAlreadySet   = errors.New("parent manager already set")
	ErrParentCycle        = errors.New("manager cannot be its own ancestor")
)

// LookupError reports a failed lookup of Role/Hint. Err is ErrLookupNotFound
// when nothing is registered, otherwise the construction failure.
type LookupError struct {
	Role Role
	Hint string
	Err  error
}

func (e *LookupError) Error() string {
	if e.Err == ErrLookupNotFound {
		return fmt.Sprintf("component %s/%s not found", e.Role, e.Hint)
	}
	return fmt.Sprintf("lookup %s/%s: %v", e.Role, e.Hint, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NotFound builds the LookupError for an unknown key.
func NotFound(role Role, hint string) *LookupError {
	return &LookupError{Role: role, Hint: NormalizeHint(hint), Err: ErrLookupNotFound}
}

// DescriptorBuildError reports metadata the builder could not turn into
// descriptors.
type DescriptorBuildError struct {
	Implementation string
	Role           Role
	Reason         string
}

func (e *DescriptorBuildError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("build descriptors for %s: role %q: %s", e.Implementation, e.Role, e.Reason)
	}
	return fmt.Sprintf("build descriptors for %s: %s", e.Implementation, e.Reason)
}

func (e *DescriptorBuildError) Is(target error) bool { return target == ErrDescriptorBuild }

// CyclicDependencyError reports a dependency cycle. Path starts and ends
// with the same key.
type CyclicDependencyError struct {
	Path []Key
}

func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Path))
	for i, k := range e.Path {
		parts[i] = k.String()
	}
	return "cyclic dependency: " + strings.Join(parts, " -> ")
}

func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicDependency }

// RepositoryError reports a rejected registry mutation.
type RepositoryError struct {
	Key Key
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *RepositoryError) Is(target error) bool { return target == ErrRepository }

func (e *RepositoryError) Unwrap() error { return e.Err }
