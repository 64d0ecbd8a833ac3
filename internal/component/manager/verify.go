package manager

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/zjrosen/componentry/internal/component"
)

// Verify checks the local descriptors without constructing anything. Every
// single dependency must be registered here or in an ancestor and the local
// dependency graph must be acyclic. All problems are returned joined.
func (m *Manager) Verify() error {
	var errs []error
	cycles := make(map[string]bool)

	for _, key := range m.Keys() {
		m.mu.RLock()
		e := m.entries[key]
		m.mu.RUnlock()
		if e == nil {
			continue
		}

		for _, dep := range e.desc.Dependencies {
			if dep.Mapping.IsCollection() || m.HasComponent(dep.Role, dep.Hint) {
				continue
			}
			errs = append(errs, fmt.Errorf("%s: %s: %w", key, dep.InjectionPoint, component.NotFound(dep.Role, dep.Hint)))
		}

		if err := m.detectCycle(e); err != nil {
			var cyc *component.CyclicDependencyError
			if errors.As(err, &cyc) {
				id := cycleID(cyc.Path)
				if cycles[id] {
					continue
				}
				cycles[id] = true
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cycleID names a cycle independently of where the walk entered it.
func cycleID(path []component.Key) string {
	members := make([]string, 0, len(path))
	for _, k := range path[:max(len(path)-1, 0)] {
		members = append(members, k.String())
	}
	slices.Sort(members)
	return strings.Join(members, ",")
}
