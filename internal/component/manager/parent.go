package manager

import (
	"fmt"
	"sync"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/log"
)

// parentMu serialises SetParent across all managers so two managers cannot
// adopt each other concurrently.
var parentMu sync.Mutex

// core lets SetParent recognise a Manager embedded in another type.
type corer interface {
	core() *Manager
}

func (m *Manager) core() *Manager { return m }

func coreOf(cm component.Manager) *Manager {
	if c, ok := cm.(corer); ok {
		return c.core()
	}
	return nil
}

// SetParent makes parent the fallback for lookups that miss locally. It may
// be called once; a parent that has m as an ancestor is rejected.
func (m *Manager) SetParent(parent component.Manager) error {
	if parent == nil {
		return &component.RepositoryError{Op: "set parent", Err: fmt.Errorf("%w: nil parent", component.ErrInvalidDescriptor)}
	}

	parentMu.Lock()
	defer parentMu.Unlock()

	m.mu.RLock()
	already := m.parent != nil
	m.mu.RUnlock()
	if already {
		return &component.RepositoryError{Op: "set parent", Err: component.ErrParentAlreadySet}
	}

	seen := make(map[*Manager]bool)
	for p := parent; p != nil; p = p.Parent() {
		c := coreOf(p)
		if c == nil {
			// Foreign implementation: trust its own chain to be acyclic.
			break
		}
		if c == m {
			return &component.RepositoryError{Op: "set parent", Err: component.ErrParentCycle}
		}
		if seen[c] {
			break
		}
		seen[c] = true
	}

	m.mu.Lock()
	m.parent = parent
	m.mu.Unlock()

	log.Debug(log.CatComponent, "parent manager set")
	return nil
}

// Parent returns the parent manager, or nil.
func (m *Manager) Parent() component.Manager {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parent
}
