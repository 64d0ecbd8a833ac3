package manifest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/componentry/internal/component"
)

// FactoryTable maps implementation names to factories. It is the static
// replacement for reflective instantiation: a program registers every
// implementation it can build, and manifests refer to them by name.
type FactoryTable struct {
	mu        sync.RWMutex
	factories map[string]component.Factory
}

// NewFactoryTable returns an empty table.
func NewFactoryTable() *FactoryTable {
	return &FactoryTable{factories: make(map[string]component.Factory)}
}

// Register adds a factory under name.
func (t *FactoryTable) Register(name string, f component.Factory) error {
	if name == "" {
		return fmt.Errorf("factory name is empty")
	}
	if f == nil {
		return fmt.Errorf("factory %s is nil", name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.factories[name]; exists {
		return fmt.Errorf("factory %s already registered", name)
	}
	t.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (t *FactoryTable) MustRegister(name string, f component.Factory) {
	if err := t.Register(name, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory registered under name.
func (t *FactoryTable) Lookup(name string) (component.Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[name]
	return f, ok
}

// Names returns the registered implementation names, sorted.
func (t *FactoryTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.factories))
	for n := range t.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
