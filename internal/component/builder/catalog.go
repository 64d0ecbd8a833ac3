// Package builder turns candidate metadata supplied by a discovery step into
// component descriptors.
package builder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zjrosen/componentry/internal/component"
)

// RoleCatalog records the roles the application knows and which roles each
// one extends.
type RoleCatalog struct {
	mu      sync.RWMutex
	extends map[component.Role][]component.Role
}

// NewRoleCatalog returns an empty catalog.
func NewRoleCatalog() *RoleCatalog {
	return &RoleCatalog{extends: make(map[component.Role][]component.Role)}
}

// Declare adds role to the catalog. Every role it extends must already be
// declared, which keeps the role graph acyclic.
func (c *RoleCatalog) Declare(role component.Role, extends ...component.Role) error {
	if role == "" {
		return fmt.Errorf("role name is empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.extends[role]; ok {
		return fmt.Errorf("role %q already declared", role)
	}
	for _, parent := range extends {
		if parent == role {
			return fmt.Errorf("role %q cannot extend itself", role)
		}
		if _, ok := c.extends[parent]; !ok {
			return fmt.Errorf("role %q extends undeclared role %q", role, parent)
		}
	}
	c.extends[role] = append([]component.Role(nil), extends...)
	return nil
}

// MustDeclare is like Declare but panics on error.
func (c *RoleCatalog) MustDeclare(role component.Role, extends ...component.Role) {
	if err := c.Declare(role, extends...); err != nil {
		panic(err)
	}
}

// Known reports whether role was declared.
func (c *RoleCatalog) Known(role component.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.extends[role]
	return ok
}

// Extends returns the roles role directly extends, in declaration order.
func (c *RoleCatalog) Extends(role component.Role) []component.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]component.Role(nil), c.extends[role]...)
}

// Roles returns every declared role, sorted.
func (c *RoleCatalog) Roles() []component.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]component.Role, 0, len(c.extends))
	for r := range c.extends {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
