package component

import (
	"context"

	"github.com/zjrosen/componentry/internal/observation/event"
)

// Manager resolves components by role and hint.
type Manager interface {
	// Register stores d. A non-nil instance becomes the cached component
	// immediately; otherwise it is built on first lookup.
	Register(ctx context.Context, d *Descriptor, instance any) error
	// Unregister removes a local component. Parents are never touched.
	Unregister(ctx context.Context, role Role, hint string) error

	Lookup(ctx context.Context, role Role, hint string) (any, error)
	LookupList(ctx context.Context, role Role) ([]any, error)
	LookupMap(ctx context.Context, role Role) (map[string]any, error)
	HasComponent(role Role, hint string) bool

	// Descriptor returns the descriptor visible for role/hint through the
	// chain.
	Descriptor(role Role, hint string) (*Descriptor, bool)
	// Descriptors lists every visible descriptor of role: local ones in
	// registration order, then ancestors' not shadowed locally.
	Descriptors(role Role) []*Descriptor

	Parent() Manager
}

// Notifier receives registry lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, e event.Event, source, data any) error
}

// Initializable components are initialised right after construction.
type Initializable interface {
	Initialize(ctx context.Context) error
}

// Disposable components are released when unregistered, replaced, or when
// their manager is disposed.
type Disposable interface {
	Dispose(ctx context.Context) error
}
