package manager

import (
	"context"
	"slices"

	"github.com/zjrosen/componentry/internal/component"
)

// frame links the entries under construction on the current call path.
type frame struct {
	e    *entry
	prev *frame
}

type frameKey struct{}

func withFrame(ctx context.Context, e *entry) context.Context {
	prev, _ := ctx.Value(frameKey{}).(*frame)
	return context.WithValue(ctx, frameKey{}, &frame{e: e, prev: prev})
}

func outermost(ctx context.Context) bool {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f == nil
}

// cyclePath returns the cycle closed by e if e is already being constructed
// on this call path.
func cyclePath(ctx context.Context, e *entry) []component.Key {
	f, _ := ctx.Value(frameKey{}).(*frame)

	var path []component.Key
	for ; f != nil; f = f.prev {
		path = append(path, f.e.desc.Key())
		if f.e == e {
			slices.Reverse(path)
			return append(path, e.desc.Key())
		}
	}
	return nil
}

// detectCycle walks the local descriptor graph from root before anything is
// constructed. Built singletons and components owned by ancestors are
// leaves: they never trigger construction here.
func (m *Manager) detectCycle(root *entry) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[*entry]int)
	var path []*entry

	var visit func(e *entry) error
	visit = func(e *entry) error {
		switch state[e] {
		case visiting:
			start := slices.Index(path, e)
			keys := make([]component.Key, 0, len(path)-start+1)
			for _, p := range path[start:] {
				keys = append(keys, p.desc.Key())
			}
			return &component.CyclicDependencyError{Path: append(keys, e.desc.Key())}
		case done:
			return nil
		}

		state[e] = visiting
		path = append(path, e)
		for _, next := range m.edgesLocked(e) {
			if err := visit(next); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[e] = done
		return nil
	}

	return visit(root)
}

// edgesLocked returns the unbuilt local entries e depends on. m.mu must be
// held.
func (m *Manager) edgesLocked(e *entry) []*entry {
	var out []*entry
	add := func(n *entry) {
		if n != nil && !n.built.Load() {
			out = append(out, n)
		}
	}

	for _, dep := range e.desc.Dependencies {
		if !dep.Mapping.IsCollection() {
			add(m.entries[dep.Key()])
			continue
		}
		for _, h := range m.order[dep.Role] {
			if dep.Allows(h) {
				add(m.entries[component.Key{Role: dep.Role, Hint: h}])
			}
		}
	}
	return out
}
