package observation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/componentry/internal/component"
	"github.com/zjrosen/componentry/internal/component/manager"
	"github.com/zjrosen/componentry/internal/observation/event"
)

func listenerDescriptor(hint string, l EventListener) *component.Descriptor {
	return &component.Descriptor{
		Role:           ListenerRole,
		Hint:           hint,
		Implementation: "observation.ListenerFunc",
		Strategy:       component.Singleton,
		Factory: func(context.Context, component.Dependencies) (any, error) {
			return l, nil
		},
	}
}

func journaling(name string, j *journal, events ...event.Event) *ListenerFunc {
	return NewListenerFunc(name, func(context.Context, event.Event, any, any) error {
		j.add(name)
		return nil
	}, events...)
}

func TestInitialize_PicksUpRegisteredListeners(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()
	j := &journal{}

	require.NoError(t, components.Register(ctx, listenerDescriptor("audit", journaling("audit", j, anyDoc())), nil))
	require.NoError(t, bus.Initialize(ctx, components))

	require.ElementsMatch(t, []string{"audit"}, bus.ListenerNames())
	require.NoError(t, bus.Notify(ctx, named("saved"), nil, nil))
	require.Equal(t, []string{"audit"}, j.all())
}

func TestInitialize_FollowsLaterRegistrations(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()
	j := &journal{}
	require.NoError(t, bus.Initialize(ctx, components))

	require.NoError(t, components.Register(ctx, listenerDescriptor("late", journaling("late", j, named("saved"))), nil))
	require.NoError(t, bus.Notify(ctx, named("saved"), nil, nil))
	require.Equal(t, []string{"late"}, j.all())

	// Replacing the component swaps the bus listener.
	require.NoError(t, components.Register(ctx, listenerDescriptor("late", journaling("late-v2", j, named("saved"))), nil))
	require.ElementsMatch(t, []string{"late-v2"}, bus.ListenerNames())
	require.NoError(t, bus.Notify(ctx, named("saved"), nil, nil))
	require.Equal(t, []string{"late", "late-v2"}, j.all())

	require.NoError(t, components.Unregister(ctx, ListenerRole, "late"))
	require.Empty(t, bus.ListenerNames())
	require.NoError(t, bus.Notify(ctx, named("saved"), nil, nil))
	require.Len(t, j.all(), 2)
}

func TestInitialize_IgnoresOtherRoles(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()
	require.NoError(t, bus.Initialize(ctx, components))

	require.NoError(t, components.Register(ctx, &component.Descriptor{Role: "store", Hint: "default"}, "value"))
	require.Empty(t, bus.ListenerNames())
}

func TestInitialize_WrongTypeReported(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()

	require.NoError(t, components.Register(ctx, &component.Descriptor{Role: ListenerRole, Hint: "bogus"}, "not a listener"))

	err := bus.Initialize(ctx, components)
	require.ErrorIs(t, err, component.ErrRoleTypeMismatch)
	require.Empty(t, bus.ListenerNames())
}

func TestInitialize_Twice(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()

	require.NoError(t, bus.Initialize(ctx, components))
	require.Error(t, bus.Initialize(ctx, components))
}

func TestInitialize_DescriptorEventsReachOtherListeners(t *testing.T) {
	ctx := context.Background()
	components := manager.New()
	bus := NewManager()
	require.NoError(t, bus.Initialize(ctx, components))

	var seen []event.Event
	watcher := NewListenerFunc("watcher", func(_ context.Context, e event.Event, source, data any) error {
		require.Same(t, components, source)
		require.IsType(t, &component.Descriptor{}, data)
		seen = append(seen, e)
		return nil
	}, component.DescriptorAddedEvent{Role: "store"}, component.DescriptorRemovedEvent{})
	require.NoError(t, bus.AddEventListener(watcher))

	require.NoError(t, components.Register(ctx, &component.Descriptor{Role: "store", Hint: "mem"}, "value"))
	require.NoError(t, components.Register(ctx, &component.Descriptor{Role: "cache", Hint: "mem"}, "value"))
	require.NoError(t, components.Unregister(ctx, "cache", "mem"))

	require.Equal(t, []event.Event{
		component.DescriptorAddedEvent{Role: "store", Hint: "mem"},
		component.DescriptorRemovedEvent{Role: "cache", Hint: "mem"},
	}, seen)
}
