package manager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/componentry/internal/component"
)

func TestParent_LookupDelegates(t *testing.T) {
	parent := New()
	child := New()
	require.NoError(t, child.SetParent(parent))

	f := &widgetFactory{}
	mustRegister(t, parent, newDescriptor("Store", "", f.build), nil)

	require.True(t, child.HasComponent("Store", ""))
	require.Same(t, lookupWidget(t, parent, "Store", ""), lookupWidget(t, child, "Store", ""))

	d, ok := child.Descriptor("Store", "")
	require.True(t, ok)
	require.Equal(t, component.Role("Store"), d.Role)
}

func TestParent_Shadowing(t *testing.T) {
	parent := New()
	child := New()
	require.NoError(t, child.SetParent(parent))

	f := &widgetFactory{}
	mustRegister(t, parent, newDescriptor("Sender", "default", f.build), nil)
	mustRegister(t, parent, newDescriptor("Sender", "smtp", f.build), nil)

	double := &widget{id: -1}
	mustRegister(t, child, &component.Descriptor{Role: "Sender"}, double)

	values, err := child.LookupMap(context.Background(), "Sender")
	require.NoError(t, err)
	require.Len(t, values, 2)
	require.Same(t, double, values["default"])
	require.Same(t, lookupWidget(t, parent, "Sender", "smtp"), values["smtp"])

	list, err := child.LookupList(context.Background(), "Sender")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Same(t, double, list[0], "local entries come first")
	require.Same(t, values["smtp"], list[1])

	parentDefault := lookupWidget(t, parent, "Sender", "default")
	require.NotSame(t, parentDefault, list[0])
	require.NotSame(t, parentDefault, list[1])
}

func TestParent_WritesStayLocal(t *testing.T) {
	parent := New()
	child := New()
	require.NoError(t, child.SetParent(parent))

	f := &widgetFactory{}
	mustRegister(t, parent, newDescriptor("Store", "", f.build), nil)

	require.NoError(t, child.Unregister(context.Background(), "Store", ""))
	require.True(t, parent.HasComponent("Store", ""))
	require.True(t, child.HasComponent("Store", ""))

	mustRegister(t, child, newDescriptor("Cache", "", f.build), nil)
	require.False(t, parent.HasComponent("Cache", ""))
}

func TestParent_ChainOfThree(t *testing.T) {
	root, mid, leaf := New(), New(), New()
	require.NoError(t, mid.SetParent(root))
	require.NoError(t, leaf.SetParent(mid))

	f := &widgetFactory{}
	mustRegister(t, root, newDescriptor("Listener", "a", f.build), nil)
	mustRegister(t, mid, newDescriptor("Listener", "b", f.build), nil)
	mustRegister(t, leaf, newDescriptor("Listener", "c", f.build), nil)
	mustRegister(t, mid, newDescriptor("Listener", "a", f.build), nil)

	var hints []string
	for _, d := range leaf.Descriptors("Listener") {
		hints = append(hints, d.Hint)
	}
	require.Equal(t, []string{"c", "b", "a"}, hints)

	values, err := leaf.LookupMap(context.Background(), "Listener")
	require.NoError(t, err)
	require.Same(t, lookupWidget(t, mid, "Listener", "a"), values["a"], "nearest ancestor wins")
	require.NotSame(t, lookupWidget(t, root, "Listener", "a"), values["a"])
}

func TestParent_DependenciesResolveThroughChild(t *testing.T) {
	parent := New()
	child := New()
	require.NoError(t, child.SetParent(parent))

	f := &widgetFactory{}
	mustRegister(t, parent, newDescriptor("Clock", "", f.build), nil)

	childClock := &widget{id: 1000}
	mustRegister(t, child, &component.Descriptor{Role: "Clock"}, childClock)
	mustRegister(t, child, newDescriptor("Store", "", f.build, component.Dependency{Role: "Clock", InjectionPoint: "clock"}), nil)

	store := lookupWidget(t, child, "Store", "")
	clock, err := component.Dep[*widget](store.deps, "clock")
	require.NoError(t, err)
	require.Same(t, childClock, clock)
}

func TestSetParent_Errors(t *testing.T) {
	a, b, c := New(), New(), New()

	err := a.SetParent(a)
	require.ErrorIs(t, err, component.ErrParentCycle)

	require.NoError(t, b.SetParent(a))
	require.NoError(t, c.SetParent(b))

	err = a.SetParent(c)
	require.ErrorIs(t, err, component.ErrParentCycle)
	require.ErrorIs(t, err, component.ErrRepository)

	err = b.SetParent(New())
	require.ErrorIs(t, err, component.ErrParentAlreadySet)
	require.Same(t, a, b.Parent())

	require.ErrorIs(t, New().SetParent(nil), component.ErrRepository)
	require.Nil(t, a.Parent())
}

type application struct {
	*Manager
	name string
}

func TestSetParent_EmbeddedManagerCycle(t *testing.T) {
	app := &application{Manager: New(), name: "app"}
	plugin := New()

	require.NoError(t, plugin.SetParent(app))
	require.ErrorIs(t, app.SetParent(plugin), component.ErrParentCycle)
}
