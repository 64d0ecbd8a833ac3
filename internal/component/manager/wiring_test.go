package manager

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/componentry/internal/component"
)

func TestWiring_SingleListMap(t *testing.T) {
	m := New()
	f := &widgetFactory{}

	mustRegister(t, m, newDescriptor("Clock", "", f.build), nil)
	mustRegister(t, m, newDescriptor("Listener", "audit", f.build), nil)
	mustRegister(t, m, newDescriptor("Listener", "mail", f.build), nil)
	mustRegister(t, m, newDescriptor("Listener", "debug", f.build), nil)
	mustRegister(t, m, newDescriptor("Bus", "", f.build,
		component.Dependency{Role: "Clock", InjectionPoint: "clock"},
		component.Dependency{Role: "Listener", Mapping: component.MappingList, InjectionPoint: "all"},
		component.Dependency{Role: "Listener", Mapping: component.MappingMap, Hints: []string{"audit", "mail"}, InjectionPoint: "some"},
		component.Dependency{Role: "Plugin", Mapping: component.MappingList, InjectionPoint: "plugins"},
		component.Dependency{Role: "Plugin", Mapping: component.MappingMap, InjectionPoint: "pluginsByHint"},
	), nil)

	bus := lookupWidget(t, m, "Bus", "")

	clock, err := component.Dep[*widget](bus.deps, "clock")
	require.NoError(t, err)
	require.Same(t, lookupWidget(t, m, "Clock", ""), clock)

	all, err := component.DepList[*widget](bus.deps, "all")
	require.NoError(t, err)
	require.Len(t, all, 3)

	some, err := component.DepMap[*widget](bus.deps, "some")
	require.NoError(t, err)
	require.Len(t, some, 2)
	require.Same(t, lookupWidget(t, m, "Listener", "audit"), some["audit"])
	require.NotContains(t, some, "debug")

	plugins, err := component.DepList[*widget](bus.deps, "plugins")
	require.NoError(t, err)
	require.Empty(t, plugins)

	byHint, err := component.DepMap[*widget](bus.deps, "pluginsByHint")
	require.NoError(t, err)
	require.Empty(t, byHint)
}

func TestWiring_MissingDependency(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("Store", "", f.build, component.Dependency{Role: "Clock", InjectionPoint: "clock"}), nil)

	_, err := m.Lookup(context.Background(), "Store", "")
	require.ErrorIs(t, err, component.ErrLookupNotFound)
	require.ErrorContains(t, err, "clock")
	require.EqualValues(t, 0, f.calls.Load())
}

func TestWiring_DependencyOrderAndDuplicatePoints(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("Clock", "", f.build), nil)
	mustRegister(t, m, newDescriptor("Store", "", f.build,
		component.Dependency{Role: "Clock", InjectionPoint: "primary"},
		component.Dependency{Role: "Clock", InjectionPoint: "secondary"},
	), nil)

	store := lookupWidget(t, m, "Store", "")
	require.Equal(t, []string{"primary", "secondary"}, store.deps.Points())
	require.Same(t, store.deps.At(0), store.deps.At(1))
}

func TestCycle_DetectedBeforeAnyFactoryRuns(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("A", "", f.build, component.Dependency{Role: "B", InjectionPoint: "b"}), nil)
	mustRegister(t, m, newDescriptor("B", "", f.build, component.Dependency{Role: "C", InjectionPoint: "c"}), nil)
	mustRegister(t, m, newDescriptor("C", "", f.build, component.Dependency{Role: "A", InjectionPoint: "a"}), nil)

	_, err := m.Lookup(context.Background(), "A", "")
	require.ErrorIs(t, err, component.ErrCyclicDependency)

	var cyc *component.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	require.Equal(t, []component.Key{
		component.NewKey("A", ""),
		component.NewKey("B", ""),
		component.NewKey("C", ""),
		component.NewKey("A", ""),
	}, cyc.Path)
	require.EqualValues(t, 0, f.calls.Load())
}

func TestCycle_SelfDependency(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("A", "", f.build, component.Dependency{Role: "A", InjectionPoint: "self"}), nil)

	_, err := m.Lookup(context.Background(), "A", "")
	require.ErrorIs(t, err, component.ErrCyclicDependency)
}

func TestCycle_ThroughCollection(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("Bus", "", f.build,
		component.Dependency{Role: "Listener", Mapping: component.MappingList, InjectionPoint: "listeners"}), nil)
	mustRegister(t, m, newDescriptor("Listener", "echo", f.build,
		component.Dependency{Role: "Bus", InjectionPoint: "bus"}), nil)

	_, err := m.Lookup(context.Background(), "Listener", "echo")
	require.ErrorIs(t, err, component.ErrCyclicDependency)

	_, err = m.LookupList(context.Background(), "Listener")
	require.ErrorIs(t, err, component.ErrCyclicDependency)
	require.EqualValues(t, 0, f.calls.Load())
}

func TestCycle_CollectionAllowListBreaksCycle(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	mustRegister(t, m, newDescriptor("Bus", "", f.build,
		component.Dependency{Role: "Listener", Mapping: component.MappingList, Hints: []string{"log"}, InjectionPoint: "listeners"}), nil)
	mustRegister(t, m, newDescriptor("Listener", "log", f.build), nil)
	mustRegister(t, m, newDescriptor("Listener", "echo", f.build,
		component.Dependency{Role: "Bus", InjectionPoint: "bus"}), nil)

	lookupWidget(t, m, "Listener", "echo")
}

func TestCycle_BuiltSingletonIsLeaf(t *testing.T) {
	m := New()
	f := &widgetFactory{}
	preset := &widget{id: 500}
	mustRegister(t, m, newDescriptor("B", "", f.build, component.Dependency{Role: "A", InjectionPoint: "a"}), preset)
	mustRegister(t, m, newDescriptor("A", "", f.build, component.Dependency{Role: "B", InjectionPoint: "b"}), nil)

	a := lookupWidget(t, m, "A", "")
	b, err := component.Dep[*widget](a.deps, "b")
	require.NoError(t, err)
	require.Same(t, preset, b)
}

func TestCycle_DynamicLookupBackstop(t *testing.T) {
	m := New()
	mustRegister(t, m, newDescriptor("Sneaky", "", func(ctx context.Context, _ component.Dependencies) (any, error) {
		// Undeclared dependency on itself.
		return m.Lookup(ctx, "Sneaky", "")
	}), nil)

	_, err := m.Lookup(context.Background(), "Sneaky", "")
	require.ErrorIs(t, err, component.ErrCyclicDependency)

	var cyc *component.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	require.Equal(t, []component.Key{component.NewKey("Sneaky", ""), component.NewKey("Sneaky", "")}, cyc.Path)
}

func TestCycle_SameKeyInParentIsNotACycle(t *testing.T) {
	parent := New()
	child := New()
	require.NoError(t, child.SetParent(parent))

	f := &widgetFactory{}
	mustRegister(t, parent, newDescriptor("Store", "", f.build), nil)
	// The child's Store decorates the parent's Store under the same key.
	mustRegister(t, child, newDescriptor("Store", "", func(ctx context.Context, _ component.Dependencies) (any, error) {
		inner, err := parent.Lookup(ctx, "Store", "")
		if err != nil {
			return nil, err
		}
		return &widget{id: -inner.(*widget).id}, nil
	}), nil)

	w := lookupWidget(t, child, "Store", "")
	require.EqualValues(t, -1, w.id)
}

type lifecycleStub struct {
	name     string
	log      *eventLog
	failInit bool
	failStop bool
}

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (p *lifecycleStub) Initialize(context.Context) error {
	p.log.add("init " + p.name)
	if p.failInit {
		return errors.New("init failed")
	}
	return nil
}

func (p *lifecycleStub) Dispose(context.Context) error {
	p.log.add("dispose " + p.name)
	if p.failStop {
		return errors.New("dispose failed")
	}
	return nil
}

func stubFactory(name string, log *eventLog) component.Factory {
	return func(context.Context, component.Dependencies) (any, error) {
		return &lifecycleStub{name: name, log: log}, nil
	}
}

func TestLifecycle_InitializeAfterConstruction(t *testing.T) {
	m := New()
	log := &eventLog{}
	mustRegister(t, m, newDescriptor("Tracked", "", stubFactory("p", log)), nil)

	_, err := m.Lookup(context.Background(), "Tracked", "")
	require.NoError(t, err)
	_, err = m.Lookup(context.Background(), "Tracked", "")
	require.NoError(t, err)

	require.Equal(t, []string{"init p"}, log.all())
}

func TestLifecycle_InitializeFailure(t *testing.T) {
	m := New()
	log := &eventLog{}
	mustRegister(t, m, newDescriptor("Tracked", "", func(context.Context, component.Dependencies) (any, error) {
		return &lifecycleStub{name: "p", log: log, failInit: true}, nil
	}), nil)

	_, err := m.Lookup(context.Background(), "Tracked", "")
	require.ErrorContains(t, err, "init failed")
}

func TestLifecycle_DisposeOnUnregisterAndReplace(t *testing.T) {
	m := New()
	log := &eventLog{}
	ctx := context.Background()

	mustRegister(t, m, newDescriptor("Tracked", "", stubFactory("first", log)), nil)
	_, err := m.Lookup(ctx, "Tracked", "")
	require.NoError(t, err)

	mustRegister(t, m, newDescriptor("Tracked", "", stubFactory("second", log)), nil)
	_, err = m.Lookup(ctx, "Tracked", "")
	require.NoError(t, err)

	require.NoError(t, m.Unregister(ctx, "Tracked", ""))

	require.Equal(t, []string{"init first", "dispose first", "init second", "dispose second"}, log.all())
}

// blockingFactory builds a lifecycleStub once release is closed, signalling
// entered first.
func blockingFactory(name string, log *eventLog, entered chan<- struct{}, release <-chan struct{}) component.Factory {
	return func(context.Context, component.Dependencies) (any, error) {
		close(entered)
		<-release
		return &lifecycleStub{name: name, log: log}, nil
	}
}

func TestLifecycle_RetiredDuringConstructionIsDisposed(t *testing.T) {
	tests := []struct {
		name   string
		retire func(ctx context.Context, m *Manager, log *eventLog) error
		want   []string
	}{
		{
			name: "unregister",
			retire: func(ctx context.Context, m *Manager, _ *eventLog) error {
				return m.Unregister(ctx, "Tracked", "")
			},
			want: []string{"init slow", "dispose slow"},
		},
		{
			name: "replace",
			retire: func(ctx context.Context, m *Manager, log *eventLog) error {
				return m.Register(ctx, newDescriptor("Tracked", "", stubFactory("next", log)), nil)
			},
			want: []string{"init slow", "dispose slow"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := New()
			log := &eventLog{}
			entered := make(chan struct{})
			release := make(chan struct{})
			mustRegister(t, m, newDescriptor("Tracked", "", blockingFactory("slow", log, entered, release)), nil)

			done := make(chan error, 1)
			go func() {
				_, err := m.Lookup(ctx, "Tracked", "")
				done <- err
			}()

			<-entered
			require.NoError(t, tt.retire(ctx, m, log))
			close(release)
			require.NoError(t, <-done)

			require.Equal(t, tt.want, log.all())
		})
	}
}

func TestLifecycle_DisposedOnce(t *testing.T) {
	m := New()
	log := &eventLog{}
	ctx := context.Background()

	mustRegister(t, m, newDescriptor("Tracked", "", stubFactory("once", log)), nil)
	_, err := m.Lookup(ctx, "Tracked", "")
	require.NoError(t, err)

	m.mu.RLock()
	e := m.entries[component.NewKey("Tracked", "")]
	m.mu.RUnlock()

	require.NoError(t, m.Unregister(ctx, "Tracked", ""))
	require.NoError(t, dispose(ctx, e))
	require.Equal(t, []string{"init once", "dispose once"}, log.all())
}

func TestLifecycle_UnbuiltIsNotDisposed(t *testing.T) {
	m := New()
	log := &eventLog{}
	mustRegister(t, m, newDescriptor("Tracked", "", stubFactory("lazy", log)), nil)

	require.NoError(t, m.Unregister(context.Background(), "Tracked", ""))
	require.Empty(t, log.all())
}

func TestLifecycle_ManagerDisposeReverseOrder(t *testing.T) {
	m := New()
	log := &eventLog{}
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		mustRegister(t, m, newDescriptor(component.Role(name), "", stubFactory(name, log)), nil)
	}
	failing := &lifecycleStub{name: "d", log: log, failStop: true}
	mustRegister(t, m, &component.Descriptor{Role: "d"}, failing)

	for _, name := range []string{"c", "a", "b"} {
		_, err := m.Lookup(ctx, component.Role(name), "")
		require.NoError(t, err)
	}

	err := m.Dispose(ctx)
	require.ErrorContains(t, err, "dispose failed")

	require.Equal(t, []string{"init c", "init a", "init b", "dispose d", "dispose c", "dispose b", "dispose a"}, log.all())
	require.Empty(t, m.Keys())
	require.False(t, m.HasComponent("a", ""))
}
