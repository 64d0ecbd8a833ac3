package observation

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"github.com/zjrosen/componentry/internal/observation/event"
)

// TestManager_RegistrationProperties adds and removes random reference
// events for a few listeners, then checks that no listener holds two
// registrations where one covers the other and that Notify reaches a
// listener exactly when one of its registrations matches.
func TestManager_RegistrationProperties(t *testing.T) {
	refs := []docEvent{
		anyDoc(),
		matching("A.*"),
		matching(".*B"),
		named("AB"),
		named("AC"),
		named("BB"),
	}
	fired := []string{"AB", "AC", "BB", "CC"}

	rapid.Check(t, func(t *rapid.T) {
		m := NewManager()
		j := &journal{}
		listeners := []*recorder{newRecorder("x", j), newRecorder("y", j)}

		numOps := rapid.IntRange(1, 40).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			l := listeners[rapid.IntRange(0, len(listeners)-1).Draw(t, "listener")]
			ref := refs[rapid.IntRange(0, len(refs)-1).Draw(t, "ref")]
			if rapid.IntRange(0, 3).Draw(t, "op") == 0 {
				m.RemoveListener(ref, l)
			} else if err := m.AddListener(ref, l); err != nil {
				t.Fatalf("add: %v", err)
			}

			regs := m.listeners[event.TypeKey(ref)]
			for a := range regs {
				for b := range regs {
					if a == b || regs[a].listener != regs[b].listener {
						continue
					}
					if regs[a].ref.Matches(regs[b].ref) {
						t.Fatalf("listener %s holds %v which covers %v", listenerName(regs[a].listener), regs[a].ref, regs[b].ref)
					}
				}
			}
		}

		regs := m.listeners[event.TypeKey(anyDoc())]
		for _, name := range fired {
			e := named(name)
			want := map[string]int{}
			for _, r := range regs {
				if r.ref.Matches(e) {
					want[listenerName(r.listener)] = 1
				}
			}

			j.calls = nil
			if err := m.Notify(context.Background(), e, nil, nil); err != nil {
				t.Fatalf("notify: %v", err)
			}
			got := map[string]int{}
			for _, c := range j.all() {
				got[c]++
			}
			if len(got) != len(want) {
				t.Fatalf("notify %s: got %v, want %v", name, got, want)
			}
			for k, v := range want {
				if got[k] != v {
					t.Fatalf("notify %s: got %v, want %v", name, got, want)
				}
			}
		}
	})
}
