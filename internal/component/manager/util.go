package manager

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"

	"github.com/zjrosen/componentry/internal/component"
)

func dispose(ctx context.Context, e *entry) (err error) {
	e.retired.Store(true)
	inst, ok := e.cached()
	if !ok || !e.disposed.CompareAndSwap(false, true) {
		return nil
	}
	d, ok := inst.(component.Disposable)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose %s: panic: %v", e.desc.Key(), r)
		}
	}()
	if err := d.Dispose(ctx); err != nil {
		return fmt.Errorf("dispose %s: %w", e.desc.Key(), err)
	}
	return nil
}

func sameInstance(a, b any) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

func removeHint(hints []string, hint string) []string {
	i := slices.Index(hints, hint)
	if i < 0 {
		return hints
	}
	return slices.Delete(slices.Clone(hints), i, i+1)
}

func sortBySeqDesc(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
}
