package observation

import (
	"errors"
	"fmt"

	"github.com/zjrosen/componentry/internal/observation/event"
)

var (
	ErrListenerDispatch      = errors.New("listener failed during dispatch")
	ErrListenerNotComparable = errors.New("listener type is not comparable")
	ErrListenerExists        = errors.New("listener name already registered")
	ErrListenerNotFound      = errors.New("listener not found")
	ErrNilEvent              = errors.New("nil event")
)

// DispatchError reports a listener that returned an error or panicked while
// handling Event.
type DispatchError struct {
	Listener string
	Event    event.Event
	Err      error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("listener %s on %T: %v", e.Listener, e.Event, e.Err)
}

func (e *DispatchError) Is(target error) bool { return target == ErrListenerDispatch }

func (e *DispatchError) Unwrap() error { return e.Err }
