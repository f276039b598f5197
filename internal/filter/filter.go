// Package filter decides which events survive into an action. The engine
// treats filterers as side-effect-free and fails open: an erroring filterer
// never loses a change notification.
package filter

import (
	"github.com/felixonmars/watchexec/internal/event"
)

// Filterer inspects an event and returns the (possibly rewritten) event and
// whether to keep it. Implementations must be safe for repeated calls.
type Filterer interface {
	Apply(ev event.Event) (event.Event, bool, error)
}

// KeepAll keeps every event unchanged.
type KeepAll struct{}

func (KeepAll) Apply(ev event.Event) (event.Event, bool, error) {
	return ev, true, nil
}

// Func adapts a function to the Filterer interface.
type Func func(ev event.Event) (event.Event, bool, error)

func (f Func) Apply(ev event.Event) (event.Event, bool, error) {
	return f(ev)
}
