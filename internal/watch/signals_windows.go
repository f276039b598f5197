//go:build windows

package watch

import (
	"os"

	"github.com/felixonmars/watchexec/internal/event"
)

func notifiedSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func translateSignal(sig os.Signal) (event.Event, bool) {
	if sig == os.Interrupt {
		return event.FromSignal(event.SIGINT), true
	}
	return event.Event{}, false
}
