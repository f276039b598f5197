//go:build unix

package watch

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/felixonmars/watchexec/internal/event"
)

func notifiedSignals() []os.Signal {
	return []os.Signal{
		unix.SIGHUP, unix.SIGINT, unix.SIGQUIT, unix.SIGTERM,
		unix.SIGUSR1, unix.SIGUSR2,
	}
}

func translateSignal(sig os.Signal) (event.Event, bool) {
	switch sig {
	case unix.SIGHUP:
		return event.FromSignal(event.SIGHUP), true
	case unix.SIGINT:
		return event.FromSignal(event.SIGINT), true
	case unix.SIGQUIT:
		return event.FromSignal(event.SIGQUIT), true
	case unix.SIGTERM:
		return event.FromSignal(event.SIGTERM), true
	case unix.SIGUSR1:
		return event.FromSignal(event.SIGUSR1), true
	case unix.SIGUSR2:
		return event.FromSignal(event.SIGUSR2), true
	}
	return event.Event{}, false
}
