package event

import (
	"fmt"
	"strings"
)

// Signal names an OS signal in a platform-neutral way. Mapping to the native
// signal number happens in the supervise package; on platforms without native
// signals the nearest termination primitive is used instead.
type Signal string

const (
	SIGHUP  Signal = "SIGHUP"
	SIGINT  Signal = "SIGINT"
	SIGQUIT Signal = "SIGQUIT"
	SIGKILL Signal = "SIGKILL"
	SIGTERM Signal = "SIGTERM"
	SIGUSR1 Signal = "SIGUSR1"
	SIGUSR2 Signal = "SIGUSR2"
)

// ParseSignal accepts "TERM", "SIGTERM" or "sigterm" forms.
func ParseSignal(s string) (Signal, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "" {
		return "", fmt.Errorf("empty signal name")
	}
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	switch sig := Signal(name); sig {
	case SIGHUP, SIGINT, SIGQUIT, SIGKILL, SIGTERM, SIGUSR1, SIGUSR2:
		return sig, nil
	default:
		return "", fmt.Errorf("unknown signal %q", s)
	}
}

// Terminating reports whether the signal conventionally requests shutdown
// of the receiving program.
func (s Signal) Terminating() bool {
	switch s {
	case SIGINT, SIGTERM, SIGQUIT:
		return true
	}
	return false
}
