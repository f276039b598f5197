//go:build unix

package supervise

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/felixonmars/watchexec/internal/event"
)

// Capabilities reports native signal support on this platform.
func Capabilities() Caps {
	return Caps{NativeSignals: true}
}

func sysProcAttr() *syscall.SysProcAttr {
	// New process group so signals reach children as a unit
	return &syscall.SysProcAttr{Setpgid: true}
}

func nativeSignal(sig event.Signal) (syscall.Signal, error) {
	switch sig {
	case event.SIGHUP:
		return unix.SIGHUP, nil
	case event.SIGINT:
		return unix.SIGINT, nil
	case event.SIGQUIT:
		return unix.SIGQUIT, nil
	case event.SIGKILL:
		return unix.SIGKILL, nil
	case event.SIGTERM:
		return unix.SIGTERM, nil
	case event.SIGUSR1:
		return unix.SIGUSR1, nil
	case event.SIGUSR2:
		return unix.SIGUSR2, nil
	}
	return 0, fmt.Errorf("no native signal for %q", sig)
}

func signalName(sig syscall.Signal) event.Signal {
	switch sig {
	case unix.SIGHUP:
		return event.SIGHUP
	case unix.SIGINT:
		return event.SIGINT
	case unix.SIGQUIT:
		return event.SIGQUIT
	case unix.SIGKILL:
		return event.SIGKILL
	case unix.SIGTERM:
		return event.SIGTERM
	case unix.SIGUSR1:
		return event.SIGUSR1
	case unix.SIGUSR2:
		return event.SIGUSR2
	}
	return event.Signal(sig.String())
}

func signalGroup(cmd *exec.Cmd, sig event.Signal) error {
	native, err := nativeSignal(sig)
	if err != nil {
		return err
	}
	// Negative pid targets the whole process group
	return unix.Kill(-cmd.Process.Pid, native)
}

func killGroup(cmd *exec.Cmd) error {
	return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
}

func exitStatus(ps *os.ProcessState, err error) event.ExitStatus {
	status := event.ExitStatus{Code: -1}
	if ps == nil {
		return status
	}
	status.Code = ps.ExitCode()
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = signalName(ws.Signal())
	}
	return status
}
