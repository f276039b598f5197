//go:build windows

package supervise

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/felixonmars/watchexec/internal/event"
)

// Capabilities reports that this platform has no native signal delivery;
// every signal degrades to terminating the child process.
func Capabilities() Caps {
	return Caps{NativeSignals: false}
}

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func signalGroup(cmd *exec.Cmd, sig event.Signal) error {
	// Nearest equivalent termination primitive; callers see the
	// degradation through Capabilities, not through silent failure.
	return cmd.Process.Kill()
}

func killGroup(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func exitStatus(ps *os.ProcessState, err error) event.ExitStatus {
	status := event.ExitStatus{Code: -1}
	if ps == nil {
		return status
	}
	status.Code = ps.ExitCode()
	return status
}
