// Package supervise owns the lifecycle of one spawned process group per
// supervisor. The command runs in its own process group so that stop and
// signal operations reach the whole tree, not just the direct child.
package supervise

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixonmars/watchexec/internal/event"
)

// SpawnError reports a command that could not be launched.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SignalError reports a signal that could not be delivered to the group.
type SignalError struct {
	Signal event.Signal
	Err    error
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Signal, e.Err)
}

func (e *SignalError) Unwrap() error { return e.Err }

// Caps describes what the platform supports. When NativeSignals is false,
// Signal and Stop degrade to the nearest termination primitive and callers
// can adjust their expectations instead of discovering it by failure.
type Caps struct {
	NativeSignals bool
}

// Options configures one supervised run.
type Options struct {
	JobID   string
	Command []string
	Dir     string
	Env     []string // extra KEY=VALUE entries appended to the inherited environment
	OnExit  func(id string, status event.ExitStatus)
}

// Supervisor tracks a single running process group. The handle is owned by
// exactly one job state at a time and is never reused after the process is
// reaped.
type Supervisor struct {
	id    string
	jobID string
	cmd   *exec.Cmd
	done  chan struct{}

	mu     sync.Mutex
	status *event.ExitStatus
	grace  *time.Timer
}

// Start spawns the command as a new process group and begins waiting on it.
// OnExit runs exactly once, after the process has been reaped.
func Start(opts Options) (*Supervisor, error) {
	if len(opts.Command) == 0 {
		return nil, &SpawnError{Command: "", Err: fmt.Errorf("empty command")}
	}

	cmd := exec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: opts.Command[0], Err: err}
	}

	s := &Supervisor{
		id:    uuid.NewString(),
		jobID: opts.JobID,
		cmd:   cmd,
		done:  make(chan struct{}),
	}

	go func() {
		err := cmd.Wait()
		status := exitStatus(cmd.ProcessState, err)

		s.mu.Lock()
		s.status = &status
		if s.grace != nil {
			s.grace.Stop()
			s.grace = nil
		}
		s.mu.Unlock()
		close(s.done)

		if opts.OnExit != nil {
			opts.OnExit(s.id, status)
		}
	}()

	return s, nil
}

// ID returns the generation identifier for this run. Exit events carry it so
// the action handler can discard exits from superseded runs.
func (s *Supervisor) ID() string { return s.id }

// Pid returns the process id of the direct child.
func (s *Supervisor) Pid() int { return s.cmd.Process.Pid }

// Running reports whether the process group has not yet been reaped.
func (s *Supervisor) Running() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Signal delivers sig to the whole process group.
func (s *Supervisor) Signal(sig event.Signal) error {
	if !s.Running() {
		return nil
	}
	if err := signalGroup(s.cmd, sig); err != nil {
		return &SignalError{Signal: sig, Err: err}
	}
	return nil
}

// Stop sends the configured stop signal and arms the grace timer. If the
// group has not exited when the timer fires, it is killed forcefully. The
// exit itself is observed through OnExit, not through Stop's return.
func (s *Supervisor) Stop(sig event.Signal, grace time.Duration) error {
	if !s.Running() {
		return nil
	}

	err := s.Signal(sig)
	if err != nil {
		// Delivery failed; fall through to the forceful path so the
		// process cannot outlive the stop request.
		grace = 0
	}

	s.mu.Lock()
	if s.grace == nil && s.status == nil {
		s.grace = time.AfterFunc(grace, func() {
			if s.Running() {
				_ = killGroup(s.cmd)
			}
		})
	}
	s.mu.Unlock()

	return err
}

// Kill forcefully terminates the process group without a grace period.
func (s *Supervisor) Kill() error {
	if !s.Running() {
		return nil
	}
	return killGroup(s.cmd)
}

// Wait blocks until the process group has been reaped and returns its status.
func (s *Supervisor) Wait() event.ExitStatus {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.status
}

// Done returns a channel closed once the process group has been reaped.
func (s *Supervisor) Done() <-chan struct{} { return s.done }
