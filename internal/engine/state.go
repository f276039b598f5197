package engine

import (
	"time"

	"github.com/felixonmars/watchexec/internal/event"
	"github.com/felixonmars/watchexec/internal/supervise"
)

// Phase is the lifecycle position of the supervised job.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped"
)

// jobState is owned exclusively by the action handler loop; every transition
// happens on that goroutine, which is what serializes them. The supervisor
// handle lives here and nowhere else, and is discarded once its exit event
// has been observed.
type jobState struct {
	phase     Phase
	sup       *supervise.Supervisor
	startedAt time.Time
	lastExit  *event.ExitStatus

	// restartPending collapses any number of triggers observed while the
	// job is busy into a single deferred start.
	restartPending bool

	// stopRequested suppresses the deferred start after an explicit stop;
	// a later trigger clears it.
	stopRequested bool
}

func (j *jobState) busy() bool {
	return j.phase == PhaseStarting || j.phase == PhaseRunning || j.phase == PhaseStopping
}

func (j *jobState) startable() bool {
	return j.phase == PhaseIdle || j.phase == PhaseStopped
}
