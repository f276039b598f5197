package engine

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/felixonmars/watchexec/config"
	"github.com/felixonmars/watchexec/internal/event"
	"github.com/felixonmars/watchexec/internal/supervise"
)

// FilterError wraps a filterer failure. The affected event is kept (fail
// open): losing a change notification silently is worse than an extra run.
type FilterError struct {
	Err error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filterer failed, keeping event: %v", e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// handle processes one action against the current job state.
func (e *Engine) handle(action event.Action) {
	kept := e.applyFilters(action.Events)
	if len(kept) == 0 {
		return
	}

	if e.journal != nil {
		if err := e.journal.RecordAction(e.ctx, e.jobID, kept); err != nil {
			e.diag(err)
		}
	}

	var (
		trigger  bool
		stop     bool
		forward  []event.Signal
		exits    []event.Event
		shutdown bool
	)
	for _, ev := range kept {
		switch ev.Type {
		case event.TypeFileChange:
			trigger = true
		case event.TypeControl:
			switch ev.Control {
			case event.ControlTrigger:
				trigger = true
			case event.ControlShutdown:
				shutdown = true
			}
		case event.TypeSignal:
			if ev.Signal.Terminating() {
				// A quit signal stops the job and winds the engine
				// down once the job reports Stopped.
				stop = true
				shutdown = true
			} else {
				forward = append(forward, ev.Signal)
			}
		case event.TypeProcessExit:
			exits = append(exits, ev)
		}
	}

	// Raise the shutdown and stop flags before anything else so an exit
	// coalesced into the same action cannot kick off a restart.
	if shutdown {
		e.shuttingDown = true
	}
	if stop || shutdown {
		e.job.stopRequested = true
		e.job.restartPending = false
	}

	// Exits next: they describe the past and may unblock a deferred start.
	for _, ev := range exits {
		e.observeExit(ev)
	}

	// Non-terminating signals pass through to the running group.
	for _, sig := range forward {
		if e.job.phase == PhaseRunning && e.job.sup != nil {
			if err := e.job.sup.Signal(sig); err != nil {
				e.diag(err)
			}
		}
	}

	if stop || shutdown {
		e.stopJob()
		return
	}

	if trigger {
		e.job.stopRequested = false
		e.rememberTrigger(kept)
		e.applyTrigger()
	}
}

// rememberTrigger keeps the file events of the latest trigger so a deferred
// start still sees what caused it.
func (e *Engine) rememberTrigger(events []event.Event) {
	var files []event.Event
	for _, ev := range events {
		if ev.Type == event.TypeFileChange {
			files = append(files, ev)
		}
	}
	e.lastTrigger = files
}

// applyFilters runs the filterer over the action's events, failing open.
func (e *Engine) applyFilters(events []event.Event) []event.Event {
	kept := make([]event.Event, 0, len(events))
	for _, ev := range events {
		rewritten, keep, err := e.filterer.Apply(ev)
		if err != nil {
			e.diag(&FilterError{Err: err})
			kept = append(kept, ev)
			continue
		}
		if keep {
			kept = append(kept, rewritten)
		}
	}
	return kept
}

// applyTrigger implements the busy-policy decision table for a trigger.
func (e *Engine) applyTrigger() {
	switch {
	case e.job.startable():
		e.startJob()

	case e.job.phase == PhaseRunning:
		switch e.cfg.Policy {
		case config.PolicyRestart:
			e.job.restartPending = true
			e.stopJob()
		case config.PolicySignal:
			if e.job.sup != nil {
				if err := e.job.sup.Signal(e.cfg.BusySignal); err != nil {
					e.diag(err)
				}
			}
		default: // queue
			e.job.restartPending = true
		}

	default: // starting or stopping: collapse into one pending restart
		e.job.restartPending = true
	}
}

// startJob spawns a new process group. The phase gate in applyTrigger is
// what enforces the one-start-in-flight invariant: startJob is only ever
// reached from a startable phase, on the handler goroutine.
func (e *Engine) startJob() {
	e.setPhase(PhaseStarting, nil)

	sup, err := supervise.Start(supervise.Options{
		JobID:   e.jobID,
		Command: e.cfg.Command,
		Dir:     e.cfg.WorkDir,
		Env:     append(append([]string(nil), e.cfg.Env...), e.triggerEnv()...),
		OnExit: func(origin string, status event.ExitStatus) {
			if err := e.pc.Send(event.ProcessExit(e.jobID, origin, status)); err != nil {
				e.diag(fmt.Errorf("report exit of run %s: %w", origin, err))
			}
		},
	})
	if err != nil {
		e.diag(err)
		e.recordSpawn(nil, err)
		e.setPhase(PhaseStopped, nil)
		return
	}

	e.recordSpawn(sup, nil)
	e.job.sup = sup
	e.job.startedAt = time.Now()
	e.setPhase(PhaseRunning, nil)
}

// stopJob requests termination of the current run, if any. It does not
// decide whether a restart follows; that is the caller's flag to set.
func (e *Engine) stopJob() {
	switch e.job.phase {
	case PhaseRunning:
		if err := e.job.sup.Stop(e.cfg.StopSignal, e.cfg.Grace.D()); err != nil {
			e.diag(err)
		}
		e.setPhase(PhaseStopping, nil)
	case PhaseStopping, PhaseStarting:
		// Already on the way down, or the start will observe
		// stopRequested when its exit arrives.
	default:
		// Nothing running; idle and stopped are already terminal-safe.
	}
}

// observeExit handles a ProcessExit event fed back through the channel.
func (e *Engine) observeExit(ev event.Event) {
	if e.job.sup == nil || ev.Origin != e.job.sup.ID() {
		// Exit of a superseded run; its transition already happened.
		return
	}

	e.job.sup = nil
	e.job.lastExit = ev.Exit
	e.recordExit(ev.Exit)
	e.setPhase(PhaseStopped, ev.Exit)

	if e.journal != nil {
		if err := e.journal.RecordExit(e.ctx, e.jobID, ev.Origin, ev.Exit); err != nil {
			e.diag(err)
		}
	}

	if e.shuttingDown {
		return
	}
	if e.job.restartPending && !e.job.stopRequested {
		e.job.restartPending = false
		e.startJob()
	}
}

func (e *Engine) recordSpawn(sup *supervise.Supervisor, err error) {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if err != nil {
		e.startErr = err
		e.curSup = nil
		return
	}
	e.everStarted = true
	e.curSup = sup
}

func (e *Engine) recordExit(status *event.ExitStatus) {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	e.exit = status
	e.curSup = nil
}

// triggerEnv summarises the triggering action for the spawned command.
func (e *Engine) triggerEnv() []string {
	if len(e.lastTrigger) == 0 {
		return nil
	}
	byKind := map[string][]string{}
	for _, ev := range e.lastTrigger {
		if ev.Type != event.TypeFileChange {
			continue
		}
		byKind[ev.FileKind] = append(byKind[ev.FileKind], ev.Path)
	}
	var env []string
	for kind, name := range map[string]string{
		event.FileCreated:  "WATCHEXEC_CREATED_PATH",
		event.FileModified: "WATCHEXEC_WRITTEN_PATH",
		event.FileDeleted:  "WATCHEXEC_REMOVED_PATH",
		event.FileRenamed:  "WATCHEXEC_RENAMED_PATH",
	} {
		if paths := byKind[kind]; len(paths) > 0 {
			env = append(env, name+"="+strings.Join(paths, string(os.PathListSeparator)))
		}
	}
	return env
}
