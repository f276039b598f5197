package event

import "time"

// Type discriminates the kinds of events flowing through the engine.
type Type string

const (
	TypeFileChange  Type = "file-change"
	TypeSignal      Type = "signal"
	TypeProcessExit Type = "process-exit"
	TypeControl     Type = "control"
)

// File change kinds
const (
	FileCreated  = "created"
	FileModified = "modified"
	FileDeleted  = "deleted"
	FileRenamed  = "renamed"
)

// Priority classes for event delivery. Urgent events (signals, control,
// process exits) are always delivered before Normal events (file changes).
type Priority int

const (
	Normal Priority = iota
	Urgent
)

// Control kinds carried by TypeControl events.
type Control string

const (
	ControlShutdown Control = "shutdown"
	ControlTrigger  Control = "manual-trigger"
)

// Event is the unit of work flowing through the priority channel. Exactly
// one of the payload groups is meaningful, selected by Type. Events are
// immutable once created.
type Event struct {
	Type Type

	// TypeFileChange
	Path     string
	FileKind string
	OldPath  string // for renames, when the backend reports it

	// TypeSignal
	Signal Signal

	// TypeProcessExit
	JobID  string
	Origin string // generation id of the supervisor that produced the exit
	Exit   *ExitStatus

	// TypeControl
	Control Control

	Timestamp time.Time
}

// ExitStatus records how a supervised process group ended.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   Signal
}

// Priority returns the delivery class for the event. Only filesystem
// changes are Normal; everything else preempts the debounce window.
func (e Event) Priority() Priority {
	if e.Type == TypeFileChange {
		return Normal
	}
	return Urgent
}

// FileChange builds a filesystem change event stamped with the current time.
func FileChange(path, kind string) Event {
	return Event{Type: TypeFileChange, Path: path, FileKind: kind, Timestamp: time.Now()}
}

// FromSignal builds an urgent event for a received OS signal.
func FromSignal(sig Signal) Event {
	return Event{Type: TypeSignal, Signal: sig, Timestamp: time.Now()}
}

// ProcessExit builds the urgent event fed back when a job's process group
// exits. origin identifies the particular run that ended, so the action
// handler can discard exits from superseded runs.
func ProcessExit(jobID, origin string, status ExitStatus) Event {
	return Event{Type: TypeProcessExit, JobID: jobID, Origin: origin, Exit: &status, Timestamp: time.Now()}
}

// ControlEvent builds an internal control event.
func ControlEvent(kind Control) Event {
	return Event{Type: TypeControl, Control: kind, Timestamp: time.Now()}
}

// Action is an ordered batch of events collected within one debounce cycle.
// It is never dispatched empty.
type Action struct {
	Events []Event
}

// Paths returns the distinct file paths touched by the action, in first-seen order.
func (a Action) Paths() []string {
	seen := make(map[string]bool, len(a.Events))
	var paths []string
	for _, ev := range a.Events {
		if ev.Type != TypeFileChange || seen[ev.Path] {
			continue
		}
		seen[ev.Path] = true
		paths = append(paths, ev.Path)
	}
	return paths
}
