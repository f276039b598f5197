// Package engine wires the priority channel, debounce collector, action
// handler and job supervisor into one runnable unit. Embedding applications
// construct an Engine, feed it events (or attach sources that do), and
// observe job state transitions through the hub.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixonmars/watchexec/config"
	"github.com/felixonmars/watchexec/internal/channel"
	"github.com/felixonmars/watchexec/internal/debounce"
	"github.com/felixonmars/watchexec/internal/event"
	"github.com/felixonmars/watchexec/internal/filter"
	"github.com/felixonmars/watchexec/internal/hub"
	"github.com/felixonmars/watchexec/internal/journal"
	"github.com/felixonmars/watchexec/internal/supervise"
)

// Engine is the handle returned to embedding applications.
type Engine struct {
	cfg       *config.Config
	jobID     string
	pc        *channel.Priority
	collector *debounce.Collector
	filterer  filter.Filterer
	hub       *hub.Hub
	journal   *journal.Journal
	diag      func(error)

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// handler-owned state; only the run loop touches it
	job          jobState
	shuttingDown bool
	lastTrigger  []event.Event

	startMu      sync.Mutex
	startErr     error
	everStarted  bool
	startedLoops bool
	curSup       *supervise.Supervisor
	exit         *event.ExitStatus
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithFilterer installs the event filterer. Defaults to keeping everything.
func WithFilterer(f filter.Filterer) Option {
	return func(e *Engine) { e.filterer = f }
}

// WithDiagnostics installs the error sink. Defaults to log.Printf.
func WithDiagnostics(fn func(error)) Option {
	return func(e *Engine) { e.diag = fn }
}

// WithJournal installs an action/exit journal.
func WithJournal(j *journal.Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// New creates an engine for the given configuration. Call Start to begin
// processing.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg,
		jobID:    uuid.NewString(),
		filterer: filter.KeepAll{},
		hub:      hub.New(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	e.diag = func(err error) { log.Printf("engine: %v", err) }
	for _, opt := range opts {
		opt(e)
	}

	e.pc = channel.New(e.diag)
	e.collector = debounce.New(e.pc, cfg.Debounce.D())
	e.job = jobState{phase: PhaseIdle}
	return e, nil
}

// Start launches the debounce and dispatch loops and triggers the first run
// of the configured command.
func (e *Engine) Start() error {
	e.startMu.Lock()
	if e.startedLoops {
		e.startMu.Unlock()
		return nil
	}
	e.startedLoops = true
	e.startMu.Unlock()

	go e.collector.Run(e.ctx)
	go e.run()

	return e.SubmitEvent(event.ControlEvent(event.ControlTrigger))
}

// SubmitEvent injects an event with the same priority rules as native
// sources. Safe for concurrent use from any goroutine.
func (e *Engine) SubmitEvent(ev event.Event) error {
	return e.pc.Send(ev)
}

// Subscribe returns a channel of job state transitions and a cancel func.
func (e *Engine) Subscribe() (<-chan hub.Notification, func()) {
	return e.hub.Subscribe()
}

// Done is closed once the engine has fully shut down.
func (e *Engine) Done() <-chan struct{} { return e.done }

// StartupFailed reports whether the job never managed a single successful
// spawn. Embedders use it to pick a non-zero exit code.
func (e *Engine) StartupFailed() bool {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return !e.everStarted && e.startErr != nil
}

// LastExit returns the most recent exit status, if any run has finished.
func (e *Engine) LastExit() *event.ExitStatus {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.exit
}

// Shutdown stops accepting new work, stops the running job with its grace
// period, and returns once the job reports Stopped or ctx expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	// Best effort: the engine may already be draining.
	_ = e.SubmitEvent(event.ControlEvent(event.ControlShutdown))

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		// Force the loop down; the grace path has been given its chance.
		e.cancel()
		e.startMu.Lock()
		sup := e.curSup
		e.startMu.Unlock()
		if sup != nil {
			_ = sup.Kill()
		}
		return ctx.Err()
	}
}

// run is the dispatch loop. All job state transitions happen here.
func (e *Engine) run() {
	defer close(e.done)
	defer e.hub.Close()
	defer e.cancel()

	for action := range e.collector.Actions() {
		e.handle(action)
		if e.shuttingDown && !e.job.busy() {
			break
		}
	}
	e.pc.Close()
}

// publish announces a phase change.
func (e *Engine) publish(from, to Phase, exit *event.ExitStatus) {
	e.hub.Publish(hub.Notification{
		JobID: e.jobID,
		From:  string(from),
		To:    string(to),
		Exit:  exit,
		At:    time.Now(),
	})
}

func (e *Engine) setPhase(to Phase, exit *event.ExitStatus) {
	from := e.job.phase
	e.job.phase = to
	e.publish(from, to, exit)
}
