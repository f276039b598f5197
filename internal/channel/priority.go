// Package channel provides the priority merge point between event sources
// and the debounce/dispatch loop. Two classes exist: Urgent events (signals,
// control, process exits) are always drained before Normal events (file
// changes), FIFO within each class.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/felixonmars/watchexec/internal/event"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("priority channel closed")

// OverflowError reports Normal events dropped under sustained pressure.
// One OverflowError covers a whole overflow episode, not each dropped event.
type OverflowError struct {
	Dropped int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("event channel overflow: dropped %d oldest file events", e.Dropped)
}

const (
	urgentBuffer = 64
	normalBuffer = 1024
)

// Priority merges events from all sources. Send never blocks indefinitely:
// a full Normal buffer drops the oldest Normal event (the debounced batch
// makes stale duplicates meaningless, and the freshest change is the one
// that matters). Urgent sends block the caller until space is available;
// a signal or a process exit must never be lost.
type Priority struct {
	urgent chan event.Event
	normal chan event.Event

	mu       sync.Mutex
	closed   bool
	dropped  int // dropped events in the current overflow episode
	onError  func(error)
	closedCh chan struct{}
}

// New creates a priority channel. onError receives one OverflowError per
// overflow episode; it may be nil.
func New(onError func(error)) *Priority {
	if onError == nil {
		onError = func(error) {}
	}
	return &Priority{
		urgent:   make(chan event.Event, urgentBuffer),
		normal:   make(chan event.Event, normalBuffer),
		onError:  onError,
		closedCh: make(chan struct{}),
	}
}

// Send routes the event into its class buffer. Safe for concurrent use.
func (p *Priority) Send(ev event.Event) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	if ev.Priority() == event.Urgent {
		select {
		case p.urgent <- ev:
			return nil
		case <-p.closedCh:
			return ErrClosed
		}
	}

	select {
	case p.normal <- ev:
		p.endOverflow()
		return nil
	default:
	}

	// Buffer full: make room by discarding the oldest Normal event.
	p.mu.Lock()
	select {
	case <-p.normal:
		p.dropped++
	default:
	}
	p.mu.Unlock()

	select {
	case p.normal <- ev:
		return nil
	case <-p.closedCh:
		return ErrClosed
	}
}

// endOverflow closes out an overflow episode, reporting it once.
func (p *Priority) endOverflow() {
	p.mu.Lock()
	dropped := p.dropped
	p.dropped = 0
	p.mu.Unlock()

	if dropped > 0 {
		p.onError(&OverflowError{Dropped: dropped})
	}
}

// Receive yields the highest-priority pending event, blocking until one is
// available or the context is cancelled. Any pending Urgent event is
// preferred over any pending Normal event.
func (p *Priority) Receive(ctx context.Context) (event.Event, error) {
	select {
	case ev := <-p.urgent:
		return ev, nil
	default:
	}

	select {
	case ev := <-p.urgent:
		return ev, nil
	case ev := <-p.normal:
		return ev, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case <-p.closedCh:
		// Drain what remains before reporting closure.
		select {
		case ev := <-p.urgent:
			return ev, nil
		default:
		}
		select {
		case ev := <-p.normal:
			return ev, nil
		default:
			return event.Event{}, ErrClosed
		}
	}
}

// Close stops intake. Pending events remain receivable until drained. An
// overflow episode still open at close time is reported on the way out.
func (p *Priority) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	dropped := p.dropped
	p.dropped = 0
	close(p.closedCh)
	p.mu.Unlock()

	if dropped > 0 {
		p.onError(&OverflowError{Dropped: dropped})
	}
}

// Pending returns the number of buffered events, for tests and diagnostics.
func (p *Priority) Pending() int {
	return len(p.urgent) + len(p.normal)
}
