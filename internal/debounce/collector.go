// Package debounce coalesces bursts of prioritized events into single
// actions. Normal events accumulate until the quiet period elapses; an
// urgent event flushes the whole buffer immediately.
package debounce

import (
	"context"
	"time"

	"github.com/felixonmars/watchexec/internal/channel"
	"github.com/felixonmars/watchexec/internal/event"
)

// Collector buffers events from the priority channel and emits Actions.
type Collector struct {
	delay   time.Duration
	src     *channel.Priority
	actions chan event.Action
}

// New creates a collector reading from src with the given quiet period.
func New(src *channel.Priority, delay time.Duration) *Collector {
	return &Collector{
		delay:   delay,
		src:     src,
		actions: make(chan event.Action, 16),
	}
}

// Actions returns the dispatch channel. It is closed when Run returns.
func (c *Collector) Actions() <-chan event.Action {
	return c.actions
}

// Run drives the debounce loop until the context is cancelled or the source
// is closed and drained. A timer is armed only while the buffer is
// non-empty, so an idle collector performs no wakeups.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.actions)

	incoming := make(chan event.Event)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for {
			ev, err := c.src.Receive(ctx)
			if err != nil {
				return
			}
			select {
			case incoming <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var buf []event.Event
	var timer *time.Timer
	var timerC <-chan time.Time

	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}
	flush := func() {
		disarm()
		if len(buf) == 0 {
			return
		}
		action := event.Action{Events: buf}
		buf = nil
		select {
		case c.actions <- action:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case ev := <-incoming:
			buf = append(buf, ev)
			if ev.Priority() == event.Urgent {
				flush()
				continue
			}
			disarm()
			timer = time.NewTimer(c.delay)
			timerC = timer.C

		case <-timerC:
			timer = nil
			timerC = nil
			flush()

		case <-pumpDone:
			flush()
			return

		case <-ctx.Done():
			disarm()
			return
		}
	}
}
