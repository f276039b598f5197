package watch

import (
	"context"
	"log"
	"os"
	"os/signal"
)

// Signals listens for OS signals and forwards them as urgent events until
// the context is cancelled. Terminating signals (SIGINT, SIGTERM) tell the
// engine to stop the job; others pass through to the process group.
func Signals(ctx context.Context, sub Submitter) {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, notifiedSignals()...)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case sig := <-ch:
				ev, ok := translateSignal(sig)
				if !ok {
					continue
				}
				if err := sub.SubmitEvent(ev); err != nil {
					log.Printf("dropping signal %v: %v", sig, err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
