//go:build unix

package supervise

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/felixonmars/watchexec/internal/event"
)

func waitExit(t *testing.T, s *Supervisor, within time.Duration) event.ExitStatus {
	t.Helper()
	select {
	case <-s.Done():
		return s.Wait()
	case <-time.After(within):
		t.Fatalf("process did not exit within %v", within)
		return event.ExitStatus{}
	}
}

func TestStartAndCleanExit(t *testing.T) {
	var mu sync.Mutex
	var gotID string
	var gotStatus event.ExitStatus

	s, err := Start(Options{
		JobID:   "job",
		Command: []string{"sh", "-c", "exit 0"},
		OnExit: func(id string, status event.ExitStatus) {
			mu.Lock()
			gotID = id
			gotStatus = status
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := waitExit(t, s, 5*time.Second)
	if status.Code != 0 {
		t.Fatalf("expected exit code 0, got %d", status.Code)
	}
	if s.Running() {
		t.Fatal("supervisor still reports running after exit")
	}

	// OnExit runs after reaping; give it a moment.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		id, st := gotID, gotStatus
		mu.Unlock()
		if id != "" {
			if id != s.ID() {
				t.Fatalf("OnExit reported id %s, want %s", id, s.ID())
			}
			if st.Code != 0 {
				t.Fatalf("OnExit reported code %d, want 0", st.Code)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("OnExit never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNonZeroExitCode(t *testing.T) {
	s, err := Start(Options{Command: []string{"sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := waitExit(t, s, 5*time.Second)
	if status.Code != 3 {
		t.Fatalf("expected exit code 3, got %d", status.Code)
	}
}

func TestSpawnFailure(t *testing.T) {
	_, err := Start(Options{Command: []string{"/nonexistent/definitely-not-a-binary"}})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %T", err)
	}
}

func TestStopGracefully(t *testing.T) {
	s, err := Start(Options{Command: []string{"sleep", "60"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := s.Stop(event.SIGTERM, 5*time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	status := waitExit(t, s, 5*time.Second)
	if !status.Signaled || status.Signal != event.SIGTERM {
		t.Fatalf("expected SIGTERM death, got %+v", status)
	}
}

func TestStopForcefulAfterGrace(t *testing.T) {
	// Trap TERM so only the forceful path can end the process. The loop
	// restarts sleep after the group signal kills the current one.
	s, err := Start(Options{Command: []string{"sh", "-c", "trap '' TERM; while true; do sleep 0.2; done"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let the shell install its trap before asking it to stop.
	time.Sleep(200 * time.Millisecond)

	grace := 300 * time.Millisecond
	start := time.Now()
	if err := s.Stop(event.SIGTERM, grace); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	status := waitExit(t, s, 10*time.Second)
	elapsed := time.Since(start)

	if !status.Signaled || status.Signal != event.SIGKILL {
		t.Fatalf("expected SIGKILL death, got %+v", status)
	}
	if elapsed < grace {
		t.Fatalf("killed before the grace period: %v < %v", elapsed, grace)
	}
	if elapsed > grace+5*time.Second {
		t.Fatalf("forceful kill took too long: %v", elapsed)
	}
}

func TestSignalDelivery(t *testing.T) {
	// The shell exits 42 on USR1.
	s, err := Start(Options{Command: []string{"sh", "-c", "trap 'exit 42' USR1; while true; do sleep 0.1; done"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if err := s.Signal(event.SIGUSR1); err != nil {
		t.Fatalf("Signal failed: %v", err)
	}

	status := waitExit(t, s, 5*time.Second)
	if status.Code != 42 {
		t.Fatalf("expected exit 42 from the USR1 trap, got %+v", status)
	}
}

func TestSignalGroupReachesChildren(t *testing.T) {
	// The child sleep gets the signal too, not just the shell.
	s, err := Start(Options{Command: []string{"sh", "-c", "sleep 60"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if err := s.Kill(); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitExit(t, s, 5*time.Second)
}

func TestCapabilities(t *testing.T) {
	if !Capabilities().NativeSignals {
		t.Fatal("unix builds must report native signal support")
	}
}

func TestStopOnExitedProcessIsNoop(t *testing.T) {
	s, err := Start(Options{Command: []string{"sh", "-c", "exit 0"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitExit(t, s, 5*time.Second)

	if err := s.Stop(event.SIGTERM, time.Second); err != nil {
		t.Fatalf("Stop after exit should be a no-op, got %v", err)
	}
	if err := s.Signal(event.SIGTERM); err != nil {
		t.Fatalf("Signal after exit should be a no-op, got %v", err)
	}
}
