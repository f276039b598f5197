package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixonmars/watchexec/internal/event"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndQueryActions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	events := []event.Event{
		event.FileChange("src/main.go", event.FileModified),
		event.FileChange("src/main.go", event.FileModified),
		event.FileChange("src/lib.go", event.FileCreated),
	}
	require.NoError(t, j.RecordAction(ctx, "job-1", events))
	require.NoError(t, j.RecordAction(ctx, "job-1", events[:1]))

	records, err := j.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	assert.Equal(t, 1, records[0].EventCount)
	assert.Equal(t, 3, records[1].EventCount)
	assert.Equal(t, []string{"src/main.go", "src/lib.go"}, records[1].Paths,
		"paths are deduplicated in first-seen order")
	assert.False(t, records[0].DispatchedAt.IsZero())
}

func TestRecordExit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	status := &event.ExitStatus{Code: -1, Signaled: true, Signal: event.SIGKILL}
	require.NoError(t, j.RecordExit(ctx, "job-1", "run-abc", status))

	var runID, signal string
	var code, signaled int
	row := j.conn.QueryRow(`SELECT run_id, exit_code, signaled, signal FROM exits`)
	require.NoError(t, row.Scan(&runID, &code, &signaled, &signal))
	assert.Equal(t, "run-abc", runID)
	assert.Equal(t, -1, code)
	assert.Equal(t, 1, signaled)
	assert.Equal(t, "SIGKILL", signal)
}

func TestRecentActionsLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.RecordAction(ctx, "job-1", []event.Event{
			event.FileChange("f", event.FileModified),
		}))
	}

	records, err := j.RecentActions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
