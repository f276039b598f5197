package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityClasses(t *testing.T) {
	assert.Equal(t, Normal, FileChange("/x", FileModified).Priority())
	assert.Equal(t, Urgent, FromSignal(SIGINT).Priority())
	assert.Equal(t, Urgent, ProcessExit("j", "r", ExitStatus{}).Priority())
	assert.Equal(t, Urgent, ControlEvent(ControlTrigger).Priority())
}

func TestEventsAreTimestamped(t *testing.T) {
	assert.False(t, FileChange("/x", FileCreated).Timestamp.IsZero())
	assert.False(t, FromSignal(SIGHUP).Timestamp.IsZero())
}

func TestParseSignal(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Signal
	}{
		{"SIGTERM", SIGTERM},
		{"TERM", SIGTERM},
		{"sigint", SIGINT},
		{"usr1", SIGUSR1},
		{" HUP ", SIGHUP},
	} {
		got, err := ParseSignal(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "SIGWAT", "9"} {
		_, err := ParseSignal(bad)
		assert.Error(t, err, bad)
	}
}

func TestTerminating(t *testing.T) {
	assert.True(t, SIGINT.Terminating())
	assert.True(t, SIGTERM.Terminating())
	assert.True(t, SIGQUIT.Terminating())
	assert.False(t, SIGHUP.Terminating())
	assert.False(t, SIGUSR1.Terminating())
	assert.False(t, SIGKILL.Terminating())
}

func TestActionPaths(t *testing.T) {
	action := Action{Events: []Event{
		FileChange("a.go", FileModified),
		FileChange("b.go", FileCreated),
		FileChange("a.go", FileModified),
		FromSignal(SIGUSR1),
	}}
	assert.Equal(t, []string{"a.go", "b.go"}, action.Paths())
}
