package transcode

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateFetchSource, StateStageLocal, true},
		{StateStageLocal, StateEncode, true},
		{StateEncode, StateStreamResult, true},
		{StateStreamResult, StateCleanup, true},
		{StateCleanup, StateDone, true},
		{StateFetchSource, StateEncode, false},
		{StateDone, StateCleanup, false},
		{StateStreamResult, StateEncode, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, canTransition(tt.from, tt.to))
		})
	}
}

func TestCleanupReachableFromEveryWorkingState(t *testing.T) {
	for _, s := range []State{StateFetchSource, StateStageLocal, StateEncode, StateStreamResult} {
		assert.True(t, canTransition(s, StateCleanup), "cleanup unreachable from %s", s)
	}
}

func TestRun_AdvanceRejectsInvalid(t *testing.T) {
	var seen []State
	r := newRun(func(s State) { seen = append(seen, s) }, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.ErrorIs(t, r.advance(StateStreamResult), ErrInvalidTransition)
	assert.Equal(t, StateFetchSource, r.state)
	assert.NoError(t, r.advance(StateCleanup))
	assert.Equal(t, []State{StateFetchSource, StateCleanup}, seen)
}
