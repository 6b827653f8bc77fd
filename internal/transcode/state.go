package transcode

import (
	"errors"
	"fmt"
	"log/slog"
)

// State is a step of a single transcoding request.
type State string

const (
	// StateFetchSource opens the source object.
	StateFetchSource State = "FETCH_SOURCE"
	// StateStageLocal copies the source into scratch space.
	StateStageLocal State = "STAGE_LOCAL"
	// StateEncode runs the encoder.
	StateEncode State = "ENCODE"
	// StateStreamResult hands the rendition to the caller.
	StateStreamResult State = "STREAM_RESULT"
	// StateCleanup removes every scratch file of the request.
	StateCleanup State = "CLEANUP"
	// StateDone is terminal.
	StateDone State = "DONE"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("transcode: invalid state transition")

// validTransitions defines which state transitions are allowed.
// Cleanup is reachable from every working state.
var validTransitions = map[State][]State{
	StateFetchSource:  {StateStageLocal, StateCleanup},
	StateStageLocal:   {StateEncode, StateCleanup},
	StateEncode:       {StateStreamResult, StateCleanup},
	StateStreamResult: {StateCleanup},
	StateCleanup:      {StateDone},
	StateDone:         {},
}

// canTransition checks if a transition from one state to another is valid.
func canTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// run tracks the state of one request.
type run struct {
	state    State
	observer func(State)
	logger   *slog.Logger
}

func newRun(observer func(State), logger *slog.Logger) *run {
	r := &run{state: StateFetchSource, observer: observer, logger: logger}
	r.notify()
	return r
}

// advance moves to the next state. An invalid transition is a programming
// error; it is logged and the state is left unchanged.
func (r *run) advance(to State) error {
	if !canTransition(r.state, to) {
		err := fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, to)
		r.logger.Error("transcode state error", slog.String("error", err.Error()))
		return err
	}
	r.state = to
	r.notify()
	return nil
}

func (r *run) notify() {
	r.logger.Debug("transcode state", slog.String("state", string(r.state)))
	if r.observer != nil {
		r.observer(r.state)
	}
}
