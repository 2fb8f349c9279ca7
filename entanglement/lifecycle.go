package entanglement

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a lifecycle is asked to move to a
// state that cannot follow its current one.
var ErrIllegalTransition = errors.New("illegal lifecycle transition")

// State is a stage of a protocol lifecycle.
type State int

// Lifecycle states.
const (
	Uninitialized State = iota
	Bound
	Running
	Succeeded
	Expired
	Released
)

var stateNames = [...]string{
	"Uninitialized", "Bound", "Running", "Succeeded", "Expired", "Released",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}

	return stateNames[s]
}

// Terminal tells if the protocol has stopped, successfully or not.
func (s State) Terminal() bool {
	return s == Succeeded || s == Expired || s == Released
}

var transitions = map[State][]State{
	Uninitialized: {Bound, Expired},
	Bound:         {Running, Expired},
	Running:       {Succeeded, Expired},
	Succeeded:     {Released},
	Expired:       {Released},
}

// A Lifecycle tracks the stage of a protocol.
type Lifecycle struct {
	state State
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}

// Transition moves to the state to.
func (l *Lifecycle) Transition(to State) error {
	for _, next := range transitions[l.state] {
		if next == to {
			l.state = to
			return nil
		}
	}

	return fmt.Errorf("%s -> %s: %w", l.state, to, ErrIllegalTransition)
}
