package reveal

import (
	"errors"
	"fmt"
)

// State represents the lifecycle state of a playback controller.
type State int

const (
	// StateLoading - slide is loading, nothing is shown and ticks are dropped.
	StateLoading State = iota
	// StateReady - heading shown, the clock drives reveals.
	StateReady
	// StateUnloaded - slide torn down. Terminal.
	StateUnloaded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	case StateUnloaded:
		return "UNLOADED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateUnloaded
}

// Errors for invalid state transitions.
var (
	ErrNotReady     = errors.New("rendering surface not ready")
	ErrUnloaded     = errors.New("slide is unloaded")
	ErrAlreadyReady = errors.New("slide is already ready")
)
