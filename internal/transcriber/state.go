package transcriber

import "fmt"

type State string

const (
	Idle      State = "idle"
	Starting  State = "starting"
	Streaming State = "streaming"
	Stopping  State = "stopping"
	Stopped   State = "stopped"
	Error     State = "error"
)

var transitions = map[State][]State{
	Idle:      {Starting},
	Starting:  {Streaming, Error},
	Streaming: {Stopping, Error},
	Stopping:  {Stopped},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Stopped || s == Error
}

func checkTransition(from, to State) error {
	if !from.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
