// Package fsm defines the recording lifecycle transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateStopping   State = "stopping"
	StateFinalized  State = "finalized"
	StateAborted    State = "aborted"
)

const (
	EventStart    Event = "start"
	EventAcquired Event = "acquired"
	EventDenied   Event = "denied"
	EventStop     Event = "stop"
	EventFinalize Event = "finalize"
	EventFail     Event = "fail"
	EventTeardown Event = "teardown"
	EventReset    Event = "reset"
)

// Terminal reports whether a recording in state s has released its resources.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateAborted
}

func Transition(current State, event Event) (State, error) {
	if event == EventTeardown {
		switch current {
		case StateIdle, StateRequesting, StateRecording, StateStopping:
			return StateAborted, nil
		case StateFinalized, StateAborted:
			return current, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRequesting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventAcquired:
			return StateRecording, nil
		case EventDenied, EventFail:
			return StateAborted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventFinalize:
			return StateFinalized, nil
		case EventFail:
			return StateAborted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinalized, StateAborted:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
