package session

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event is not accepted in the
// session's current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// State is a step of the configuration session.
type State int

const (
	CollectingNetwork State = iota
	ValidatingNetwork
	CollectingDisk
	ValidatingDisk
	AwaitingConfirmation
	Complete
)

var stateNames = map[State]string{
	CollectingNetwork:    "collecting_network",
	ValidatingNetwork:    "validating_network",
	CollectingDisk:       "collecting_disk",
	ValidatingDisk:       "validating_disk",
	AwaitingConfirmation: "awaiting_confirmation",
	Complete:             "complete",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name so it reads well in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a state change.
type Event int

const (
	// SubmitNetwork delivers a network candidate from the operator.
	SubmitNetwork Event = iota
	// SkipValidation is the operator turning address validation off.
	SkipValidation
	// SubmitDisk delivers a disk layout candidate.
	SubmitDisk
	// Verdict is the outcome of a validation step.
	Verdict
	// Confirm is the operator's answer to the final review.
	Confirm
)

var eventNames = map[Event]string{
	SubmitNetwork:  "submit_network",
	SkipValidation: "skip_validation",
	SubmitDisk:     "submit_disk",
	Verdict:        "verdict",
	Confirm:        "confirm",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Next is the session's transition function. ok carries the validation
// verdict for Verdict and the operator's answer for Confirm; other events
// ignore it.
func Next(from State, ev Event, ok bool) (State, error) {
	switch from {
	case CollectingNetwork:
		switch ev {
		case SubmitNetwork:
			return ValidatingNetwork, nil
		case SkipValidation:
			return CollectingDisk, nil
		}
	case ValidatingNetwork:
		if ev == Verdict {
			if ok {
				return CollectingDisk, nil
			}
			return CollectingNetwork, nil
		}
	case CollectingDisk:
		if ev == SubmitDisk {
			return ValidatingDisk, nil
		}
	case ValidatingDisk:
		if ev == Verdict {
			if ok {
				return AwaitingConfirmation, nil
			}
			return CollectingDisk, nil
		}
	case AwaitingConfirmation:
		if ev == Confirm {
			if ok {
				return Complete, nil
			}
			return CollectingNetwork, nil
		}
	}
	return from, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, from)
}
