package filter

import (
	"fmt"

	"github.com/justyntemme/filterhost/pkg/filterapi"
)

// State is the phase an invocation is in.
type State int

const (
	StateNone State = iota
	StateParameters
	StatePrepare
	StateStart
	StateContinue
	StateFinish
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateParameters:
		return "parameters"
	case StatePrepare:
		return "prepare"
	case StateStart:
		return "start"
	case StateContinue:
		return "continue"
	case StateFinish:
		return "finish"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Selector returns the selector sent to the plug-in on entering s.
func (s State) Selector() (filterapi.Selector, bool) {
	switch s {
	case StateParameters:
		return filterapi.SelectorParameters, true
	case StatePrepare:
		return filterapi.SelectorPrepare, true
	case StateStart:
		return filterapi.SelectorStart, true
	case StateContinue:
		return filterapi.SelectorContinue, true
	case StateFinish:
		return filterapi.SelectorFinish, true
	}
	return 0, false
}

// transitions lists the states reachable from each state. Every state may also fall back
// to None when the invocation is aborted.
var transitions = map[State][]State{
	StateNone:       {StateParameters},
	StateParameters: {StatePrepare},
	StatePrepare:    {StateStart},
	StateStart:      {StateContinue, StateFinish},
	StateContinue:   {StateContinue, StateFinish},
	StateFinish:     {StateNone},
}

func canTransition(from, to State) bool {
	if to == StateNone {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is one step of an invocation, reported to observers.
type Transition struct {
	From State
	To   State
}

func (t Transition) String() string {
	return t.From.String() + "->" + t.To.String()
}
