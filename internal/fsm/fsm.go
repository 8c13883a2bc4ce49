// Package fsm provides a small transition-table state machine.
//
// A machine is built from a table mapping state names to event handlers.
// Each handler is an ordered list of transitions; the first transition whose
// guard passes (or that has no guard) fires. The name "*" acts as a wildcard
// for both states and event kinds.
package fsm

import (
	"fmt"

	"github.com/sokinpui/tagstream/internal/logging"
)

// Wildcard matches any state or any event kind in a transition table.
const Wildcard = "*"

// Transition describes one possible reaction to an event. All fields are
// optional: a nil Guard always passes, a nil Action does nothing, and an
// empty Target leaves the machine in its current state.
type Transition[E any] struct {
	Guard  func(E) bool
	Action func(E) error
	Target string
}

// Handlers maps an event kind to its ordered candidate transitions.
type Handlers[E any] map[string][]Transition[E]

// States is the full transition table of a machine.
type States[E any] map[string]Handlers[E]

// Machine executes a States table. Only Send changes the current state.
type Machine[E any] struct {
	current string
	states  States[E]
}

// New builds a machine. It panics if the initial state or any transition
// target is not declared in the table; the table is authored in code, so a
// bad one is a programming error.
func New[E any](initial string, states States[E]) *Machine[E] {
	if _, ok := states[initial]; !ok {
		panic(fmt.Sprintf("fsm: initial state %q not declared", initial))
	}
	for state, handlers := range states {
		for kind, transitions := range handlers {
			for _, t := range transitions {
				if t.Target == "" || t.Target == Wildcard {
					continue
				}
				if _, ok := states[t.Target]; !ok {
					panic(fmt.Sprintf("fsm: state %q event %q targets undeclared state %q", state, kind, t.Target))
				}
			}
		}
	}
	return &Machine[E]{current: initial, states: states}
}

// Current returns the machine's current state name.
func (m *Machine[E]) Current() string { return m.current }

// Send routes one event through the table. Handler lookup tries, in order:
// current state + exact kind, current state + wildcard, wildcard state +
// exact kind, wildcard state + wildcard. An event with no handler, or whose
// every candidate guard fails, is logged and ignored. At most one transition
// fires per call; its action error, if any, is returned and the state is
// left unchanged.
func (m *Machine[E]) Send(kind string, event E) error {
	transitions, ok := m.lookup(kind)
	if !ok {
		logging.Get().Debugf("fsm: ignoring event %q in state %q", kind, m.current)
		return nil
	}
	for _, t := range transitions {
		if t.Guard != nil && !t.Guard(event) {
			continue
		}
		if t.Action != nil {
			if err := t.Action(event); err != nil {
				return err
			}
		}
		if t.Target != "" {
			m.current = t.Target
		}
		return nil
	}
	logging.Get().Debugf("fsm: all guards rejected event %q in state %q", kind, m.current)
	return nil
}

func (m *Machine[E]) lookup(kind string) ([]Transition[E], bool) {
	if handlers, ok := m.states[m.current]; ok {
		if ts, ok := handlers[kind]; ok {
			return ts, true
		}
		if ts, ok := handlers[Wildcard]; ok {
			return ts, true
		}
	}
	if handlers, ok := m.states[Wildcard]; ok {
		if ts, ok := handlers[kind]; ok {
			return ts, true
		}
		if ts, ok := handlers[Wildcard]; ok {
			return ts, true
		}
	}
	return nil, false
}
