package selection

// State is a state of the group comparison workflow.
type State int

const (
	Idle State = iota
	SelectingG1
	SelectingG2
	Complete
)

func (s State) String() string {
	switch s {
	case SelectingG1:
		return "selecting_g1"
	case SelectingG2:
		return "selecting_g2"
	case Complete:
		return "complete"
	}
	return "idle"
}

// MarshalText encodes the state name for JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Action drives the group state machine.
type Action int

const (
	StartSelecting Action = iota
	Confirm
	Reset
	Compare
)

func (a Action) String() string {
	switch a {
	case StartSelecting:
		return "start_selecting"
	case Confirm:
		return "confirm"
	case Reset:
		return "reset"
	case Compare:
		return "compare"
	}
	return "unknown"
}

// transition is the single transition function of the workflow. Guards
// (non-empty groups) are checked by the caller before Confirm.
func transition(s State, a Action) (State, bool) {
	switch a {
	case StartSelecting:
		if s == Idle {
			return SelectingG1, true
		}
	case Confirm:
		switch s {
		case SelectingG1:
			return SelectingG2, true
		case SelectingG2:
			return Complete, true
		}
	case Reset:
		switch s {
		case SelectingG1, SelectingG2, Complete:
			return Idle, true
		}
	case Compare:
		if s == Complete {
			return Complete, true
		}
	}
	return s, false
}

// activeGroup returns the group index clicks are routed to, or -1.
// Idle routes like SelectingG1.
func activeGroup(s State) int {
	switch s {
	case Idle, SelectingG1:
		return 0
	case SelectingG2:
		return 1
	}
	return -1
}
