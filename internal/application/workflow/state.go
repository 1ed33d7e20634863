package workflow

// State is a position in the provisioning state machine.
type State string

// Provisioning states. Failed is absorbing and reachable from every
// non-terminal state.
const (
	StateReceived          State = "received"
	StateDomainCreated     State = "domain_created"
	StateUserCreated       State = "user_created"
	StateTemplatesUploaded State = "templates_uploaded"
	StateSeeding           State = "seeding"
	StateSeeded            State = "seeded"
	StateSkipped           State = "skipped"
	StateComplete          State = "complete"
	StateFailed            State = "failed"
)

var transitions = map[State][]State{
	StateReceived:          {StateDomainCreated},
	StateDomainCreated:     {StateUserCreated},
	StateUserCreated:       {StateTemplatesUploaded},
	StateTemplatesUploaded: {StateSeeding, StateSkipped},
	StateSeeding:           {StateSeeded},
	StateSeeded:            {StateComplete},
	StateSkipped:           {StateComplete},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool { return s == StateComplete || s == StateFailed }

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) String() string { return string(s) }
