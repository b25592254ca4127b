package processor

// State is a step of the per-message state machine
type State string

const (
	StateFetched         State = "FETCHED"
	StateDropped         State = "DROPPED"
	StateRecorded        State = "RECORDED"
	StateClassifying     State = "CLASSIFYING"
	StateClassifiedOK    State = "CLASSIFIED_OK"
	StateClassifiedError State = "CLASSIFIED_ERROR"
	StateBoosted         State = "BOOSTED"
	StateRendered        State = "RENDERED"
	StatePersisted       State = "PERSISTED"
	StateAcknowledged    State = "ACKNOWLEDGED"
	StateError           State = "ERROR"
)

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	switch s {
	case StateDropped, StateRecorded, StateAcknowledged, StateError:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateFetched:         {StateDropped, StateRecorded, StateClassifying, StateError},
	StateClassifying:     {StateClassifiedOK, StateClassifiedError, StateError},
	StateClassifiedOK:    {StateBoosted, StateError},
	StateClassifiedError: {StateBoosted, StateError},
	StateBoosted:         {StateRendered, StateError},
	StateRendered:        {StatePersisted, StateError},
	StatePersisted:       {StateAcknowledged, StateError},
}

// CanTransition reports whether from -> to is a legal step
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
