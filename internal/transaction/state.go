package transaction

// State is the lifecycle position of a transaction. States only move
// forward, with the single exception of the lock-retry bounce from Running
// back to Ready.
type State int

const (
	StateNew State = iota
	StateWaitingForAuth
	StateReady
	StateRunning
	StateFinished
	StateError
)

var stateNames = []string{
	"new",
	"waiting-for-auth",
	"ready",
	"running",
	"finished",
	"error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateError
}

// canMove reports whether from -> to is a legal forward transition.
func canMove(from, to State) bool {
	if from.Terminal() || to <= from {
		return false
	}
	if to == StateError {
		return from < StateRunning
	}
	return true
}
