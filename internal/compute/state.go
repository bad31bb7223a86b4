package compute

import "fmt"

// State is one phase of the client handshake.
type State int

const (
	StateConnecting State = iota
	StateSynSent
	StateDataSent
	StateStaSent
	StatePolling
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateConnecting: "connecting",
	StateSynSent:    "syn_sent",
	StateDataSent:   "data_sent",
	StateStaSent:    "sta_sent",
	StatePolling:    "polling",
	StateDone:       "done",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
