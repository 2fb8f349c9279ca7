package optical

import (
	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// QubitArrivalEvent is the arrival of a photon at the receiving node.
type QubitArrivalEvent struct {
	*timing.EventBase

	Src   string
	Qubit Qubit
}

// MessageArrivalEvent is the arrival of a message at the receiving node.
type MessageArrivalEvent struct {
	*timing.EventBase

	Src string
	Msg *message.Msg
}
