package optical

import (
	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/modeling"
)

type arrival struct {
	src   string
	qubit Qubit
	msg   *message.Msg
}

type recordingReceiver struct {
	modeling.EntityBase
	arrivals []arrival
}

func newRecordingReceiver(name string) *recordingReceiver {
	return &recordingReceiver{EntityBase: modeling.MakeEntityBase(name)}
}

func (r *recordingReceiver) ReceiveQubit(src string, qubit Qubit) error {
	r.arrivals = append(r.arrivals, arrival{src: src, qubit: qubit})
	return nil
}

func (r *recordingReceiver) ReceiveMessage(src string, msg *message.Msg) error {
	r.arrivals = append(r.arrivals, arrival{src: src, msg: msg})
	return nil
}

type deafEntity struct {
	modeling.EntityBase
}
