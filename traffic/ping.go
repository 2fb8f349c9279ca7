package traffic

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// Kinds of ping messages.
const (
	MsgKindPing message.MsgType = "PING"
	MsgKindPong message.MsgType = "PONG"
)

const (
	fieldOrigin = "origin"
	fieldTarget = "target"
	fieldSentAt = "sent_at"
)

// ErrNotAddressable is returned when a message is addressed directly to a
// ping app instead of arriving through the stack.
var ErrNotAddressable = errors.New("ping app only receives through the stack")

// PingApp is the top layer of a node stack. It sends pings to other nodes,
// answers the pings it receives and relays those addressed further.
type PingApp struct {
	protocol.StackBase

	scheduler timing.EventScheduler

	numSent     int
	numAnswered int
	numRelayed  int
	rtts        []timing.VTimeInPS
}

// NewPingApp creates a ping app for owner.
func NewPingApp(
	owner protocol.Owner,
	name string,
	scheduler timing.EventScheduler,
) *PingApp {
	return &PingApp{
		StackBase: protocol.MakeStackBase(name, owner),
		scheduler: scheduler,
	}
}

// NumSent returns the number of pings sent.
func (a *PingApp) NumSent() int {
	return a.numSent
}

// NumAnswered returns the number of pings answered.
func (a *PingApp) NumAnswered() int {
	return a.numAnswered
}

// NumRelayed returns the number of messages relayed toward another node.
func (a *PingApp) NumRelayed() int {
	return a.numRelayed
}

// RoundTripTimes returns the round trip time of every pong received.
func (a *PingApp) RoundTripTimes() []timing.VTimeInPS {
	return a.rtts
}

// Ping sends a ping to dst now.
func (a *PingApp) Ping(dst string) error {
	msg := message.MsgBuilder{}.
		WithKind(MsgKindPing).
		WithReceiver(a.Name()).
		WithProtocolType("Ping").
		WithPayload(message.Body{
			fieldOrigin: a.Owner().Name(),
			fieldTarget: dst,
			fieldSentAt: int64(a.scheduler.Now()),
		}).
		Build()

	a.numSent++

	return a.PushDown(dst, msg)
}

// SchedulePings schedules count pings to dst, the first at t and the next
// ones every interval.
func (a *PingApp) SchedulePings(
	dst string,
	t timing.VTimeInPS,
	count int,
	interval timing.VTimeInPS,
) {
	for i := 0; i < count; i++ {
		a.scheduler.Schedule(&pingEvent{
			EventBase: timing.NewEventBase(t+timing.VTimeInPS(i)*interval, a),
			dst:       dst,
		})
	}
}

type pingEvent struct {
	*timing.EventBase
	dst string
}

// Handle sends a scheduled ping.
func (a *PingApp) Handle(e timing.Event) error {
	evt, ok := e.(*pingEvent)
	if !ok {
		panic(fmt.Sprintf("ping app %s cannot handle %T", a.Name(), e))
	}

	return a.Ping(evt.dst)
}

// Push sends msg toward dst through the layers below.
func (a *PingApp) Push(dst string, msg *message.Msg, nextHop string) error {
	if dst == "" {
		dst = nextHop
	}

	return a.PushDown(dst, msg)
}

// Pop handles a ping or a pong that arrived through the stack.
func (a *PingApp) Pop(src string, msg *message.Msg) error {
	body, ok := msg.Body()
	if !ok {
		return fmt.Errorf("%s: %s has no body", a.Name(), msg)
	}

	target, _ := body[fieldTarget].(string)
	if target != a.Owner().Name() {
		a.numRelayed++
		return a.PushDown(target, msg)
	}

	switch msg.Kind {
	case MsgKindPing:
		return a.answer(body)
	case MsgKindPong:
		sentAt, _ := body[fieldSentAt].(int64)
		a.rtts = append(a.rtts, a.scheduler.Now()-timing.VTimeInPS(sentAt))

		return nil
	default:
		return fmt.Errorf("%s: unexpected message %s from %s", a.Name(), msg, src)
	}
}

func (a *PingApp) answer(ping message.Body) error {
	origin, _ := ping[fieldOrigin].(string)

	pong := message.MsgBuilder{}.
		WithKind(MsgKindPong).
		WithReceiver(a.Name()).
		WithProtocolType("Ping").
		WithPayload(message.Body{
			fieldOrigin: a.Owner().Name(),
			fieldTarget: origin,
			fieldSentAt: ping[fieldSentAt],
		}).
		Build()

	a.numAnswered++

	return a.PushDown(origin, pong)
}

// ReceivedMessage always fails.
func (a *PingApp) ReceivedMessage(src string, _ *message.Msg) error {
	return fmt.Errorf("%s: from %s: %w", a.Name(), src, ErrNotAddressable)
}
