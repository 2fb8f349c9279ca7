package optical

import (
	"fmt"
	"math"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// ProcessingDelay is added to the propagation time of classical messages
// when the delay is derived from the distance.
const ProcessingDelay = 10 * timing.Microsecond

// A ClassicalChannel carries messages from one node to another after a fixed
// delay. It never loses a message.
type ClassicalChannel struct {
	channelBase

	delay timing.VTimeInPS
}

// Delay returns the time a message takes to arrive.
func (c *ClassicalChannel) Delay() timing.VTimeInPS {
	return c.delay
}

// SetEnds binds the channel to its sender and registers it with the sender.
func (c *ClassicalChannel) SetEnds(sender Node, receiver string) {
	c.bind(sender, receiver)
	sender.AssignClassicalChannel(c, receiver)
}

// Transmit schedules the arrival of the message. Lower priority values are
// delivered first among messages that arrive at the same time.
func (c *ClassicalChannel) Transmit(
	msg *message.Msg,
	source Node,
	priority int,
) {
	c.endsMustBeSet()
	c.sourceMustBeSender(source)

	c.numSent++
	c.invokeHook(HookPosMsgSend, msg)

	evt := &MessageArrivalEvent{
		EventBase: timing.NewEventBaseWithPriority(
			c.timeline.Now()+c.delay, c, priority),
		Src: c.sender.Name(),
		Msg: msg,
	}
	c.timeline.Schedule(evt)

	c.timeline.Logger().For("optical").Infof(
		"%s send message %s to %s by channel %s",
		c.sender.Name(), msg, c.receiver, c.Name())
}

// Handle delivers a message to the receiving node.
func (c *ClassicalChannel) Handle(e timing.Event) error {
	evt, ok := e.(*MessageArrivalEvent)
	if !ok {
		panic(fmt.Sprintf("channel %s cannot handle %T", c.Name(), e))
	}

	entity, err := c.resolveReceiver()
	if err != nil {
		return err
	}

	receiver, ok := entity.(MessageReceiver)
	if !ok {
		return fmt.Errorf("channel %s: %s cannot receive messages: %w",
			c.Name(), c.receiver, ErrUnknownReceiver)
	}

	c.numDelivered++
	c.invokeHook(HookPosMsgDeliver, evt.Msg)

	return receiver.ReceiveMessage(evt.Src, evt.Msg)
}

// ClassicalChannelBuilder can build classical channels.
type ClassicalChannelBuilder struct {
	timeline Timeline
	distance float64
	delay    timing.VTimeInPS
	hasDelay bool
}

// MakeClassicalChannelBuilder creates a builder with default parameters.
func MakeClassicalChannelBuilder() ClassicalChannelBuilder {
	return ClassicalChannelBuilder{}
}

// WithTimeline sets the timeline the channel schedules on.
func (b ClassicalChannelBuilder) WithTimeline(
	t Timeline,
) ClassicalChannelBuilder {
	b.timeline = t
	return b
}

// WithDistance sets the fiber length in meters.
func (b ClassicalChannelBuilder) WithDistance(d float64) ClassicalChannelBuilder {
	b.distance = d
	return b
}

// WithDelay overrides the delay derived from the distance.
func (b ClassicalChannelBuilder) WithDelay(
	d timing.VTimeInPS,
) ClassicalChannelBuilder {
	b.delay = d
	b.hasDelay = true

	return b
}

// Build creates a classical channel. Its ends must be set before use.
func (b ClassicalChannelBuilder) Build(name string) *ClassicalChannel {
	if b.timeline == nil {
		panic("classical channel needs a timeline")
	}

	if b.distance < 0 || (b.hasDelay && b.delay < 0) {
		panic("distance and delay must not be negative")
	}

	c := &ClassicalChannel{
		channelBase: makeChannelBase(name, b.timeline),
	}
	c.distance = b.distance
	c.domain = c

	if b.hasDelay {
		c.delay = b.delay
	} else {
		c.delay = timing.VTimeInPS(math.Round(
			c.distance/c.lightSpeed + float64(ProcessingDelay)))
	}

	c.timeline.Logger().For("optical").Infof("create channel %s", name)

	return c
}
