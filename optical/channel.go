// Package optical models the fibers that connect repeater nodes. A
// QuantumChannel carries photons and may lose them. A ClassicalChannel
// carries control messages and never loses them.
package optical

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/modeling"
	"github.com/sarchlab/qnetsim/sim/simulation"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// SpeedOfLight is the speed of light in fiber, in meters per picosecond.
const SpeedOfLight = 2e-4

// ErrUnknownReceiver is returned when an arrival is addressed to a name that
// does not resolve to an entity able to receive it.
var ErrUnknownReceiver = errors.New("unknown receiver")

// Hook positions of channel activity. The hook item is the qubit or the
// message.
var (
	HookPosQubitSend    = &hooking.HookPos{Name: "QubitSend"}
	HookPosQubitLost    = &hooking.HookPos{Name: "QubitLost"}
	HookPosQubitDeliver = &hooking.HookPos{Name: "QubitDeliver"}
	HookPosMsgSend      = &hooking.HookPos{Name: "MsgSend"}
	HookPosMsgDeliver   = &hooking.HookPos{Name: "MsgDeliver"}
)

// A Timeline is the part of the simulation that channels use.
type Timeline interface {
	timing.EventScheduler

	GetEntityByName(name string) modeling.Entity
	QuantumManager() simulation.QuantumManager
	Logger() *logging.Sink
}

// A Node owns the sending end of channels.
type Node interface {
	Name() string
	AssignQuantumChannel(qc *QuantumChannel, receiver string)
	AssignClassicalChannel(cc *ClassicalChannel, receiver string)
	Generator() *rand.Rand
}

// A QubitReceiver is an entity that photons can arrive at.
type QubitReceiver interface {
	ReceiveQubit(src string, qubit Qubit) error
}

// A MessageReceiver is an entity that classical messages can arrive at.
type MessageReceiver interface {
	ReceiveMessage(src string, msg *message.Msg) error
}

// Detail is the hook detail of channel activity.
type Detail struct {
	Src, Dst string
}

// channelBase holds the state that all optical channels share.
type channelBase struct {
	modeling.EntityBase
	*hooking.HookableBase

	domain               hooking.NamedHookable
	timeline             Timeline
	sender               Node
	receiver             string
	attenuation          float64
	distance             float64
	polarizationFidelity float64
	lightSpeed           float64

	numSent      uint64
	numDelivered uint64
}

func makeChannelBase(name string, timeline Timeline) channelBase {
	return channelBase{
		EntityBase:   modeling.MakeEntityBase(name),
		HookableBase: hooking.NewHookableBase(),
		timeline:     timeline,
		lightSpeed:   SpeedOfLight,
	}
}

// Sender returns the node at the sending end, or nil if unbound.
func (c *channelBase) Sender() Node {
	return c.sender
}

// Receiver returns the name of the node at the receiving end.
func (c *channelBase) Receiver() string {
	return c.receiver
}

// Attenuation returns the attenuation of the fiber in dB/m.
func (c *channelBase) Attenuation() float64 {
	return c.attenuation
}

// Distance returns the length of the fiber in meters.
func (c *channelBase) Distance() float64 {
	return c.distance
}

// PolarizationFidelity returns the probability that a polarization-encoded
// photon is not disturbed.
func (c *channelBase) PolarizationFidelity() float64 {
	return c.polarizationFidelity
}

// LightSpeed returns the speed of light in the fiber in m/ps.
func (c *channelBase) LightSpeed() float64 {
	return c.lightSpeed
}

// NumSent returns the number of accepted transmissions.
func (c *channelBase) NumSent() uint64 {
	return c.numSent
}

// NumDelivered returns the number of arrivals handed to the receiver.
func (c *channelBase) NumDelivered() uint64 {
	return c.numDelivered
}

func (c *channelBase) bind(sender Node, receiver string) {
	c.sender = sender
	c.receiver = receiver

	c.timeline.Logger().For("optical").Infof(
		"set %s, %s as ends of channel %s", sender.Name(), receiver, c.Name())
}

func (c *channelBase) resolveReceiver() (modeling.Entity, error) {
	e := c.timeline.GetEntityByName(c.receiver)
	if e == nil {
		return nil, fmt.Errorf("channel %s: %q: %w",
			c.Name(), c.receiver, ErrUnknownReceiver)
	}

	return e, nil
}

func (c *channelBase) invokeHook(pos *hooking.HookPos, item any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c.domain,
		Pos:    pos,
		Item:   item,
		Detail: Detail{Src: c.sender.Name(), Dst: c.receiver},
	})
}

func (c *channelBase) endsMustBeSet() {
	if c.sender == nil || c.receiver == "" {
		panic(fmt.Sprintf("channel %s is used before its ends are set", c.Name()))
	}
}

func (c *channelBase) sourceMustBeSender(source Node) {
	if source != c.sender {
		panic(fmt.Sprintf("channel %s: %s is not the sender %s",
			c.Name(), source.Name(), c.sender.Name()))
	}
}
