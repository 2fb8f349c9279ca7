// Package node provides the repeater node that owns the sending ends of
// channels and dispatches arrivals to its protocols.
package node

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sarchlab/qnetsim/entanglement"
	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/sim/modeling"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// Errors of node use.
var (
	ErrNoChannel         = errors.New("no channel to destination")
	ErrUnknownProtocol   = errors.New("unknown protocol")
	ErrDuplicateProtocol = errors.New("protocol already added")
)

// A Timeline is what a node needs from the simulation.
type Timeline interface {
	optical.Timeline

	Generator(name string) *rand.Rand
}

// A MessageHandler is a protocol that receives classical messages addressed
// to it by name.
type MessageHandler interface {
	Name() string
	ReceivedMessage(src string, msg *message.Msg) error
}

// A QubitHandler receives the photons that arrive at a node.
type QubitHandler interface {
	ReceiveQubit(src string, qubit optical.Qubit) error
}

// A Node is a repeater node.
type Node struct {
	modeling.EntityBase

	timeline        Timeline
	qchannels       map[string]*optical.QuantumChannel
	cchannels       map[string]*optical.ClassicalChannel
	protocols       map[string]MessageHandler
	qubitHandlers   []QubitHandler
	resourceManager entanglement.ResourceManager
	networkManager  *NetworkManager
}

// NewNode creates a node with a network manager and no channels.
func NewNode(name string, timeline Timeline) *Node {
	n := &Node{
		EntityBase: modeling.MakeEntityBase(name),
		timeline:   timeline,
		qchannels:  make(map[string]*optical.QuantumChannel),
		cchannels:  make(map[string]*optical.ClassicalChannel),
		protocols:  make(map[string]MessageHandler),
	}

	n.networkManager = newNetworkManager(n)
	if err := n.AddProtocol(n.networkManager); err != nil {
		panic(err)
	}

	return n
}

// Generator returns the random number source of the node.
func (n *Node) Generator() *rand.Rand {
	return n.timeline.Generator(n.Name())
}

// AssignQuantumChannel records the channel used to send photons to receiver.
func (n *Node) AssignQuantumChannel(qc *optical.QuantumChannel, receiver string) {
	n.qchannels[receiver] = qc
}

// AssignClassicalChannel records the channel used to send messages to
// receiver.
func (n *Node) AssignClassicalChannel(cc *optical.ClassicalChannel, receiver string) {
	n.cchannels[receiver] = cc
}

// QuantumChannel returns the channel to dst, or nil.
func (n *Node) QuantumChannel(dst string) *optical.QuantumChannel {
	return n.qchannels[dst]
}

// ClassicalChannel returns the channel to dst, or nil.
func (n *Node) ClassicalChannel(dst string) *optical.ClassicalChannel {
	return n.cchannels[dst]
}

// NetworkManager returns the bottom layer of the protocol stack.
func (n *Node) NetworkManager() *NetworkManager {
	return n.networkManager
}

// ResourceManager returns the manager of the node memories.
func (n *Node) ResourceManager() entanglement.ResourceManager {
	return n.resourceManager
}

// SetResourceManager sets the manager of the node memories.
func (n *Node) SetResourceManager(rm entanglement.ResourceManager) {
	n.resourceManager = rm
}

// AddProtocol makes p receive the messages addressed to its name.
func (n *Node) AddProtocol(p MessageHandler) error {
	if _, ok := n.protocols[p.Name()]; ok {
		return fmt.Errorf("%s: %q: %w", n.Name(), p.Name(), ErrDuplicateProtocol)
	}

	n.protocols[p.Name()] = p

	return nil
}

// Protocol returns the protocol with the given name, or nil.
func (n *Node) Protocol(name string) MessageHandler {
	return n.protocols[name]
}

// AddQubitHandler makes h receive the photons that arrive at the node.
func (n *Node) AddQubitHandler(h QubitHandler) {
	n.qubitHandlers = append(n.qubitHandlers, h)
}

// SendMessage sends msg over the classical channel to dst.
func (n *Node) SendMessage(dst string, msg *message.Msg, priority int) error {
	cc, ok := n.cchannels[dst]
	if !ok {
		return fmt.Errorf("%s -> %s: %w", n.Name(), dst, ErrNoChannel)
	}

	cc.Transmit(msg, n, priority)

	return nil
}

// ScheduleQubit reserves a time bin on the quantum channel to dst.
func (n *Node) ScheduleQubit(
	dst string,
	minTime timing.VTimeInPS,
) (timing.VTimeInPS, error) {
	qc, ok := n.qchannels[dst]
	if !ok {
		return 0, fmt.Errorf("%s -> %s: %w", n.Name(), dst, ErrNoChannel)
	}

	return qc.ScheduleTransmit(minTime), nil
}

// SendQubit sends a photon over the quantum channel to dst. It must be
// called at a time returned by ScheduleQubit.
func (n *Node) SendQubit(dst string, qubit optical.Qubit) error {
	qc, ok := n.qchannels[dst]
	if !ok {
		return fmt.Errorf("%s -> %s: %w", n.Name(), dst, ErrNoChannel)
	}

	qc.Transmit(qubit, n)

	return nil
}

// ReceiveMessage hands msg to the protocol named by its receiver.
func (n *Node) ReceiveMessage(src string, msg *message.Msg) error {
	p, ok := n.protocols[msg.Receiver]
	if !ok {
		return fmt.Errorf("%s: message %s from %s: %q: %w",
			n.Name(), msg.Kind, src, msg.Receiver, ErrUnknownProtocol)
	}

	return p.ReceivedMessage(src, msg)
}

// ReceiveQubit hands the photon to every qubit handler. A node without
// handlers drops the photon.
func (n *Node) ReceiveQubit(src string, qubit optical.Qubit) error {
	if len(n.qubitHandlers) == 0 {
		n.timeline.Logger().For("node").Debugf(
			"%s drops a photon from %s", n.Name(), src)
		return nil
	}

	for _, h := range n.qubitHandlers {
		if err := h.ReceiveQubit(src, qubit); err != nil {
			return fmt.Errorf("%s: %w", n.Name(), err)
		}
	}

	return nil
}
