package node

import (
	"fmt"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/routing"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// NetworkManagerName is the name of the network manager on every node.
const NetworkManagerName = "network_manager"

// MsgKindNetworkManager is the kind of the envelopes that network managers
// exchange.
const MsgKindNetworkManager message.MsgType = "NETWORK_MANAGER"

// NetworkManager is the bottom layer of a node stack. It puts messages on
// the classical channels and takes them off.
type NetworkManager struct {
	protocol.StackBase

	node     *Node
	priority int
}

func newNetworkManager(n *Node) *NetworkManager {
	return &NetworkManager{
		StackBase: protocol.MakeStackBase(NetworkManagerName, n),
		node:      n,
		priority:  timing.DefaultPriority,
	}
}

// SetPriority sets the priority of the messages the manager sends.
func (m *NetworkManager) SetPriority(priority int) {
	m.priority = priority
}

// Push sends msg to the neighbor dst. The nextHop argument is used when dst
// is empty.
func (m *NetworkManager) Push(dst string, msg *message.Msg, nextHop string) error {
	if dst == "" {
		dst = nextHop
	}

	if dst == "" {
		return fmt.Errorf("%s.%s: %w", m.node.Name(), m.Name(), routing.ErrNoNextHop)
	}

	envelope, err := message.Wrap(MsgKindNetworkManager, NetworkManagerName, msg)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", m.node.Name(), m.Name(), err)
	}

	return m.node.SendMessage(dst, envelope, m.priority)
}

// Pop strips the network manager envelope and relays the inner message up.
func (m *NetworkManager) Pop(src string, msg *message.Msg) error {
	inner, ok := msg.Inner()
	if !ok || msg.Kind != MsgKindNetworkManager {
		return fmt.Errorf("%s.%s: %s is not a network manager envelope",
			m.node.Name(), m.Name(), msg)
	}

	return m.PopUp(src, inner)
}

// ReceivedMessage takes a message off a classical channel.
func (m *NetworkManager) ReceivedMessage(src string, msg *message.Msg) error {
	return m.Pop(src, msg)
}
