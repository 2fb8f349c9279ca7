package routing

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/protocol"
)

// MsgKindStaticRouting is the kind of the envelopes that StaticRouting
// layers exchange.
const MsgKindStaticRouting message.MsgType = "STATIC_ROUTING"

// Errors of the routing layer.
var (
	ErrNoNextHop        = errors.New("neither destination nor next hop given")
	ErrSelfDestination  = errors.New("destination is the owner itself")
	ErrRawMessage       = errors.New("routing layer does not receive raw messages")
	ErrNotRoutingPacket = errors.New("message is not a routing envelope")
)

// StaticRouting is a stack layer that wraps messages from the layers above
// and relays them toward their destination by a forwarding table.
type StaticRouting struct {
	protocol.StackBase

	table Table
}

// NewStaticRouting creates a routing layer. If table is nil, the layer starts
// with an empty table.
func NewStaticRouting(
	owner protocol.Owner,
	name string,
	table Table,
) *StaticRouting {
	if table == nil {
		table = NewTable()
	}

	return &StaticRouting{
		StackBase: protocol.MakeStackBase(name, owner),
		table:     table,
	}
}

// Push wraps msg and relays it to the next hop toward dst. If dst is empty,
// nextHop is relayed to directly.
func (r *StaticRouting) Push(dst string, msg *message.Msg, nextHop string) error {
	hop, err := r.resolveNextHop(dst, nextHop)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Name(), err)
	}

	envelope, err := message.Wrap(MsgKindStaticRouting, r.Name(), msg)
	if err != nil {
		return fmt.Errorf("%s: %w", r.Name(), err)
	}

	return r.PushDown(hop, envelope)
}

func (r *StaticRouting) resolveNextHop(dst, nextHop string) (string, error) {
	switch {
	case dst != "" && dst == r.Owner().Name():
		return "", ErrSelfDestination
	case dst != "":
		return r.table.NextHop(dst)
	case nextHop != "":
		return nextHop, nil
	default:
		return "", ErrNoNextHop
	}
}

// Pop strips the routing envelope and relays the inner message upward.
func (r *StaticRouting) Pop(src string, msg *message.Msg) error {
	inner, ok := msg.Inner()
	if !ok || msg.Kind != MsgKindStaticRouting {
		return fmt.Errorf("%s: %s: %w", r.Name(), msg, ErrNotRoutingPacket)
	}

	return r.PopUp(src, inner)
}

// ReceivedMessage always fails. Routing traffic only arrives through the
// stack.
func (r *StaticRouting) ReceivedMessage(src string, _ *message.Msg) error {
	return fmt.Errorf("%s: from %s: %w", r.Name(), src, ErrRawMessage)
}

// AddForwardingRule adds a rule. It fails if dst already has one.
func (r *StaticRouting) AddForwardingRule(dst, nextHop string) error {
	if err := r.table.AddRule(dst, nextHop); err != nil {
		return fmt.Errorf("%s: %w", r.Name(), err)
	}

	return nil
}

// UpdateForwardingRule sets the rule of dst.
func (r *StaticRouting) UpdateForwardingRule(dst, nextHop string) {
	r.table.UpdateRule(dst, nextHop)
}

// ForwardingTable returns the table of the layer.
func (r *StaticRouting) ForwardingTable() Table {
	return r.table
}
