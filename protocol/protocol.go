// Package protocol defines the protocols that run on nodes and the stack that
// relays messages between them.
package protocol

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/hooking"
)

// ErrNoLayer is returned when a stack protocol relays a message, but there is
// no layer in that direction.
var ErrNoLayer = errors.New("no layer to relay to")

// Hook positions of stack relays. The hook item is the message.
var (
	HookPosPushDown = &hooking.HookPos{Name: "PushDown"}
	HookPosPopUp    = &hooking.HookPos{Name: "PopUp"}
)

// An Owner is the node that a protocol runs on.
type Owner interface {
	Name() string
}

// A Protocol is code that runs on a node and receives classical messages.
type Protocol interface {
	Name() string
	Owner() Owner
	ReceivedMessage(src string, msg *message.Msg) error
}

// A StackProtocol is a protocol that is part of a stack. Push receives
// messages from the layers above. Pop receives messages from the layers
// below.
type StackProtocol interface {
	Protocol

	// Push sends msg toward dst. A layer that resolves the next hop itself
	// may be given nextHop instead of dst.
	Push(dst string, msg *message.Msg, nextHop string) error
	Pop(src string, msg *message.Msg) error

	AddUpper(p StackProtocol)
	AddLower(p StackProtocol)
}

// Base provides the name and the owner of a protocol.
type Base struct {
	name  string
	owner Owner
}

// MakeBase creates a Base.
func MakeBase(name string, owner Owner) Base {
	if name == "" {
		panic("protocol name must not be empty")
	}

	return Base{name: name, owner: owner}
}

// Name returns the name of the protocol.
func (b *Base) Name() string {
	return b.name
}

// Owner returns the node that the protocol runs on.
func (b *Base) Owner() Owner {
	return b.owner
}

// StackBase keeps the neighbors of a stack protocol and relays messages to
// them.
type StackBase struct {
	Base
	*hooking.HookableBase

	uppers []StackProtocol
	lowers []StackProtocol
}

// MakeStackBase creates a StackBase with no neighbors.
func MakeStackBase(name string, owner Owner) StackBase {
	return StackBase{
		Base:         MakeBase(name, owner),
		HookableBase: hooking.NewHookableBase(),
	}
}

// AddUpper adds a layer that PopUp relays to.
func (b *StackBase) AddUpper(p StackProtocol) {
	b.uppers = append(b.uppers, p)
}

// AddLower adds a layer that PushDown relays to.
func (b *StackBase) AddLower(p StackProtocol) {
	b.lowers = append(b.lowers, p)
}

// UpperProtocols returns the layers above.
func (b *StackBase) UpperProtocols() []StackProtocol {
	return b.uppers
}

// LowerProtocols returns the layers below.
func (b *StackBase) LowerProtocols() []StackProtocol {
	return b.lowers
}

// PushDown pushes msg toward dst on every lower layer, stopping at the first
// error.
func (b *StackBase) PushDown(dst string, msg *message.Msg) error {
	if len(b.lowers) == 0 {
		return fmt.Errorf("%s push: %w", b.name, ErrNoLayer)
	}

	b.invokeHook(HookPosPushDown, msg, dst)

	for _, p := range b.lowers {
		if err := p.Push(dst, msg, ""); err != nil {
			return fmt.Errorf("%s push to %s: %w", b.name, p.Name(), err)
		}
	}

	return nil
}

// PopUp pops msg from src on every upper layer, stopping at the first error.
func (b *StackBase) PopUp(src string, msg *message.Msg) error {
	if len(b.uppers) == 0 {
		return fmt.Errorf("%s pop: %w", b.name, ErrNoLayer)
	}

	b.invokeHook(HookPosPopUp, msg, src)

	for _, p := range b.uppers {
		if err := p.Pop(src, msg); err != nil {
			return fmt.Errorf("%s pop to %s: %w", b.name, p.Name(), err)
		}
	}

	return nil
}

func (b *StackBase) invokeHook(pos *hooking.HookPos, msg *message.Msg, peer string) {
	if b.NumHooks() == 0 {
		return
	}

	b.InvokeHook(hooking.HookCtx{
		Domain: b,
		Pos:    pos,
		Item:   msg,
		Detail: peer,
	})
}

// Stack connects the layers, listed from the bottom to the top.
func Stack(layers ...StackProtocol) {
	for i := 1; i < len(layers); i++ {
		layers[i-1].AddUpper(layers[i])
		layers[i].AddLower(layers[i-1])
	}
}
