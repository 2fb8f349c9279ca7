// Package entanglement defines the contract that entanglement management
// protocols fulfill so that the resource manager can drive them.
package entanglement

import (
	"errors"
	"fmt"

	"github.com/sarchlab/qnetsim/message"
	"golang.org/x/exp/slices"
)

// ErrMemoryNotHeld is returned when a protocol refers to a memory it does
// not hold.
var ErrMemoryNotHeld = errors.New("memory not held by protocol")

// MemoryState is the bookkeeping state of a memory.
type MemoryState string

// Memory states.
const (
	MemoryRaw       MemoryState = "RAW"
	MemoryOccupied  MemoryState = "OCCUPIED"
	MemoryEntangled MemoryState = "ENTANGLED"
)

// A ResourceManager owns the state of the memories of a node. Protocols never
// change a memory state directly.
type ResourceManager interface {
	Update(p Protocol, memory string, state MemoryState) error
}

// An Owner is the node that a protocol runs on.
type Owner interface {
	Name() string
	ResourceManager() ResourceManager
}

// A Rule is the resource manager rule that created a protocol.
type Rule interface {
	Name() string
}

// A Protocol is an entanglement generation, purification or swapping
// protocol.
type Protocol interface {
	Name() string
	Owner() Owner
	ProtocolType() string
	Rule() Rule
	SetRule(r Rule)
	Memories() []string
	Lifecycle() *Lifecycle

	// SetOthers pairs the protocol with its peer on a remote node.
	SetOthers(remoteProtocol, remoteNode string, memories []string) error

	// IsReady tells if the protocol can start.
	IsReady() bool

	// Start begins the protocol.
	Start() error

	// MemoryExpire tells the protocol that a memory it holds has expired.
	MemoryExpire(memory string) error

	// Release detaches side resources when the protocol terminates.
	Release()

	ReceivedMessage(src string, msg *message.Msg) error
}

// ProtocolBase provides the state every protocol has. Variants embed it and
// implement the rest of Protocol.
type ProtocolBase struct {
	self         Protocol
	name         string
	owner        Owner
	protocolType string
	rule         Rule
	memories     []string
	lifecycle    Lifecycle
}

// MakeProtocolBase creates a ProtocolBase. The self argument is the variant
// that embeds the base; it is what the resource manager sees.
func MakeProtocolBase(
	self Protocol,
	owner Owner,
	name string,
	protocolType string,
	memories []string,
) ProtocolBase {
	if name == "" {
		panic("protocol name must not be empty")
	}

	return ProtocolBase{
		self:         self,
		name:         name,
		owner:        owner,
		protocolType: protocolType,
		memories:     append([]string(nil), memories...),
	}
}

// Name returns the name of the protocol.
func (b *ProtocolBase) Name() string {
	return b.name
}

// Owner returns the node the protocol runs on.
func (b *ProtocolBase) Owner() Owner {
	return b.owner
}

// ProtocolType returns the protocol tag.
func (b *ProtocolBase) ProtocolType() string {
	return b.protocolType
}

// Rule returns the rule that created the protocol, or nil.
func (b *ProtocolBase) Rule() Rule {
	return b.rule
}

// SetRule attaches the rule that created the protocol.
func (b *ProtocolBase) SetRule(r Rule) {
	b.rule = r
}

// Memories returns the memories held, in the order they were attached.
func (b *ProtocolBase) Memories() []string {
	return b.memories
}

// Lifecycle returns the lifecycle of the protocol.
func (b *ProtocolBase) Lifecycle() *Lifecycle {
	return &b.lifecycle
}

// Release does nothing.
func (b *ProtocolBase) Release() {}

// UpdateResourceManager asks the resource manager of the owner to move a
// held memory to a new state.
func (b *ProtocolBase) UpdateResourceManager(
	memory string,
	state MemoryState,
) error {
	if !slices.Contains(b.memories, memory) {
		return fmt.Errorf("%s: %q: %w", b.name, memory, ErrMemoryNotHeld)
	}

	return b.owner.ResourceManager().Update(b.self, memory, state)
}
