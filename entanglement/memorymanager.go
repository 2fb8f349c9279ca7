package entanglement

import (
	"errors"
	"fmt"
)

// ErrUnknownMemory is returned for a memory that the manager does not own.
var ErrUnknownMemory = errors.New("unknown memory")

// MemoryManager is a ResourceManager that keeps the state of each memory and
// the protocol holding it.
type MemoryManager struct {
	order   []string
	states  map[string]MemoryState
	holders map[string]Protocol
}

// NewMemoryManager creates a manager of RAW memories.
func NewMemoryManager(memories ...string) *MemoryManager {
	m := &MemoryManager{
		states:  make(map[string]MemoryState),
		holders: make(map[string]Protocol),
	}

	for _, mem := range memories {
		if _, ok := m.states[mem]; ok {
			panic(fmt.Sprintf("memory %s listed twice", mem))
		}

		m.order = append(m.order, mem)
		m.states[mem] = MemoryRaw
	}

	return m
}

// Memories returns the managed memories in creation order.
func (m *MemoryManager) Memories() []string {
	return m.order
}

// State returns the state of a memory.
func (m *MemoryManager) State(memory string) (MemoryState, error) {
	s, ok := m.states[memory]
	if !ok {
		return "", fmt.Errorf("%q: %w", memory, ErrUnknownMemory)
	}

	return s, nil
}

// Holder returns the protocol holding a memory, or nil.
func (m *MemoryManager) Holder(memory string) Protocol {
	return m.holders[memory]
}

// Attach hands a RAW, free memory to a protocol and marks it OCCUPIED.
func (m *MemoryManager) Attach(p Protocol, memory string) error {
	s, err := m.State(memory)
	if err != nil {
		return err
	}

	if h := m.holders[memory]; h != nil || s != MemoryRaw {
		return fmt.Errorf("memory %s is %s and cannot be attached to %s",
			memory, s, p.Name())
	}

	m.holders[memory] = p
	m.states[memory] = MemoryOccupied

	return nil
}

// Update moves a memory held by p to state. A memory moved to RAW is freed.
func (m *MemoryManager) Update(p Protocol, memory string, state MemoryState) error {
	if _, err := m.State(memory); err != nil {
		return err
	}

	if m.holders[memory] != p {
		return fmt.Errorf("%s: %q: %w", p.Name(), memory, ErrMemoryNotHeld)
	}

	m.states[memory] = state
	if state == MemoryRaw {
		delete(m.holders, memory)
	}

	return nil
}
