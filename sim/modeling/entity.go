// Package modeling defines the objects that live in a simulation.
package modeling

import "github.com/sarchlab/qnetsim/sim/naming"

// An Entity is a named object registered with a simulation. The simulation
// calls Init on every entity once, before the first event runs.
type Entity interface {
	naming.Named

	Init()
}

// EntityBase provides the name of an entity and a no-op Init.
type EntityBase struct {
	naming.NamedBase
}

// MakeEntityBase creates an EntityBase with a validated name.
func MakeEntityBase(name string) EntityBase {
	return EntityBase{NamedBase: naming.MakeNamedBase(name)}
}

// Init does nothing. Entities that derive parameters override it.
func (b *EntityBase) Init() {}
