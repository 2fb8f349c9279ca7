package entanglement

import (
	"fmt"

	"github.com/sarchlab/qnetsim/sim/logging"
)

// A Driver moves protocols through their lifecycle on behalf of a resource
// manager. Variants only implement the capabilities; the Driver decides
// when to call them.
type Driver struct {
	logger *logging.Sink
}

// NewDriver creates a Driver that logs to logger.
func NewDriver(logger *logging.Sink) *Driver {
	if logger == nil {
		logger = logging.Discard()
	}

	return &Driver{logger: logger}
}

// Bind pairs the protocol with its remote peer.
func (d *Driver) Bind(
	p Protocol,
	remoteProtocol, remoteNode string,
	memories []string,
) error {
	if p.Lifecycle().State() != Uninitialized {
		return fmt.Errorf("%s bind: %s -> %s: %w",
			p.Name(), p.Lifecycle().State(), Bound, ErrIllegalTransition)
	}

	if err := p.SetOthers(remoteProtocol, remoteNode, memories); err != nil {
		return fmt.Errorf("%s bind: %w", p.Name(), err)
	}

	return p.Lifecycle().Transition(Bound)
}

// Drive starts the protocol if it is ready. It returns whether the protocol
// started.
func (d *Driver) Drive(p Protocol) (bool, error) {
	if p.Lifecycle().State() != Bound {
		return false, fmt.Errorf("%s drive: %s -> %s: %w",
			p.Name(), p.Lifecycle().State(), Running, ErrIllegalTransition)
	}

	if !p.IsReady() {
		return false, nil
	}

	if err := p.Lifecycle().Transition(Running); err != nil {
		return false, err
	}

	d.logger.For("entanglement").Debugf("%s start", p.Name())

	if err := p.Start(); err != nil {
		return true, fmt.Errorf("%s start: %w", p.Name(), err)
	}

	return true, nil
}

// Succeed records that the protocol completed.
func (d *Driver) Succeed(p Protocol) error {
	return p.Lifecycle().Transition(Succeeded)
}

// Expire forwards the expiration of a memory to the protocol and records
// that the protocol stopped. Expiration is a normal way to stop.
func (d *Driver) Expire(p Protocol, memory string) error {
	if err := p.Lifecycle().Transition(Expired); err != nil {
		return fmt.Errorf("%s expire: %w", p.Name(), err)
	}

	d.logger.For("entanglement").Debugf("%s memory %s expired", p.Name(), memory)

	if err := p.MemoryExpire(memory); err != nil {
		return fmt.Errorf("%s expire: %w", p.Name(), err)
	}

	return nil
}

// Release lets the protocol detach its resources once it has stopped.
func (d *Driver) Release(p Protocol) error {
	if err := p.Lifecycle().Transition(Released); err != nil {
		return fmt.Errorf("%s release: %w", p.Name(), err)
	}

	p.Release()

	return nil
}
