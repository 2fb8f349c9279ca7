// Package traffic provides the workloads that drive a network: photon
// sources and counters on quantum channels, and ping applications that send
// control messages through the protocol stack.
package traffic

import (
	"math/rand"

	"github.com/sarchlab/qnetsim/optical"
)

// Photon is a photon that carries a key to its state. It keeps the loss and
// the noise applied to it, but no quantum state.
type Photon struct {
	encoding optical.Encoding
	null     bool
	key      int
	loss     float64
	errors   []rune
}

// NewPhoton creates a photon with the given encoding and state key.
func NewPhoton(encoding optical.Encoding, key int) *Photon {
	return &Photon{encoding: encoding, key: key}
}

// NewNullPhoton creates a placeholder photon.
func NewNullPhoton(encoding optical.Encoding) *Photon {
	return &Photon{encoding: encoding, null: true, key: -1}
}

// Encoding returns how the photon carries information.
func (p *Photon) Encoding() optical.Encoding {
	return p.encoding
}

// IsNull tells if the photon is a placeholder.
func (p *Photon) IsNull() bool {
	return p.null
}

// QuantumStateKey returns the key of the photon state.
func (p *Photon) QuantumStateKey() int {
	return p.key
}

// AddLoss composes loss with the loss recorded so far.
func (p *Photon) AddLoss(loss float64) {
	p.loss = 1 - (1-p.loss)*(1-loss)
}

// Loss returns the loss recorded so far.
func (p *Photon) Loss() float64 {
	return p.loss
}

// RandomNoise records a Pauli error drawn uniformly from X, Y and Z.
func (p *Photon) RandomNoise(rng *rand.Rand) {
	p.errors = append(p.errors, []rune{'X', 'Y', 'Z'}[rng.Intn(3)])
}

// Errors returns the Pauli errors applied, in order.
func (p *Photon) Errors() string {
	return string(p.errors)
}
