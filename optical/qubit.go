package optical

import "math/rand"

// Encoding names how a photon carries its quantum information.
type Encoding string

// Encodings known to the channels.
const (
	EncodingPolarization   Encoding = "polarization"
	EncodingTimeBin        Encoding = "time_bin"
	EncodingSingleAtom     Encoding = "single_atom"
	EncodingSingleHeralded Encoding = "single_heralded"
	EncodingAbsorptive     Encoding = "absorptive"
	EncodingFock           Encoding = "fock"
)

// A Qubit is a photon sent over a quantum channel.
type Qubit interface {
	Encoding() Encoding

	// IsNull tells if the photon is a placeholder that carries no state.
	IsNull() bool

	// QuantumStateKey returns the key of the state in the quantum manager.
	QuantumStateKey() int

	// AddLoss records loss on a null photon.
	AddLoss(loss float64)

	// RandomNoise applies depolarizing noise.
	RandomNoise(rng *rand.Rand)
}
