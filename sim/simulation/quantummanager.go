package simulation

// A QuantumManager owns the quantum states that photons refer to by key.
// Channels only ever ask it to apply loss to a state.
type QuantumManager interface {
	AddLoss(key int, loss float64)
}

// LossLedger is a QuantumManager that keeps, for every state key, the
// probability that the photon has been lost so far.
type LossLedger struct {
	losses map[int]float64
}

// NewLossLedger creates an empty LossLedger.
func NewLossLedger() *LossLedger {
	return &LossLedger{losses: make(map[int]float64)}
}

// AddLoss composes a new loss with the loss already applied to the key.
func (l *LossLedger) AddLoss(key int, loss float64) {
	kept := 1 - l.losses[key]
	l.losses[key] = 1 - kept*(1-loss)
}

// Loss returns the accumulated loss of the key.
func (l *LossLedger) Loss(key int) float64 {
	return l.losses[key]
}
