package traffic

import (
	"fmt"

	"github.com/sarchlab/qnetsim/node"
	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// A PhotonSource emits photons from a node to a neighbor, one per reserved
// time bin.
type PhotonSource struct {
	name      string
	node      *node.Node
	scheduler timing.EventScheduler
	dst       string
	encoding  optical.Encoding
	count     int

	numEmitted int
	nextKey    int
}

// NewPhotonSource creates a source that emits count photons of encoding
// from n to dst.
func NewPhotonSource(
	name string,
	n *node.Node,
	scheduler timing.EventScheduler,
	dst string,
	encoding optical.Encoding,
	count int,
) *PhotonSource {
	return &PhotonSource{
		name:      name,
		node:      n,
		scheduler: scheduler,
		dst:       dst,
		encoding:  encoding,
		count:     count,
	}
}

// Name returns the name of the source.
func (s *PhotonSource) Name() string {
	return s.name
}

// NumEmitted returns the number of photons handed to the channel.
func (s *PhotonSource) NumEmitted() int {
	return s.numEmitted
}

// StartAt reserves the first time bin at or after t.
func (s *PhotonSource) StartAt(t timing.VTimeInPS) error {
	if s.count <= 0 {
		return nil
	}

	return s.scheduleNext(t)
}

func (s *PhotonSource) scheduleNext(minTime timing.VTimeInPS) error {
	t, err := s.node.ScheduleQubit(s.dst, minTime)
	if err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	s.scheduler.Schedule(timing.NewEventBase(t, s))

	return nil
}

// Handle emits a photon and reserves the time bin of the next one.
func (s *PhotonSource) Handle(e timing.Event) error {
	if err := s.node.SendQubit(s.dst, s.newPhoton()); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}

	s.numEmitted++
	if s.numEmitted >= s.count {
		return nil
	}

	return s.scheduleNext(e.Time() + 1)
}

func (s *PhotonSource) newPhoton() *Photon {
	if s.encoding == optical.EncodingFock {
		s.nextKey++
		return NewPhoton(s.encoding, s.nextKey)
	}

	return NewPhoton(s.encoding, -1)
}

// A PhotonCounter counts the photons that arrive at a node, per sender.
type PhotonCounter struct {
	counts map[string]int
	noisy  int
}

// NewPhotonCounter creates a counter with no arrivals.
func NewPhotonCounter() *PhotonCounter {
	return &PhotonCounter{counts: make(map[string]int)}
}

// ReceiveQubit counts the photon.
func (c *PhotonCounter) ReceiveQubit(src string, qubit optical.Qubit) error {
	c.counts[src]++

	if p, ok := qubit.(*Photon); ok && p.Errors() != "" {
		c.noisy++
	}

	return nil
}

// Count returns the number of photons received from src.
func (c *PhotonCounter) Count(src string) int {
	return c.counts[src]
}

// NumNoisy returns the number of photons received with a Pauli error.
func (c *PhotonCounter) NumNoisy() int {
	return c.noisy
}
