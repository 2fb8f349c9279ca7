package optical

import (
	"fmt"
	"math"

	"github.com/sarchlab/qnetsim/sim/timing"
)

// DefaultFrequency is the default number of photons a quantum channel can
// carry per second.
const DefaultFrequency = 8e7

// A QuantumChannel carries photons from one node to another. At most one
// photon is sent per time bin of the channel frequency.
//
// Callers reserve a bin with ScheduleTransmit and call Transmit exactly at the
// returned time. Two reservations made for the same node before either
// transmits are not arbitrated; the caller owns that ordering.
type QuantumChannel struct {
	channelBase

	delay       timing.VTimeInPS
	loss        float64
	initialized bool
	clock       binClock
	sendBins    *sendBins
	lastBin     int64
	numLost     uint64
}

// Init derives the delay and the loss from the fiber parameters.
func (c *QuantumChannel) Init() {
	c.delay = timing.VTimeInPS(math.Round(c.distance / c.lightSpeed))
	c.loss = 1 - math.Pow(10, c.distance*c.attenuation/-10)
	c.initialized = true

	c.timeline.Logger().For("optical").Debugf(
		"channel %s: delay %d ps, loss %.6f", c.Name(), c.delay, c.loss)
}

// Delay returns the propagation delay, or -1 before Init.
func (c *QuantumChannel) Delay() timing.VTimeInPS {
	return c.delay
}

// Loss returns the probability that a photon is lost, or 1 before Init.
func (c *QuantumChannel) Loss() float64 {
	return c.loss
}

// Frequency returns the maximum photon rate in Hz.
func (c *QuantumChannel) Frequency() float64 {
	return c.clock.Frequency()
}

// NumLost returns the number of photons dropped by the fiber.
func (c *QuantumChannel) NumLost() uint64 {
	return c.numLost
}

// NumReserved returns the number of reserved time bins not yet consumed.
func (c *QuantumChannel) NumReserved() int {
	return c.sendBins.Len()
}

// SetEnds binds the channel to its sender and registers it with the sender.
func (c *QuantumChannel) SetEnds(sender Node, receiver string) {
	c.bind(sender, receiver)
	sender.AssignQuantumChannel(c, receiver)
}

// TimeToBin converts a time to the first bin starting at or after it.
func (c *QuantumChannel) TimeToBin(t timing.VTimeInPS) int64 {
	return c.clock.TimeToBin(t)
}

// BinToTime converts a bin to its start time.
func (c *QuantumChannel) BinToTime(bin int64) timing.VTimeInPS {
	return c.clock.BinToTime(bin)
}

// ScheduleTransmit reserves the earliest free time bin that starts no earlier
// than minTime and no earlier than now. A bin that has already been used is
// never reserved again. It returns the start of the bin.
func (c *QuantumChannel) ScheduleTransmit(
	minTime timing.VTimeInPS,
) timing.VTimeInPS {
	now := c.timeline.Now()
	if minTime < now {
		minTime = now
	}

	bin := c.clock.TimeToBin(minTime)
	for c.clock.BinToTime(bin) < minTime {
		bin++
	}

	if bin <= c.lastBin {
		bin = c.lastBin + 1
	}

	for c.sendBins.Contains(bin) {
		bin++
	}

	c.sendBins.Reserve(bin)

	return c.clock.BinToTime(bin)
}

// Transmit sends a photon. It must be called by the sender at a time
// returned by ScheduleTransmit. A photon lost in the fiber is dropped
// silently.
func (c *QuantumChannel) Transmit(qubit Qubit, source Node) {
	c.mustBeInitialized()
	c.endsMustBeSet()
	c.sourceMustBeSender(source)
	c.consumeReservation()

	c.numSent++
	c.invokeHook(HookPosQubitSend, qubit)

	log := c.timeline.Logger().For("optical")
	rng := c.sender.Generator()

	if qubit.Encoding() == EncodingFock {
		c.timeline.QuantumManager().AddLoss(qubit.QuantumStateKey(), c.loss)
		c.scheduleArrival(qubit)

		return
	}

	if !(rng.Float64() > c.loss || qubit.IsNull()) {
		c.numLost++
		c.invokeHook(HookPosQubitLost, qubit)
		log.Debugf("channel %s lost a photon", c.Name())

		return
	}

	if qubit.IsNull() {
		qubit.AddLoss(c.loss)
	} else if qubit.Encoding() == EncodingPolarization &&
		rng.Float64() > c.polarizationFidelity {
		qubit.RandomNoise(rng)
	}

	c.scheduleArrival(qubit)
}

func (c *QuantumChannel) scheduleArrival(qubit Qubit) {
	evt := &QubitArrivalEvent{
		EventBase: timing.NewEventBase(c.timeline.Now()+c.delay, c),
		Src:       c.sender.Name(),
		Qubit:     qubit,
	}
	c.timeline.Schedule(evt)

	c.timeline.Logger().For("optical").Debugf(
		"%s send qubit to %s by channel %s, arrive at %d",
		c.sender.Name(), c.receiver, c.Name(), evt.Time())
}

// consumeReservation drops the bins whose time has passed and takes the bin
// of the current time.
func (c *QuantumChannel) consumeReservation() {
	now := c.timeline.Now()

	for c.sendBins.Len() > 0 &&
		c.clock.BinToTime(c.sendBins.Earliest()) < now {
		c.sendBins.PopEarliest()
	}

	if c.sendBins.Len() == 0 {
		panic(fmt.Sprintf(
			"channel %s: transmit at %d without a reserved time bin",
			c.Name(), now))
	}

	binTime := c.clock.BinToTime(c.sendBins.Earliest())
	if binTime != now {
		panic(fmt.Sprintf(
			"channel %s: transmit at %d, but the next reserved time bin is at %d",
			c.Name(), now, binTime))
	}

	c.lastBin = c.sendBins.PopEarliest()
}

// Handle delivers a photon to the receiving node.
func (c *QuantumChannel) Handle(e timing.Event) error {
	evt, ok := e.(*QubitArrivalEvent)
	if !ok {
		panic(fmt.Sprintf("channel %s cannot handle %T", c.Name(), e))
	}

	entity, err := c.resolveReceiver()
	if err != nil {
		return err
	}

	receiver, ok := entity.(QubitReceiver)
	if !ok {
		return fmt.Errorf("channel %s: %s cannot receive qubits: %w",
			c.Name(), c.receiver, ErrUnknownReceiver)
	}

	c.numDelivered++
	c.invokeHook(HookPosQubitDeliver, evt.Qubit)

	return receiver.ReceiveQubit(evt.Src, evt.Qubit)
}

func (c *QuantumChannel) mustBeInitialized() {
	if !c.initialized {
		panic(fmt.Sprintf("channel %s is used before Init", c.Name()))
	}
}

// QuantumChannelBuilder can build quantum channels.
type QuantumChannelBuilder struct {
	timeline             Timeline
	attenuation          float64
	distance             float64
	polarizationFidelity float64
	lightSpeed           float64
	frequency            float64
}

// MakeQuantumChannelBuilder creates a builder with default parameters.
func MakeQuantumChannelBuilder() QuantumChannelBuilder {
	return QuantumChannelBuilder{
		polarizationFidelity: 1,
		lightSpeed:           SpeedOfLight,
		frequency:            DefaultFrequency,
	}
}

// WithTimeline sets the timeline the channel schedules on.
func (b QuantumChannelBuilder) WithTimeline(t Timeline) QuantumChannelBuilder {
	b.timeline = t
	return b
}

// WithAttenuation sets the fiber attenuation in dB/m.
func (b QuantumChannelBuilder) WithAttenuation(a float64) QuantumChannelBuilder {
	b.attenuation = a
	return b
}

// WithDistance sets the fiber length in meters.
func (b QuantumChannelBuilder) WithDistance(d float64) QuantumChannelBuilder {
	b.distance = d
	return b
}

// WithPolarizationFidelity sets the probability that a polarization-encoded
// photon is not disturbed.
func (b QuantumChannelBuilder) WithPolarizationFidelity(
	f float64,
) QuantumChannelBuilder {
	b.polarizationFidelity = f
	return b
}

// WithLightSpeed sets the speed of light in the fiber in m/ps.
func (b QuantumChannelBuilder) WithLightSpeed(s float64) QuantumChannelBuilder {
	b.lightSpeed = s
	return b
}

// WithFrequency sets the maximum photon rate in Hz.
func (b QuantumChannelBuilder) WithFrequency(f float64) QuantumChannelBuilder {
	b.frequency = f
	return b
}

// Build creates a quantum channel. The channel must be initialized and its
// ends set before use.
func (b QuantumChannelBuilder) Build(name string) *QuantumChannel {
	b.parametersMustBeValid()

	clock, err := newBinClock(b.frequency)
	if err != nil {
		panic(err)
	}

	c := &QuantumChannel{
		channelBase: makeChannelBase(name, b.timeline),
		delay:       -1,
		loss:        1,
		clock:       clock,
		sendBins:    newSendBins(),
		lastBin:     -1,
	}
	c.attenuation = b.attenuation
	c.distance = b.distance
	c.polarizationFidelity = b.polarizationFidelity
	c.lightSpeed = b.lightSpeed
	c.domain = c

	c.timeline.Logger().For("optical").Infof("create channel %s", name)

	return c
}

func (b QuantumChannelBuilder) parametersMustBeValid() {
	if b.timeline == nil {
		panic("quantum channel needs a timeline")
	}

	if b.distance < 0 || b.attenuation < 0 {
		panic("distance and attenuation must not be negative")
	}

	if b.polarizationFidelity < 0 || b.polarizationFidelity > 1 {
		panic("polarization fidelity must be in [0, 1]")
	}

	if !(b.lightSpeed > 0) {
		panic("light speed must be positive")
	}
}
