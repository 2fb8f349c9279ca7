// Package simulation provides the timeline that entities share: the event
// engine, the entity registry, the random number sources and the quantum
// state manager.
package simulation

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/modeling"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// A Simulation provides the service requires to define a simulation.
type Simulation struct {
	engine      *timing.SerialEngine
	entities    []modeling.Entity
	entityIndex map[string]modeling.Entity
	logger      *logging.Sink
	qm          QuantumManager

	seed       int64
	generators map[string]*rand.Rand

	stopTime    timing.VTimeInPS
	hasStopTime bool
	initialized bool
}

// An Option configures a Simulation.
type Option func(s *Simulation)

// WithSeed sets the master seed that every entity generator derives from.
func WithSeed(seed int64) Option {
	return func(s *Simulation) {
		s.seed = seed
	}
}

// WithStopTime makes Run stop after the events at stopTime are handled.
func WithStopTime(stopTime timing.VTimeInPS) Option {
	return func(s *Simulation) {
		s.stopTime = stopTime
		s.hasStopTime = true
	}
}

// WithLogger sets the diagnostic sink. The simulation attaches its clock to
// the sink.
func WithLogger(logger *logging.Sink) Option {
	return func(s *Simulation) {
		s.logger = logger
	}
}

// WithQuantumManager replaces the default LossLedger.
func WithQuantumManager(qm QuantumManager) Option {
	return func(s *Simulation) {
		s.qm = qm
	}
}

// NewSimulation creates a new simulation.
func NewSimulation(opts ...Option) *Simulation {
	s := &Simulation{
		engine:      timing.NewSerialEngine(),
		entityIndex: make(map[string]modeling.Entity),
		generators:  make(map[string]*rand.Rand),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.Discard()
	}

	if s.qm == nil {
		s.qm = NewLossLedger()
	}

	s.logger.Attach(s)

	return s
}

// Engine returns the engine used in the simulation.
func (s *Simulation) Engine() *timing.SerialEngine {
	return s.engine
}

// Now returns the current simulated time.
func (s *Simulation) Now() timing.VTimeInPS {
	return s.engine.Now()
}

// Schedule registers an event with the engine.
func (s *Simulation) Schedule(e timing.Event) {
	s.engine.Schedule(e)
}

// Logger returns the diagnostic sink.
func (s *Simulation) Logger() *logging.Sink {
	return s.logger
}

// QuantumManager returns the manager of quantum state keys.
func (s *Simulation) QuantumManager() QuantumManager {
	return s.qm
}

// Seed returns the master seed.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// RegisterEntity registers an entity with the simulation. Entity names must
// be unique.
func (s *Simulation) RegisterEntity(e modeling.Entity) {
	name := e.Name()
	if _, ok := s.entityIndex[name]; ok {
		panic("entity " + name + " already registered")
	}

	s.entities = append(s.entities, e)
	s.entityIndex[name] = e

	if s.initialized {
		e.Init()
	}
}

// GetEntityByName returns the entity with the given name, or nil if there is
// no such entity.
func (s *Simulation) GetEntityByName(name string) modeling.Entity {
	return s.entityIndex[name]
}

// Entities returns the registered entities in registration order.
func (s *Simulation) Entities() []modeling.Entity {
	return s.entities
}

// Generator returns the random number source of the named entity. The source
// is seeded with the master seed XOR the FNV-1a hash of the name, so that
// entities draw from isolated, reproducible streams.
func (s *Simulation) Generator(name string) *rand.Rand {
	if g, ok := s.generators[name]; ok {
		return g
	}

	g := rand.New(rand.NewSource(s.seed ^ fnv1a64(name)))
	s.generators[name] = g

	return g
}

func fnv1a64(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))

	return int64(h.Sum64())
}

// Init initializes every registered entity once. Entities registered later
// are initialized on registration.
func (s *Simulation) Init() {
	if s.initialized {
		return
	}

	for _, e := range s.entities {
		e.Init()
	}

	s.initialized = true
}

// Run initializes the entities if needed and processes events until there
// are none left or the configured stop time is passed.
func (s *Simulation) Run() error {
	if s.hasStopTime {
		return s.RunUntil(s.stopTime)
	}

	return s.run(s.engine.Run)
}

// RunUntil initializes the entities if needed and processes the events that
// happen no later than stopTime.
func (s *Simulation) RunUntil(stopTime timing.VTimeInPS) error {
	return s.run(func() error {
		return s.engine.RunUntil(stopTime)
	})
}

func (s *Simulation) run(runEngine func() error) error {
	s.Init()

	log := s.logger.For("simulation")
	log.Infof("run start, %d entities, seed %d", len(s.entities), s.seed)

	err := runEngine()

	if err != nil {
		log.WithError(err).Error("run aborted")
		return fmt.Errorf("simulation: %w", err)
	}

	log.Infof("run end, %d events handled", s.engine.NumEventsHandled())

	return nil
}

// Close detaches the simulation clock from the logger.
func (s *Simulation) Close() {
	s.logger.Detach()
}
