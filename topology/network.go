package topology

import (
	"fmt"

	"github.com/sarchlab/qnetsim/entanglement"
	"github.com/sarchlab/qnetsim/node"
	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/routing"
	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/simulation"
	"github.com/sarchlab/qnetsim/sim/timing"
	"github.com/sarchlab/qnetsim/traffic"
)

// Names of the protocols that Build puts on every node.
const (
	RoutingName = "static_routing"
	PingAppName = "ping"
)

// A Network is an assembled simulation.
type Network struct {
	Sim *simulation.Simulation

	Nodes             []*node.Node
	QuantumChannels   []*optical.QuantumChannel
	ClassicalChannels []*optical.ClassicalChannel
	Routing           map[string]*routing.StaticRouting
	PingApps          map[string]*traffic.PingApp
	PhotonCounters    map[string]*traffic.PhotonCounter
	PhotonSources     []*traffic.PhotonSource

	nodeIndex map[string]*node.Node
}

// Node returns the node with the given name, or nil.
func (n *Network) Node(name string) *node.Node {
	return n.nodeIndex[name]
}

// Run runs the simulation.
func (n *Network) Run() error {
	return n.Sim.Run()
}

type buildOptions struct {
	logger *logging.Sink
	seed   *int64
	stop   *timing.VTimeInPS
	qm     simulation.QuantumManager
}

// A BuildOption changes how Build assembles a network.
type BuildOption func(o *buildOptions)

// WithLogger sets the sink that the simulation logs to.
func WithLogger(logger *logging.Sink) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithSeed overrides the seed of the configuration.
func WithSeed(seed int64) BuildOption {
	return func(o *buildOptions) {
		o.seed = &seed
	}
}

// WithStopTime overrides the stop time of the configuration.
func WithStopTime(t timing.VTimeInPS) BuildOption {
	return func(o *buildOptions) {
		o.stop = &t
	}
}

// WithQuantumManager sets the manager of quantum state keys.
func WithQuantumManager(qm simulation.QuantumManager) BuildOption {
	return func(o *buildOptions) {
		o.qm = qm
	}
}

// Build assembles the network that cfg describes. Every node gets a network
// manager, a static routing layer with shortest path rules, and a ping app,
// stacked in that order. Traffic is scheduled, so that running the
// simulation runs the workloads.
func Build(cfg *Config, opts ...BuildOption) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}

	sim := simulation.NewSimulation(o.simulationOptions(cfg)...)
	net := &Network{
		Sim:            sim,
		Routing:        make(map[string]*routing.StaticRouting),
		PingApps:       make(map[string]*traffic.PingApp),
		PhotonCounters: make(map[string]*traffic.PhotonCounter),
		nodeIndex:      make(map[string]*node.Node),
	}

	if err := net.buildNodes(cfg); err != nil {
		return nil, err
	}

	net.buildChannels(cfg)

	if err := net.installRoutes(cfg); err != nil {
		return nil, err
	}

	sim.Init()

	if err := net.scheduleTraffic(cfg); err != nil {
		return nil, err
	}

	return net, nil
}

func (o *buildOptions) simulationOptions(cfg *Config) []simulation.Option {
	seed := cfg.Seed
	if o.seed != nil {
		seed = *o.seed
	}

	simOpts := []simulation.Option{simulation.WithSeed(seed)}

	stop := cfg.StopTime
	if o.stop != nil {
		stop = *o.stop
	}

	if stop > 0 {
		simOpts = append(simOpts, simulation.WithStopTime(stop))
	}

	if o.logger != nil {
		simOpts = append(simOpts, simulation.WithLogger(o.logger))
	}

	if o.qm != nil {
		simOpts = append(simOpts, simulation.WithQuantumManager(o.qm))
	}

	return simOpts
}

func (n *Network) buildNodes(cfg *Config) error {
	for _, nc := range cfg.Nodes {
		nd := node.NewNode(nc.Name, n.Sim)
		nd.SetResourceManager(entanglement.NewMemoryManager(nc.Memories...))

		r := routing.NewStaticRouting(nd, RoutingName, nil)
		app := traffic.NewPingApp(nd, PingAppName, n.Sim)
		protocol.Stack(nd.NetworkManager(), r, app)

		for _, p := range []node.MessageHandler{r, app} {
			if err := nd.AddProtocol(p); err != nil {
				return fmt.Errorf("topology: %w", err)
			}
		}

		counter := traffic.NewPhotonCounter()
		nd.AddQubitHandler(counter)

		n.Sim.RegisterEntity(nd)
		n.Nodes = append(n.Nodes, nd)
		n.nodeIndex[nc.Name] = nd
		n.Routing[nc.Name] = r
		n.PingApps[nc.Name] = app
		n.PhotonCounters[nc.Name] = counter
	}

	return nil
}

func (n *Network) buildChannels(cfg *Config) {
	for _, c := range cfg.QuantumChannels {
		b := optical.MakeQuantumChannelBuilder().
			WithTimeline(n.Sim).
			WithDistance(c.Distance).
			WithAttenuation(c.Attenuation)

		if c.PolarizationFidelity != nil {
			b = b.WithPolarizationFidelity(*c.PolarizationFidelity)
		}

		if c.Frequency > 0 {
			b = b.WithFrequency(c.Frequency)
		}

		qc := b.Build(c.Name)
		qc.SetEnds(n.nodeIndex[c.Src], c.Dst)
		n.Sim.RegisterEntity(qc)
		n.QuantumChannels = append(n.QuantumChannels, qc)
	}

	for _, c := range cfg.ClassicalChannels {
		b := optical.MakeClassicalChannelBuilder().
			WithTimeline(n.Sim).
			WithDistance(c.Distance)

		if c.Delay != nil {
			b = b.WithDelay(*c.Delay)
		}

		cc := b.Build(c.Name)
		cc.SetEnds(n.nodeIndex[c.Src], c.Dst)
		n.Sim.RegisterEntity(cc)
		n.ClassicalChannels = append(n.ClassicalChannels, cc)
	}
}

// installRoutes computes shortest path rules over the quantum channels, or
// over the classical channels when there are no quantum ones.
func (n *Network) installRoutes(cfg *Config) error {
	names := make([]string, 0, len(cfg.Nodes))
	for _, nc := range cfg.Nodes {
		names = append(names, nc.Name)
	}

	links := make([]routing.Link, 0, len(cfg.QuantumChannels))
	for _, c := range cfg.QuantumChannels {
		links = append(links, routing.Link{A: c.Src, B: c.Dst, Length: c.Distance})
	}

	if len(links) == 0 {
		for _, c := range cfg.ClassicalChannels {
			links = append(links, routing.Link{A: c.Src, B: c.Dst, Length: c.Distance})
		}
	}

	tables, err := routing.ShortestPathTables(names, links)
	if err != nil {
		return fmt.Errorf("topology: %w", err)
	}

	for name, rules := range tables {
		r := n.Routing[name]

		for _, rule := range rules {
			if n.nodeIndex[name].ClassicalChannel(rule.NextHop) == nil {
				return fmt.Errorf("%w: %s routes to %s via %s without a classical channel",
					ErrInvalidConfig, name, rule.Dst, rule.NextHop)
			}

			if err := r.AddForwardingRule(rule.Dst, rule.NextHop); err != nil {
				return fmt.Errorf("topology: %w", err)
			}
		}
	}

	return nil
}

func (n *Network) scheduleTraffic(cfg *Config) error {
	for _, p := range cfg.Traffic.Pings {
		n.PingApps[p.Src].SchedulePings(p.Dst, p.Start, p.Count, p.Interval)
	}

	for i, p := range cfg.Traffic.Photons {
		encoding := p.Encoding
		if encoding == "" {
			encoding = optical.EncodingPolarization
		}

		src := traffic.NewPhotonSource(
			fmt.Sprintf("photons[%d]", i),
			n.nodeIndex[p.Src], n.Sim, p.Dst, encoding, p.Count)

		if err := src.StartAt(p.Start); err != nil {
			return fmt.Errorf("topology: %w", err)
		}

		n.PhotonSources = append(n.PhotonSources, src)
	}

	return nil
}

// A RunReport summarizes a run.
type RunReport struct {
	Now      timing.VTimeInPS `json:"now" yaml:"now"`
	Pings    []PingReport     `json:"pings" yaml:"pings"`
	Photons  []PhotonReport   `json:"photons" yaml:"photons"`
	Channels []ChannelReport  `json:"channels" yaml:"channels"`
}

// PingReport summarizes the ping app of a node.
type PingReport struct {
	Node     string           `json:"node" yaml:"node"`
	Sent     int              `json:"sent" yaml:"sent"`
	Answered int              `json:"answered" yaml:"answered"`
	Relayed  int              `json:"relayed" yaml:"relayed"`
	Returned int              `json:"returned" yaml:"returned"`
	MeanRTT  timing.VTimeInPS `json:"mean_rtt" yaml:"mean_rtt"`
}

// PhotonReport summarizes the photons a node received.
type PhotonReport struct {
	Node     string `json:"node" yaml:"node"`
	Received int    `json:"received" yaml:"received"`
	Noisy    int    `json:"noisy" yaml:"noisy"`
}

// ChannelReport summarizes the traffic of a channel.
type ChannelReport struct {
	Name      string `json:"name" yaml:"name"`
	Quantum   bool   `json:"quantum" yaml:"quantum"`
	Sent      uint64 `json:"sent" yaml:"sent"`
	Delivered uint64 `json:"delivered" yaml:"delivered"`
	Lost      uint64 `json:"lost,omitempty" yaml:"lost,omitempty"`
}

// Report summarizes the state of the network.
func (n *Network) Report() RunReport {
	r := RunReport{Now: n.Sim.Now()}

	for _, nd := range n.Nodes {
		app := n.PingApps[nd.Name()]
		rtts := app.RoundTripTimes()

		pr := PingReport{
			Node:     nd.Name(),
			Sent:     app.NumSent(),
			Answered: app.NumAnswered(),
			Relayed:  app.NumRelayed(),
			Returned: len(rtts),
		}

		if len(rtts) > 0 {
			var sum timing.VTimeInPS
			for _, rtt := range rtts {
				sum += rtt
			}

			pr.MeanRTT = sum / timing.VTimeInPS(len(rtts))
		}

		r.Pings = append(r.Pings, pr)

		counter := n.PhotonCounters[nd.Name()]
		received := 0

		for _, src := range n.Nodes {
			received += counter.Count(src.Name())
		}

		r.Photons = append(r.Photons, PhotonReport{
			Node:     nd.Name(),
			Received: received,
			Noisy:    counter.NumNoisy(),
		})
	}

	for _, qc := range n.QuantumChannels {
		r.Channels = append(r.Channels, ChannelReport{
			Name:      qc.Name(),
			Quantum:   true,
			Sent:      qc.NumSent(),
			Delivered: qc.NumDelivered(),
			Lost:      qc.NumLost(),
		})
	}

	for _, cc := range n.ClassicalChannels {
		r.Channels = append(r.Channels, ChannelReport{
			Name:      cc.Name(),
			Sent:      cc.NumSent(),
			Delivered: cc.NumDelivered(),
		})
	}

	return r
}
