// Package topology describes a network in a configuration file and
// assembles the simulation it describes.
package topology

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/sim/naming"
	"github.com/sarchlab/qnetsim/sim/timing"
)

// ErrInvalidConfig is returned for a configuration that cannot describe a
// network.
var ErrInvalidConfig = errors.New("invalid topology")

// Config is the description of a network.
type Config struct {
	Seed              int64                    `json:"seed" yaml:"seed"`
	StopTime          timing.VTimeInPS         `json:"stop_time,omitempty" yaml:"stop_time,omitempty"`
	Nodes             []NodeConfig             `json:"nodes" yaml:"nodes"`
	QuantumChannels   []QuantumChannelConfig   `json:"quantum_channels,omitempty" yaml:"quantum_channels,omitempty"`
	ClassicalChannels []ClassicalChannelConfig `json:"classical_channels,omitempty" yaml:"classical_channels,omitempty"`
	Traffic           TrafficConfig            `json:"traffic,omitempty" yaml:"traffic,omitempty"`
}

// NodeConfig describes a node.
type NodeConfig struct {
	Name     string   `json:"name" yaml:"name"`
	Memories []string `json:"memories,omitempty" yaml:"memories,omitempty"`
}

// QuantumChannelConfig describes a quantum channel. Omitted fidelity means
// 1; omitted frequency means optical.DefaultFrequency.
type QuantumChannelConfig struct {
	Name                 string   `json:"name" yaml:"name"`
	Src                  string   `json:"src" yaml:"src"`
	Dst                  string   `json:"dst" yaml:"dst"`
	Distance             float64  `json:"distance" yaml:"distance"`
	Attenuation          float64  `json:"attenuation" yaml:"attenuation"`
	PolarizationFidelity *float64 `json:"polarization_fidelity,omitempty" yaml:"polarization_fidelity,omitempty"`
	Frequency            float64  `json:"frequency,omitempty" yaml:"frequency,omitempty"`
}

// ClassicalChannelConfig describes a classical channel. An omitted delay is
// derived from the distance.
type ClassicalChannelConfig struct {
	Name     string            `json:"name" yaml:"name"`
	Src      string            `json:"src" yaml:"src"`
	Dst      string            `json:"dst" yaml:"dst"`
	Distance float64           `json:"distance" yaml:"distance"`
	Delay    *timing.VTimeInPS `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// TrafficConfig describes the workloads.
type TrafficConfig struct {
	Pings   []PingConfig   `json:"pings,omitempty" yaml:"pings,omitempty"`
	Photons []PhotonConfig `json:"photons,omitempty" yaml:"photons,omitempty"`
}

// PingConfig schedules Count pings from Src to Dst.
type PingConfig struct {
	Src      string           `json:"src" yaml:"src"`
	Dst      string           `json:"dst" yaml:"dst"`
	Start    timing.VTimeInPS `json:"start" yaml:"start"`
	Count    int              `json:"count" yaml:"count"`
	Interval timing.VTimeInPS `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// PhotonConfig emits Count photons from Src to the neighbor Dst.
type PhotonConfig struct {
	Src      string           `json:"src" yaml:"src"`
	Dst      string           `json:"dst" yaml:"dst"`
	Start    timing.VTimeInPS `json:"start" yaml:"start"`
	Count    int              `json:"count" yaml:"count"`
	Encoding optical.Encoding `json:"encoding,omitempty" yaml:"encoding,omitempty"`
}

// Load reads a configuration file. Files ending in .json are read as JSON,
// everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}

	useYAML := !strings.EqualFold(filepath.Ext(path), ".json")

	cfg, err := Parse(data, useYAML)
	if err != nil {
		return nil, fmt.Errorf("topology %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a configuration.
func Parse(data []byte, useYAML bool) (*Config, error) {
	cfg := &Config{}

	var err error
	if useYAML {
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
	} else {
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration describes a network.
func (c *Config) Validate() error {
	v := &validator{names: make(map[string]bool), nodes: make(map[string]bool)}

	if len(c.Nodes) == 0 {
		v.fail("no nodes")
	}

	if c.StopTime < 0 {
		v.fail("negative stop time %d", c.StopTime)
	}

	for _, n := range c.Nodes {
		v.entity("node", n.Name)
		v.nodes[n.Name] = true

		seen := map[string]bool{}
		for _, m := range n.Memories {
			if m == "" || seen[m] {
				v.fail("node %s: empty or duplicated memory %q", n.Name, m)
			}

			seen[m] = true
		}
	}

	for _, qc := range c.QuantumChannels {
		v.channel(qc.Name, qc.Src, qc.Dst, qc.Distance)
		v.quantumParameters(qc)
	}

	for _, cc := range c.ClassicalChannels {
		v.channel(cc.Name, cc.Src, cc.Dst, cc.Distance)

		if cc.Delay != nil && *cc.Delay < 0 {
			v.fail("channel %s: negative delay", cc.Name)
		}
	}

	for _, p := range c.Traffic.Pings {
		v.endpoints("ping", p.Src, p.Dst)
		v.workload("ping", p.Start, p.Count)

		if p.Count > 1 && p.Interval <= 0 {
			v.fail("ping %s -> %s: repeated pings need a positive interval", p.Src, p.Dst)
		}
	}

	for _, p := range c.Traffic.Photons {
		v.endpoints("photon", p.Src, p.Dst)
		v.workload("photon", p.Start, p.Count)
		v.photonChannel(c, p)
	}

	return v.err()
}

type validator struct {
	names    map[string]bool
	nodes    map[string]bool
	problems []string
}

func (v *validator) fail(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(v.problems, "; "))
}

func (v *validator) entity(kind, name string) {
	if err := validName(name); err != nil {
		v.fail("%s: %v", kind, err)
		return
	}

	if v.names[name] {
		v.fail("%s: name %s is used twice", kind, name)
	}

	v.names[name] = true
}

func (v *validator) channel(name, src, dst string, distance float64) {
	v.entity("channel", name)
	v.endpoints("channel "+name, src, dst)

	if distance < 0 {
		v.fail("channel %s: negative distance", name)
	}
}

func (v *validator) endpoints(what, src, dst string) {
	if !v.nodes[src] || !v.nodes[dst] {
		v.fail("%s: unknown node in %s -> %s", what, src, dst)
	}

	if src == dst {
		v.fail("%s: %s connects to itself", what, src)
	}
}

func (v *validator) workload(what string, start timing.VTimeInPS, count int) {
	if start < 0 || count < 0 {
		v.fail("%s: negative start or count", what)
	}
}

func (v *validator) quantumParameters(qc QuantumChannelConfig) {
	if qc.Attenuation < 0 {
		v.fail("channel %s: negative attenuation", qc.Name)
	}

	if f := qc.PolarizationFidelity; f != nil && (*f < 0 || *f > 1) {
		v.fail("channel %s: polarization fidelity %g not in [0, 1]", qc.Name, *f)
	}

	if qc.Frequency < 0 || qc.Frequency > optical.MaxFrequency {
		v.fail("channel %s: frequency %g not in (0, %g]",
			qc.Name, qc.Frequency, optical.MaxFrequency)
	}
}

func (v *validator) photonChannel(c *Config, p PhotonConfig) {
	switch p.Encoding {
	case "", optical.EncodingPolarization, optical.EncodingTimeBin,
		optical.EncodingSingleAtom, optical.EncodingSingleHeralded,
		optical.EncodingAbsorptive, optical.EncodingFock:
	default:
		v.fail("photon %s -> %s: unknown encoding %q", p.Src, p.Dst, p.Encoding)
	}

	for _, qc := range c.QuantumChannels {
		if qc.Src == p.Src && qc.Dst == p.Dst {
			return
		}
	}

	v.fail("photon %s -> %s: no quantum channel", p.Src, p.Dst)
}

func validName(name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	naming.NameMustBeValid(name)

	return nil
}
