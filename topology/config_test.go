package topology

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/sim/timing"
)

const lineYAML = `
seed: 7
nodes:
  - name: alice
    memories: [m0, m1]
  - name: bob
  - name: carol
quantum_channels:
  - {name: qc.alice.bob, src: alice, dst: bob, distance: 1000, attenuation: 0}
  - {name: qc.bob.carol, src: bob, dst: carol, distance: 1000, attenuation: 0}
classical_channels:
  - {name: cc.alice.bob, src: alice, dst: bob, distance: 1000}
  - {name: cc.bob.alice, src: bob, dst: alice, distance: 1000}
  - {name: cc.bob.carol, src: bob, dst: carol, distance: 1000}
  - {name: cc.carol.bob, src: carol, dst: bob, distance: 1000}
traffic:
  pings:
    - {src: alice, dst: carol, start: 0, count: 1}
  photons:
    - {src: alice, dst: bob, start: 0, count: 5}
`

func validConfig() *Config {
	return &Config{
		Nodes: []NodeConfig{{Name: "alice"}, {Name: "bob"}},
		QuantumChannels: []QuantumChannelConfig{
			{Name: "qc", Src: "alice", Dst: "bob", Distance: 10},
		},
		ClassicalChannels: []ClassicalChannelConfig{
			{Name: "cc.ab", Src: "alice", Dst: "bob", Distance: 10},
			{Name: "cc.ba", Src: "bob", Dst: "alice", Distance: 10},
		},
	}
}

var _ = Describe("Config", func() {
	It("should parse yaml", func() {
		cfg, err := Parse([]byte(lineYAML), true)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Seed).To(Equal(int64(7)))
		Expect(cfg.Nodes).To(HaveLen(3))
		Expect(cfg.Nodes[0].Memories).To(Equal([]string{"m0", "m1"}))
		Expect(cfg.QuantumChannels).To(HaveLen(2))
		Expect(cfg.QuantumChannels[0].PolarizationFidelity).To(BeNil())
		Expect(cfg.ClassicalChannels).To(HaveLen(4))
		Expect(cfg.Traffic.Pings).To(HaveLen(1))
		Expect(cfg.Traffic.Photons[0].Count).To(Equal(5))
	})

	It("should parse json", func() {
		data := []byte(`{
			"nodes": [{"name": "alice"}, {"name": "bob"}],
			"classical_channels": [
				{"name": "cc", "src": "alice", "dst": "bob", "distance": 1, "delay": 42}
			]
		}`)

		cfg, err := Parse(data, false)

		Expect(err).NotTo(HaveOccurred())
		Expect(*cfg.ClassicalChannels[0].Delay).To(BeEquivalentTo(42))
	})

	It("should reject unknown fields", func() {
		_, err := Parse([]byte("nodes: [{name: a}]\ncolour: red\n"), true)
		Expect(err).To(MatchError(ErrInvalidConfig))

		_, err = Parse([]byte(`{"nodes": [{"name": "a"}], "colour": "red"}`), false)
		Expect(err).To(MatchError(ErrInvalidConfig))
	})

	It("should load files by extension", func() {
		dir := GinkgoT().TempDir()

		yamlPath := filepath.Join(dir, "line.yaml")
		Expect(os.WriteFile(yamlPath, []byte(lineYAML), 0o600)).To(Succeed())

		cfg, err := Load(yamlPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Nodes).To(HaveLen(3))

		jsonPath := filepath.Join(dir, "pair.JSON")
		Expect(os.WriteFile(jsonPath, []byte(`{"nodes": [{"name": "a"}]}`), 0o600)).
			To(Succeed())

		cfg, err = Load(jsonPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Nodes[0].Name).To(Equal("a"))
	})

	It("should fail to load a missing file", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "none.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("should accept a valid config", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	DescribeTable("should reject",
		func(mutate func(c *Config), problem string) {
			cfg := validConfig()
			mutate(cfg)

			err := cfg.Validate()

			Expect(err).To(MatchError(ErrInvalidConfig))
			assert.Contains(GinkgoT(), err.Error(), problem)
		},
		Entry("no nodes", func(c *Config) {
			c.Nodes = nil
		}, "no nodes"),
		Entry("duplicated names", func(c *Config) {
			c.ClassicalChannels[1].Name = "qc"
		}, "used twice"),
		Entry("invalid names", func(c *Config) {
			c.Nodes = append(c.Nodes, NodeConfig{Name: "a..b"})
		}, "node"),
		Entry("duplicated memories", func(c *Config) {
			c.Nodes[0].Memories = []string{"m", "m"}
		}, "duplicated memory"),
		Entry("unknown endpoints", func(c *Config) {
			c.QuantumChannels[0].Dst = "carol"
		}, "unknown node"),
		Entry("self loops", func(c *Config) {
			c.ClassicalChannels[0].Dst = "alice"
		}, "connects to itself"),
		Entry("negative distances", func(c *Config) {
			c.QuantumChannels[0].Distance = -1
		}, "negative distance"),
		Entry("negative attenuation", func(c *Config) {
			c.QuantumChannels[0].Attenuation = -0.1
		}, "negative attenuation"),
		Entry("fidelity above one", func(c *Config) {
			f := 1.5
			c.QuantumChannels[0].PolarizationFidelity = &f
		}, "polarization fidelity"),
		Entry("too high frequencies", func(c *Config) {
			c.QuantumChannels[0].Frequency = 2e12
		}, "frequency"),
		Entry("negative delays", func(c *Config) {
			d := timing.VTimeInPS(-1)
			c.ClassicalChannels[0].Delay = &d
		}, "negative delay"),
		Entry("repeated pings without interval", func(c *Config) {
			c.Traffic.Pings = []PingConfig{{Src: "alice", Dst: "bob", Count: 2}}
		}, "positive interval"),
		Entry("photons without a quantum channel", func(c *Config) {
			c.Traffic.Photons = []PhotonConfig{{Src: "bob", Dst: "alice", Count: 1}}
		}, "no quantum channel"),
		Entry("unknown encodings", func(c *Config) {
			c.Traffic.Photons = []PhotonConfig{
				{Src: "alice", Dst: "bob", Count: 1, Encoding: optical.Encoding("spin")},
			}
		}, "unknown encoding"),
	)
})
