package tracing

import (
	"context"
	"math/rand"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/qnetsim/datarecording"
	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/node"
	"github.com/sarchlab/qnetsim/optical"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/simulation"
	"github.com/sarchlab/qnetsim/sim/timing"
)

type domain struct {
	*hooking.HookableBase
	name string
}

func (d domain) Name() string { return d.name }

type qubit struct{ null bool }

func (q qubit) Encoding() optical.Encoding { return optical.EncodingPolarization }
func (q qubit) IsNull() bool               { return q.null }
func (q qubit) QuantumStateKey() int       { return -1 }
func (q qubit) AddLoss(float64)            {}
func (q qubit) RandomNoise(*rand.Rand)     {}

type sink struct {
	got int
}

func (s *sink) Name() string { return "sink" }

func (s *sink) ReceivedMessage(string, *message.Msg) error {
	s.got++
	return nil
}

var _ = Describe("CollectTrace", func() {
	It("should attach a hook once", func() {
		d := domain{HookableBase: hooking.NewHookableBase(), name: "qc"}
		c := NewCounter()

		CollectTrace(d, c)

		Expect(d.Hooks()).To(ConsistOf(c))
		Expect(func() { CollectTrace(d, c) }).To(Panic())
	})
})

var _ = Describe("Counter", func() {
	It("should count per domain and position", func() {
		c := NewCounter()
		qc := domain{HookableBase: hooking.NewHookableBase(), name: "qc"}
		cc := domain{HookableBase: hooking.NewHookableBase(), name: "cc"}

		c.Func(hooking.HookCtx{Domain: qc, Pos: optical.HookPosQubitSend})
		c.Func(hooking.HookCtx{Domain: qc, Pos: optical.HookPosQubitSend})
		c.Func(hooking.HookCtx{Domain: qc, Pos: optical.HookPosQubitLost})
		c.Func(hooking.HookCtx{Domain: cc, Pos: optical.HookPosMsgSend})

		Expect(c.Domains()).To(Equal([]string{"cc", "qc"}))
		Expect(c.Count("qc", optical.HookPosQubitSend)).To(Equal(uint64(2)))
		Expect(c.Count("qc", optical.HookPosQubitDeliver)).To(Equal(uint64(0)))
		Expect(c.Count("dc", optical.HookPosMsgSend)).To(Equal(uint64(0)))
		Expect(c.Snapshot("qc")).To(Equal(map[string]uint64{
			"QubitSend": 2,
			"QubitLost": 1,
		}))
	})
})

var _ = Describe("Recorders", func() {
	var (
		mockCtrl   *gomock.Controller
		recorder   *MockDataRecorder
		timeTeller *MockTimeTeller
		qc         domain
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		recorder = NewMockDataRecorder(mockCtrl)
		timeTeller = NewMockTimeTeller(mockCtrl)
		qc = domain{HookableBase: hooking.NewHookableBase(), name: "qc.alice.bob"}
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should record channel events", func() {
		recorder.EXPECT().CreateTable(ChannelTableName, ChannelEvent{})
		timeTeller.EXPECT().Now().Return(timing.VTimeInPS(12500))

		var row ChannelEvent
		recorder.EXPECT().InsertData(ChannelTableName, gomock.Any()).
			Do(func(_ string, entry any) { row = entry.(ChannelEvent) })

		r := NewChannelRecorder(recorder, timeTeller)
		r.Func(hooking.HookCtx{
			Domain: qc,
			Pos:    optical.HookPosQubitLost,
			Item:   qubit{null: true},
			Detail: optical.Detail{Src: "alice", Dst: "bob"},
		})

		Expect(row.ID).NotTo(BeEmpty())
		row.ID = ""
		Expect(row).To(Equal(ChannelEvent{
			Time:    12500,
			Channel: "qc.alice.bob",
			Event:   "QubitLost",
			Src:     "alice",
			Dst:     "bob",
			Item:    "null polarization",
		}))
	})

	It("should ignore other positions", func() {
		recorder.EXPECT().CreateTable(ChannelTableName, ChannelEvent{})

		r := NewChannelRecorder(recorder, timeTeller)
		r.Func(hooking.HookCtx{Domain: qc, Pos: protocol.HookPosPushDown})
	})

	It("should record stack events", func() {
		recorder.EXPECT().CreateTable(StackTableName, StackEvent{})
		timeTeller.EXPECT().Now().Return(timing.VTimeInPS(7))

		var row StackEvent
		recorder.EXPECT().InsertData(StackTableName, gomock.Any()).
			Do(func(_ string, entry any) { row = entry.(StackEvent) })

		msg := message.MsgBuilder{}.WithKind("PING").Build()
		layer := domain{HookableBase: hooking.NewHookableBase(), name: "routing"}

		r := NewStackRecorder(recorder, timeTeller)
		r.Func(hooking.HookCtx{
			Domain: layer,
			Pos:    protocol.HookPosPushDown,
			Item:   msg,
			Detail: "carol",
		})
		r.Func(hooking.HookCtx{Domain: layer, Pos: optical.HookPosMsgSend, Item: msg})

		Expect(row.Layer).To(Equal("routing"))
		Expect(row.Event).To(Equal("PushDown"))
		Expect(row.Peer).To(Equal("carol"))
		Expect(row.MsgID).To(Equal(msg.ID))
		Expect(row.Kind).To(Equal("PING"))
		Expect(row.Time).To(Equal(timing.VTimeInPS(7)))
	})
})

var _ = Describe("ChannelRecorder in a simulation", func() {
	It("should write a row per message sent and delivered", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		rec := datarecording.New(path)

		sim := simulation.NewSimulation()
		alice := node.NewNode("alice", sim)
		bob := node.NewNode("bob", sim)
		s := &sink{}
		Expect(bob.AddProtocol(s)).To(Succeed())
		sim.RegisterEntity(alice)
		sim.RegisterEntity(bob)

		cc := optical.MakeClassicalChannelBuilder().
			WithTimeline(sim).
			WithDistance(1000).
			Build("cc.alice.bob")
		cc.SetEnds(alice, "bob")
		sim.RegisterEntity(cc)

		CollectTrace(cc, NewChannelRecorder(rec, sim))
		sim.Init()

		msg := message.MsgBuilder{}.WithKind("HELLO").WithReceiver("sink").Build()
		Expect(alice.SendMessage("bob", msg, 0)).To(Succeed())
		Expect(sim.Run()).To(Succeed())
		Expect(rec.Close()).To(Succeed())
		Expect(s.got).To(Equal(1))

		reader, err := datarecording.NewReader(path)
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(ChannelTableName, ChannelEvent{})
		rows, total, err := reader.Query(context.Background(), ChannelTableName,
			datarecording.QueryParams{OrderBy: "Time"})

		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(rows[0].(*ChannelEvent).Event).To(Equal("MsgSend"))
		Expect(rows[0].(*ChannelEvent).Time).To(Equal(timing.VTimeInPS(0)))
		Expect(rows[1].(*ChannelEvent).Event).To(Equal("MsgDeliver"))
		Expect(rows[1].(*ChannelEvent).Time).To(Equal(timing.VTimeInPS(15_000_000)))
		Expect(rows[1].(*ChannelEvent).Item).To(Equal("HELLO"))
	})
})
