package optical

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/logging"
	"github.com/sarchlab/qnetsim/sim/timing"
)

var _ = Describe("ClassicalChannel", func() {
	var (
		mockCtrl  *gomock.Controller
		timeline  *MockTimeline
		sender    *MockNode
		now       timing.VTimeInPS
		scheduled []timing.Event
		cc        *ClassicalChannel
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		timeline = NewMockTimeline(mockCtrl)
		sender = NewMockNode(mockCtrl)
		now = 0
		scheduled = nil

		timeline.EXPECT().Logger().Return(logging.Discard()).AnyTimes()
		timeline.EXPECT().Now().DoAndReturn(func() timing.VTimeInPS {
			return now
		}).AnyTimes()
		timeline.EXPECT().Schedule(gomock.Any()).Do(func(e timing.Event) {
			scheduled = append(scheduled, e)
		}).AnyTimes()

		sender.EXPECT().Name().Return("alice").AnyTimes()

		cc = MakeClassicalChannelBuilder().
			WithTimeline(timeline).
			WithDistance(1000).
			Build("cc.alice.bob")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should derive the delay from the distance", func() {
		Expect(cc.Delay()).To(Equal(timing.VTimeInPS(15_000_000)))
	})

	It("should use an explicit delay", func() {
		cc = MakeClassicalChannelBuilder().
			WithTimeline(timeline).
			WithDistance(1000).
			WithDelay(42).
			Build("cc.alice.bob")

		Expect(cc.Delay()).To(Equal(timing.VTimeInPS(42)))
	})

	It("should panic before the ends are set", func() {
		msg := message.MsgBuilder{}.WithKind("PING").Build()

		Expect(func() { cc.Transmit(msg, sender, 0) }).To(Panic())
	})

	Context("with ends set", func() {
		BeforeEach(func() {
			sender.EXPECT().AssignClassicalChannel(cc, "bob")
			cc.SetEnds(sender, "bob")
		})

		It("should panic if the source is not the sender", func() {
			other := NewMockNode(mockCtrl)
			other.EXPECT().Name().Return("carol").AnyTimes()
			msg := message.MsgBuilder{}.WithKind("PING").Build()

			Expect(func() { cc.Transmit(msg, other, 0) }).To(Panic())
		})

		It("should schedule one arrival per message", func() {
			for i := 0; i < 5; i++ {
				now = timing.VTimeInPS(i * 1000)
				msg := message.MsgBuilder{}.WithKind("PING").Build()

				cc.Transmit(msg, sender, i)
			}

			Expect(scheduled).To(HaveLen(5))
			for i, e := range scheduled {
				Expect(e.Time()).To(Equal(timing.VTimeInPS(i*1000) + cc.Delay()))
				Expect(e.Priority()).To(Equal(i))
				Expect(e.Handler()).To(BeIdenticalTo(cc))
			}
			Expect(cc.NumSent()).To(Equal(uint64(5)))
		})

		It("should hand the message to the receiver", func() {
			msg := message.MsgBuilder{}.WithKind("PING").Build()
			cc.Transmit(msg, sender, 0)
			bob := newRecordingReceiver("bob")
			timeline.EXPECT().GetEntityByName("bob").Return(bob)

			Expect(cc.Handle(scheduled[0])).To(Succeed())
			Expect(bob.arrivals).To(HaveLen(1))
			Expect(bob.arrivals[0].src).To(Equal("alice"))
			Expect(bob.arrivals[0].msg).To(BeIdenticalTo(msg))
		})

		It("should fail when the receiver does not exist", func() {
			cc.Transmit(message.MsgBuilder{}.Build(), sender, 0)
			timeline.EXPECT().GetEntityByName("bob").Return(nil)

			Expect(cc.Handle(scheduled[0])).To(MatchError(ErrUnknownReceiver))
		})
	})
})
