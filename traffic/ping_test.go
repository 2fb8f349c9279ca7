package traffic

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/protocol"
	"github.com/sarchlab/qnetsim/sim/timing"
)

type owner string

func (o owner) Name() string { return string(o) }

type pushed struct {
	dst string
	msg *message.Msg
}

type lowerLayer struct {
	protocol.StackBase
	pushed []pushed
}

func (l *lowerLayer) Push(dst string, msg *message.Msg, _ string) error {
	l.pushed = append(l.pushed, pushed{dst: dst, msg: msg})
	return nil
}

func (l *lowerLayer) Pop(src string, msg *message.Msg) error {
	return l.PopUp(src, msg)
}

func (l *lowerLayer) ReceivedMessage(string, *message.Msg) error {
	return nil
}

func pingMsg(kind message.MsgType, origin, target string, sentAt int64) *message.Msg {
	return message.MsgBuilder{}.
		WithKind(kind).
		WithReceiver("ping").
		WithPayload(message.Body{
			fieldOrigin: origin,
			fieldTarget: target,
			fieldSentAt: sentAt,
		}).
		Build()
}

var _ = Describe("PingApp", func() {
	var (
		mockCtrl  *gomock.Controller
		scheduler *MockEventScheduler
		lower     *lowerLayer
		app       *PingApp
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		scheduler = NewMockEventScheduler(mockCtrl)
		lower = &lowerLayer{StackBase: protocol.MakeStackBase("routing", owner("bob"))}
		app = NewPingApp(owner("bob"), "ping", scheduler)
		protocol.Stack(lower, app)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should send pings down the stack", func() {
		scheduler.EXPECT().Now().Return(timing.VTimeInPS(100))

		Expect(app.Ping("carol")).To(Succeed())

		Expect(app.NumSent()).To(Equal(1))
		Expect(lower.pushed).To(HaveLen(1))
		Expect(lower.pushed[0].dst).To(Equal("carol"))

		msg := lower.pushed[0].msg
		Expect(msg.Kind).To(Equal(MsgKindPing))
		Expect(msg.Receiver).To(Equal("ping"))

		body, ok := msg.Body()
		Expect(ok).To(BeTrue())
		Expect(body).To(Equal(message.Body{
			fieldOrigin: "bob",
			fieldTarget: "carol",
			fieldSentAt: int64(100),
		}))
	})

	It("should schedule pings at intervals", func() {
		var times []timing.VTimeInPS
		scheduler.EXPECT().Schedule(gomock.Any()).
			Do(func(e timing.Event) {
				Expect(e.Handler()).To(BeIdenticalTo(app))
				times = append(times, e.Time())
			}).
			Times(3)

		app.SchedulePings("carol", 10, 3, 5)

		Expect(times).To(Equal([]timing.VTimeInPS{10, 15, 20}))
	})

	It("should ping when a scheduled event fires", func() {
		var evt timing.Event
		scheduler.EXPECT().Schedule(gomock.Any()).Do(func(e timing.Event) { evt = e })
		scheduler.EXPECT().Now().Return(timing.VTimeInPS(10))

		app.SchedulePings("alice", 10, 1, 0)
		Expect(app.Handle(evt)).To(Succeed())

		Expect(lower.pushed[0].dst).To(Equal("alice"))
	})

	It("should panic on foreign events", func() {
		Expect(func() { _ = app.Handle(timing.NewEventBase(0, app)) }).To(Panic())
	})

	It("should answer pings", func() {
		Expect(lower.Pop("alice", pingMsg(MsgKindPing, "alice", "bob", 7))).To(Succeed())

		Expect(app.NumAnswered()).To(Equal(1))
		Expect(lower.pushed).To(HaveLen(1))
		Expect(lower.pushed[0].dst).To(Equal("alice"))

		pong := lower.pushed[0].msg
		Expect(pong.Kind).To(Equal(MsgKindPong))

		body, _ := pong.Body()
		Expect(body[fieldTarget]).To(Equal("alice"))
		Expect(body[fieldSentAt]).To(Equal(int64(7)))
	})

	It("should relay messages for other nodes", func() {
		ping := pingMsg(MsgKindPing, "alice", "carol", 7)

		Expect(lower.Pop("alice", ping)).To(Succeed())

		Expect(app.NumRelayed()).To(Equal(1))
		Expect(app.NumAnswered()).To(Equal(0))
		Expect(lower.pushed).To(Equal([]pushed{{dst: "carol", msg: ping}}))
	})

	It("should record round trip times", func() {
		scheduler.EXPECT().Now().Return(timing.VTimeInPS(107))

		Expect(lower.Pop("carol", pingMsg(MsgKindPong, "carol", "bob", 7))).To(Succeed())

		Expect(app.RoundTripTimes()).To(Equal([]timing.VTimeInPS{100}))
	})

	It("should reject messages without a body", func() {
		inner := message.MsgBuilder{}.WithKind(MsgKindPing).Build()
		wrapped, err := message.Wrap(MsgKindPing, "ping", inner)
		Expect(err).NotTo(HaveOccurred())

		Expect(lower.Pop("carol", wrapped)).NotTo(Succeed())
	})

	It("should reject unexpected kinds", func() {
		Expect(lower.Pop("carol", pingMsg("HELLO", "carol", "bob", 0))).NotTo(Succeed())
	})

	It("should not be addressed directly", func() {
		Expect(app.ReceivedMessage("carol", pingMsg(MsgKindPing, "carol", "bob", 0))).
			To(MatchError(ErrNotAddressable))
	})
})
