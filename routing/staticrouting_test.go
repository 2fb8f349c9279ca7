package routing

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/qnetsim/message"
)

type owner string

func (o owner) Name() string { return string(o) }

var _ = Describe("StaticRouting", func() {
	var (
		mockCtrl *gomock.Controller
		lower    *MockStackProtocol
		upper    *MockStackProtocol
		r        *StaticRouting
		msg      *message.Msg
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		lower = NewMockStackProtocol(mockCtrl)
		upper = NewMockStackProtocol(mockCtrl)
		lower.EXPECT().Name().Return("network_manager").AnyTimes()
		upper.EXPECT().Name().Return("app").AnyTimes()

		r = NewStaticRouting(owner("alice"), "alice.routing", nil)
		r.AddLower(lower)
		r.AddUpper(upper)

		msg = message.MsgBuilder{}.
			WithKind("RESERVE").
			WithReceiver("app").
			Build()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should fail to relay a missing message", func() {
		Expect(r.AddForwardingRule("carol", "bob")).To(Succeed())

		err := r.Push("carol", nil, "")

		Expect(err).To(MatchError(message.ErrNoMessage))
	})

	It("should relay toward the next hop of the destination", func() {
		Expect(r.AddForwardingRule("carol", "bob")).To(Succeed())

		lower.EXPECT().
			Push("bob", gomock.Any(), "").
			DoAndReturn(func(_ string, env *message.Msg, _ string) error {
				Expect(env.Kind).To(Equal(MsgKindStaticRouting))
				Expect(env.Receiver).To(Equal("alice.routing"))
				inner, ok := env.Inner()
				Expect(ok).To(BeTrue())
				Expect(inner).To(BeIdenticalTo(msg))
				return nil
			})

		Expect(r.Push("carol", msg, "")).To(Succeed())
	})

	It("should relay to an explicit next hop", func() {
		lower.EXPECT().Push("bob", gomock.Any(), "").Return(nil)

		Expect(r.Push("", msg, "bob")).To(Succeed())
	})

	It("should prefer the table over an explicit next hop", func() {
		r.UpdateForwardingRule("carol", "dave")
		lower.EXPECT().Push("dave", gomock.Any(), "").Return(nil)

		Expect(r.Push("carol", msg, "bob")).To(Succeed())
	})

	It("should fail on an unknown destination", func() {
		Expect(r.Push("carol", msg, "")).To(MatchError(ErrUnknownDestination))
	})

	It("should fail without destination and next hop", func() {
		Expect(r.Push("", msg, "")).To(MatchError(ErrNoNextHop))
	})

	It("should refuse to route to its owner", func() {
		Expect(r.Push("alice", msg, "")).To(MatchError(ErrSelfDestination))
	})

	It("should pass errors from the layer below", func() {
		boom := errors.New("boom")
		lower.EXPECT().Push("bob", gomock.Any(), "").Return(boom)

		Expect(r.Push("", msg, "bob")).To(MatchError(boom))
	})

	It("should unwrap popped envelopes", func() {
		env, err := message.Wrap(MsgKindStaticRouting, "bob.routing", msg)
		Expect(err).NotTo(HaveOccurred())
		upper.EXPECT().Pop("bob", msg).Return(nil)

		Expect(r.Pop("bob", env)).To(Succeed())
	})

	It("should refuse to pop what is not a routing envelope", func() {
		Expect(r.Pop("bob", msg)).To(MatchError(ErrNotRoutingPacket))
	})

	It("should refuse raw messages", func() {
		Expect(r.ReceivedMessage("bob", msg)).To(MatchError(ErrRawMessage))
	})

	It("should refuse duplicate rules and overwrite on update", func() {
		Expect(r.AddForwardingRule("carol", "bob")).To(Succeed())
		Expect(r.AddForwardingRule("carol", "dave")).
			To(MatchError(ErrDuplicateRule))

		r.UpdateForwardingRule("carol", "dave")

		Expect(r.ForwardingTable().Rules()).
			To(Equal([]Rule{{Dst: "carol", NextHop: "dave"}}))
	})
})
