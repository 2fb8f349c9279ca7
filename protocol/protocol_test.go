package protocol

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/qnetsim/message"
	"github.com/sarchlab/qnetsim/sim/hooking"
)

type node string

func (n node) Name() string { return string(n) }

type relay struct {
	peer string
	msg  *message.Msg
}

type recordingLayer struct {
	StackBase
	pushed []relay
	popped []relay
	err    error
}

func newRecordingLayer(name string) *recordingLayer {
	return &recordingLayer{StackBase: MakeStackBase(name, node("alice"))}
}

func (l *recordingLayer) Push(dst string, msg *message.Msg, _ string) error {
	l.pushed = append(l.pushed, relay{peer: dst, msg: msg})
	return l.err
}

func (l *recordingLayer) Pop(src string, msg *message.Msg) error {
	l.popped = append(l.popped, relay{peer: src, msg: msg})
	return l.err
}

func (l *recordingLayer) ReceivedMessage(string, *message.Msg) error {
	return nil
}

var _ = Describe("StackBase", func() {
	var (
		bottom, middle, top *recordingLayer
		msg                 *message.Msg
	)

	BeforeEach(func() {
		bottom = newRecordingLayer("bottom")
		middle = newRecordingLayer("middle")
		top = newRecordingLayer("top")
		msg = message.MsgBuilder{}.WithKind("PING").Build()

		Stack(bottom, middle, top)
	})

	It("should wire the layers from the bottom up", func() {
		Expect(bottom.UpperProtocols()).To(ConsistOf(middle))
		Expect(middle.LowerProtocols()).To(ConsistOf(bottom))
		Expect(middle.UpperProtocols()).To(ConsistOf(top))
		Expect(top.LowerProtocols()).To(ConsistOf(middle))
		Expect(top.Owner().Name()).To(Equal("alice"))
	})

	It("should push down and pop up", func() {
		Expect(middle.PushDown("bob", msg)).To(Succeed())
		Expect(middle.PopUp("bob", msg)).To(Succeed())

		Expect(bottom.pushed).To(Equal([]relay{{peer: "bob", msg: msg}}))
		Expect(top.popped).To(Equal([]relay{{peer: "bob", msg: msg}}))
	})

	It("should fan out to every neighbor", func() {
		other := newRecordingLayer("other")
		middle.AddUpper(other)

		Expect(middle.PopUp("bob", msg)).To(Succeed())

		Expect(top.popped).To(HaveLen(1))
		Expect(other.popped).To(HaveLen(1))
	})

	It("should stop at the first error", func() {
		boom := errors.New("boom")
		top.err = boom
		other := newRecordingLayer("other")
		middle.AddUpper(other)

		err := middle.PopUp("bob", msg)

		Expect(err).To(MatchError(boom))
		Expect(other.popped).To(BeEmpty())
	})

	It("should fail without a layer to relay to", func() {
		Expect(bottom.PushDown("bob", msg)).To(MatchError(ErrNoLayer))
		Expect(top.PopUp("bob", msg)).To(MatchError(ErrNoLayer))
	})

	It("should invoke hooks on relays", func() {
		var positions []*hooking.HookPos
		hook := hooking.HookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		})
		middle.AcceptHook(&hook)

		Expect(middle.PushDown("bob", msg)).To(Succeed())
		Expect(middle.PopUp("bob", msg)).To(Succeed())

		Expect(positions).To(Equal([]*hooking.HookPos{HookPosPushDown, HookPosPopUp}))
	})
})
