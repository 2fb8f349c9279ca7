package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HookableBase", func() {
	var (
		base  *HookableBase
		calls []string
	)

	BeforeEach(func() {
		base = NewHookableBase()
		calls = nil
	})

	newHook := func(label string) *HookFunc {
		f := HookFunc(func(ctx HookCtx) {
			calls = append(calls, label+":"+ctx.Pos.Name)
		})
		return &f
	}

	It("should invoke hooks in registration order", func() {
		base.AcceptHook(newHook("a"))
		base.AcceptHook(newHook("b"))

		base.InvokeHook(HookCtx{Domain: base, Pos: &HookPos{Name: "p"}})

		Expect(base.NumHooks()).To(Equal(2))
		Expect(calls).To(Equal([]string{"a:p", "b:p"}))
	})

	It("should panic on duplicated hooks", func() {
		hook := newHook("a")
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})

	It("should remove hooks", func() {
		a := newHook("a")
		b := newHook("b")
		base.AcceptHook(a)
		base.AcceptHook(b)

		base.RemoveHook(a)
		base.InvokeHook(HookCtx{Pos: &HookPos{Name: "p"}})

		Expect(base.Hooks()).To(HaveLen(1))
		Expect(calls).To(Equal([]string{"b:p"}))
	})
})
