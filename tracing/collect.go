// Package tracing observes channels and protocol layers through their hooks.
// Recorders write what they observe into a data recorder, and counters keep
// per-domain statistics in memory.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/qnetsim/sim/hooking"
)

// CollectTrace attaches hook to domain. It panics if the hook is already
// attached.
func CollectTrace(domain hooking.NamedHookable, hook hooking.Hook) {
	for _, h := range domain.Hooks() {
		if h == hook {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(hook)))
		}
	}

	domain.AcceptHook(hook)
}

func domainName(ctx hooking.HookCtx) string {
	if named, ok := ctx.Domain.(hooking.NamedHookable); ok {
		return named.Name()
	}

	return fmt.Sprintf("%T", ctx.Domain)
}
