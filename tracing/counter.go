package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/qnetsim/sim/hooking"
)

// A Counter counts hook invocations per domain and position. It can be read
// while the simulation runs.
type Counter struct {
	lock   sync.Mutex
	counts map[string]map[string]uint64
}

// NewCounter creates a Counter with no counts.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]map[string]uint64)}
}

// Func counts the invocation.
func (c *Counter) Func(ctx hooking.HookCtx) {
	name := domainName(ctx)

	c.lock.Lock()
	defer c.lock.Unlock()

	perPos, ok := c.counts[name]
	if !ok {
		perPos = make(map[string]uint64)
		c.counts[name] = perPos
	}

	perPos[ctx.Pos.Name]++
}

// Count returns how many times the hook at pos fired in domain.
func (c *Counter) Count(domain string, pos *hooking.HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.counts[domain][pos.Name]
}

// Domains returns the names of the domains counted, sorted.
func (c *Counter) Domains() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := make([]string, 0, len(c.counts))
	for name := range c.counts {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Snapshot returns a copy of the counts of a domain, keyed by position name.
func (c *Counter) Snapshot(domain string) map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	snapshot := make(map[string]uint64, len(c.counts[domain]))
	for pos, n := range c.counts[domain] {
		snapshot[pos] = n
	}

	return snapshot
}
