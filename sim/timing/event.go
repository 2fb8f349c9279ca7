package timing

import (
	"math"

	"github.com/sarchlab/qnetsim/sim/hooking"
	"github.com/sarchlab/qnetsim/sim/id"
)

// VTimeInPS is the simulated time in the unit of picoseconds.
type VTimeInPS int64

// Units of simulated time.
const (
	Picosecond  VTimeInPS = 1
	Nanosecond  VTimeInPS = 1_000
	Microsecond VTimeInPS = 1_000_000
	Millisecond VTimeInPS = 1_000_000_000
	Second      VTimeInPS = 1_000_000_000_000
)

// DefaultPriority is the priority of events that do not ask for one. Such
// events run after every explicitly prioritized event at the same time.
const DefaultPriority = math.MaxInt

// An Event is something going to happen in the future.
type Event interface {
	// Time returns the time that the event should happen.
	Time() VTimeInPS

	// Handler returns the handler that should handle the event.
	Handler() Handler

	// Priority orders events that happen at the same time. Lower values are
	// handled first.
	Priority() int
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	ID       string
	time     VTimeInPS
	handler  Handler
	priority int
}

// NewEventBase creates a new EventBase with the default priority.
func NewEventBase(t VTimeInPS, handler Handler) *EventBase {
	return NewEventBaseWithPriority(t, handler, DefaultPriority)
}

// NewEventBaseWithPriority creates a new EventBase with an explicit priority.
func NewEventBaseWithPriority(
	t VTimeInPS,
	handler Handler,
	priority int,
) *EventBase {
	e := new(EventBase)
	e.ID = id.Generate()
	e.time = t
	e.handler = handler
	e.priority = priority

	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTimeInPS {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// Priority returns the same-time ordering key of the event.
func (e EventBase) Priority() int {
	return e.priority
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}
