package timing

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/qnetsim/sim/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	hooking.HookableBase

	timeLock sync.RWMutex
	time     VTimeInPS
	queue    EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex

	numEventsHandled uint64
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)
	e.queue = NewEventQueue()

	return e
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), now,
		))
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInPS {
	e.timeLock.RLock()
	t := e.time
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInPS) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine.
//
// An error returned by a handler aborts the run. The error is returned,
// wrapped with the type and time of the event that failed.
func (e *SerialEngine) Run() error {
	return e.run(func(Event) bool { return true })
}

// RunUntil processes the events that happen no later than stopTime. Later
// events stay in the queue.
func (e *SerialEngine) RunUntil(stopTime VTimeInPS) error {
	return e.run(func(evt Event) bool { return evt.Time() <= stopTime })
}

func (e *SerialEngine) run(shouldHandle func(Event) bool) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		if e.queue.Len() == 0 {
			return nil
		}

		if !shouldHandle(e.queue.Peek()) {
			return nil
		}

		e.pauseLock.Lock()
		err := e.handleNextEvent()
		e.pauseLock.Unlock()

		if err != nil {
			return err
		}
	}
}

func (e *SerialEngine) handleNextEvent() error {
	evt := e.queue.Pop()
	now := e.readNow()

	if evt.Time() < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), now,
		))
	}

	e.writeNow(evt.Time())

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)
	atomic.AddUint64(&e.numEventsHandled, 1)

	hookCtx.Pos = HookPosAfterEvent
	hookCtx.Detail = err
	e.InvokeHook(hookCtx)

	if err != nil {
		return fmt.Errorf("timing: event %s @ %d: %w",
			reflect.TypeOf(evt), evt.Time(), err)
	}

	return nil
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// Now returns the current time at which the engine is at. Specifically, the
// run time of the current event.
func (e *SerialEngine) Now() VTimeInPS {
	return e.readNow()
}

// NumPendingEvents returns the number of events waiting in the queue.
func (e *SerialEngine) NumPendingEvents() int {
	return e.queue.Len()
}

// NumEventsHandled returns the number of events the engine has handled.
func (e *SerialEngine) NumEventsHandled() uint64 {
	return atomic.LoadUint64(&e.numEventsHandled)
}
