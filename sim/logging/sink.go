// Package logging provides the diagnostic sink shared by the simulation, the
// channels and the protocols.
//
// A Sink is created by the caller and handed to the objects that log. It is
// not a process-wide singleton. Attach binds a simulation clock so that every
// entry carries the simulated time; Detach unbinds it.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/qnetsim/sim/timing"
)

// SimTimeField is the entry field that holds the simulated time in
// picoseconds. Entries logged while no clock is attached carry -1.
const SimTimeField = "simtime"

// ModuleField is the entry field that names the module that logged.
const ModuleField = "module"

// A Sink filters and stamps log entries before they reach a logrus logger.
type Sink struct {
	logger  *logrus.Logger
	muted   *logrus.Logger
	clock   timing.TimeTeller
	modules map[string]bool
	all     bool
}

// New creates a Sink that writes text entries to out.
func New(out io.Writer) *Sink {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	muted := logrus.New()
	muted.SetOutput(io.Discard)
	muted.SetLevel(logrus.PanicLevel)

	s := &Sink{
		logger:  logger,
		muted:   muted,
		modules: make(map[string]bool),
	}
	logger.AddHook(&simTimeHook{sink: s})

	return s
}

// Discard creates a Sink that drops everything.
func Discard() *Sink {
	return New(io.Discard)
}

// Attach binds the clock whose time is stamped on every entry.
func (s *Sink) Attach(clock timing.TimeTeller) {
	if s.clock != nil && s.clock != clock {
		panic("logging: sink already attached to another clock")
	}

	s.clock = clock
}

// Detach unbinds the clock.
func (s *Sink) Detach() {
	s.clock = nil
}

// Attached tells if a clock is bound.
func (s *Sink) Attached() bool {
	return s.clock != nil
}

// SetLevel parses and applies a logrus level name such as "info".
func (s *Sink) SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	s.logger.SetLevel(l)

	return nil
}

// SetOutput redirects the entries.
func (s *Sink) SetOutput(out io.Writer) {
	s.logger.SetOutput(out)
}

// Logger exposes the underlying logrus logger.
func (s *Sink) Logger() *logrus.Logger {
	return s.logger
}

// TrackModule makes the entries of the module visible.
func (s *Sink) TrackModule(module string) {
	s.modules[module] = true
}

// TrackAll makes the entries of every module visible.
func (s *Sink) TrackAll() {
	s.all = true
}

// UntrackModule hides the entries of a module that was tracked.
func (s *Sink) UntrackModule(module string) error {
	if !s.modules[module] {
		return fmt.Errorf("logging: module %q is not tracked", module)
	}

	delete(s.modules, module)

	return nil
}

// IsTracked tells if entries of the module are visible.
func (s *Sink) IsTracked(module string) bool {
	return s.all || s.modules[module]
}

// For returns the entry that a module logs with. Entries of untracked
// modules are discarded.
func (s *Sink) For(module string) *logrus.Entry {
	if !s.IsTracked(module) {
		return logrus.NewEntry(s.muted)
	}

	return s.logger.WithField(ModuleField, module)
}

func (s *Sink) now() int64 {
	if s.clock == nil {
		return -1
	}

	return int64(s.clock.Now())
}

type simTimeHook struct {
	sink *Sink
}

func (h *simTimeHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *simTimeHook) Fire(entry *logrus.Entry) error {
	entry.Data[SimTimeField] = h.sink.now()
	return nil
}
