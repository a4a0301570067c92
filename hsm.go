// Package hsm is the public surface of the HSM runtime: a flat-per-machine
// hierarchical state machine engine where hierarchy exists only between
// machine instances, via parent/child bubbling, never within one
// machine's own state set.
//
// A minimal machine:
//
//	m := hsm.NewMachine("door")
//	m.Register("closed", func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
//		if ev.Kind == hsm.Step && ev.Name == "open" {
//			m.ChangeState("open")
//			return true
//		}
//		return false
//	}, nil)
//	m.Register("open", func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
//		return false
//	}, nil)
//	m.Start()
//	defer m.Stop()
//	m.ChangeState("closed")
//	m.Post(hsm.NewEvent(hsm.Step, "open", nil, "caller", 0))
package hsm

import (
	"log/slog"

	"github.com/hsmlab/hsmgo/internal/core"
	"github.com/hsmlab/hsmgo/internal/primitives"
)

// Event is the message type dispatched to every machine. See
// internal/primitives for the full field documentation.
type Event = primitives.Event

// Kind is the closed set of event kinds the runtime understands.
type Kind = primitives.Kind

// Event kinds. Entry and Exit are synthesized by the runtime during
// transitions and never originate from caller code.
const (
	Start          = primitives.Start
	Step           = primitives.Step
	ResultOK       = primitives.ResultOK
	ResultError    = primitives.ResultError
	Timeout        = primitives.Timeout
	TimeoutHandled = primitives.TimeoutHandled
	Cancel         = primitives.Cancel
	Entry          = primitives.Entry
	Exit           = primitives.Exit
)

// NewEvent constructs an Event. See primitives.New for field semantics.
func NewEvent(kind Kind, name string, data any, source string, seq int) Event {
	return primitives.New(kind, name, data, source, seq)
}

// Machine is one HSM instance. See internal/core.Machine for the full
// method documentation; this alias keeps the public import surface to a
// single package while the implementation stays internal.
type Machine = core.Machine

// Handler is the state handler callback signature.
type Handler = core.Handler

// Option configures a Machine at construction time.
type Option = core.Option

// Publisher forwards dispatched events to an external sink. See
// internal/bridge for a CloudEvents-based implementation.
type Publisher = core.Publisher

// Snapshot is a point-in-time view of a Machine. See
// internal/snapshot for JSON/YAML persisters.
type Snapshot = core.Snapshot

// NewMachine creates a named machine with an empty state registry.
func NewMachine(name string, opts ...Option) *Machine {
	return core.NewMachine(name, opts...)
}

// WithLogger attaches a structured logger to a Machine.
func WithLogger(l *slog.Logger) Option {
	return core.WithLogger(l)
}

// WithPublisher attaches an external event publisher to a Machine.
func WithPublisher(p Publisher) Option {
	return core.WithPublisher(p)
}

// Sentinel errors of the Machine runtime. None represent a crash
// condition: ErrInvalidArgument and ErrTimerNotFound are returned by the
// failing operation, which is then a no-op; the others only appear in logs.
var (
	ErrInvalidArgument = core.ErrInvalidArgument
	ErrUnknownState    = core.ErrUnknownState
	ErrUnhandledEvent  = core.ErrUnhandledEvent
	ErrTimerNotFound   = core.ErrTimerNotFound
	ErrStrayTimeout    = core.ErrStrayTimeout
)
