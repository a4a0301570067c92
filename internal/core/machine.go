// Package core provides the runtime core tier of the HSM engine: the state
// registry, the serialized execution context, the machine, and its timer
// service.
//
//go:generate go test ./... -race
package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsmlab/hsmgo/internal/primitives"
)

// Publisher forwards events a machine has finished dispatching to an
// external sink (e.g. a CloudEvents bridge). It is optional; a nil
// Publisher means nothing is forwarded.
type Publisher interface {
	Publish(ctx context.Context, source string, ev primitives.Event) error
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithLogger attaches a structured logger. The default discards output,
// matching the convention that a runtime component never forces logging
// configuration on an embedding application.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPublisher attaches an external event publisher. Publish is called
// best-effort, after local dispatch, for every event the current state
// handler was given — including ones bubbled away without being handled.
// Publish errors are logged, never returned to the caller that originated
// the event.
func WithPublisher(p Publisher) Option {
	return func(m *Machine) {
		m.publisher = p
	}
}

// timerHandle tracks a single scheduled one-shot timer. Presence in
// Machine.timers is the only cancellation state: CancelTimer deletes the
// entry immediately, so the fire callback's map lookup already tells it
// apart from a stray (cancelled-before-fire) timeout.
type timerHandle struct {
	timer *time.Timer
}

// Machine is one HSM instance (spec component C4): a name, a flat state
// registry, a single current state name, a serialized execution context,
// an optional parent for bubbling, and the timer service anchored to its
// own context.
//
// A Machine has no hierarchy of its own — "current state" is always one
// flat name looked up in this machine's Registry. Hierarchy exists only
// between machine instances, via SetParent/Parent and event bubbling.
type Machine struct {
	name       string
	instanceID string
	registry   *Registry
	ctx        *Context

	mu      sync.RWMutex
	current string
	parent  *Machine

	timersMu    sync.Mutex
	timers      map[int]*timerHandle
	nextTimerID int

	logger    *slog.Logger
	publisher Publisher
}

// NewMachine creates a machine with the given name and an empty registry,
// with no current_state resolved until the first ChangeState.
func NewMachine(name string, opts ...Option) *Machine {
	m := &Machine{
		name:       name,
		instanceID: uuid.NewString(),
		registry:   NewRegistry(),
		ctx:        NewContext(),
		timers:     make(map[int]*timerHandle),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("instance", m.instanceID)
	return m
}

// Name returns the machine's name, fixed at construction.
func (m *Machine) Name() string {
	return m.name
}

// InstanceID returns a UUID generated once at construction, unique per
// Machine value even when the same name is reused across restarts —
// useful for disambiguating log lines and bridged events when names
// repeat (e.g. a respawned device machine).
func (m *Machine) InstanceID() string {
	return m.instanceID
}

// Register installs or replaces the handler for state. Safe to call before
// Start, or from within a running handler on this machine's own context
// (a handler may register new states as it runs).
func (m *Machine) Register(state string, handler Handler, userData any) error {
	if state == "" || handler == nil {
		return ErrInvalidArgument
	}
	m.registry.Register(state, handler, userData)
	return nil
}

// SetParent assigns the machine to bubble unhandled events to. A dangling
// parent (one that has been destroyed) is the caller's responsibility to
// avoid; the runtime does not refcount or validate parent lifetime.
func (m *Machine) SetParent(p *Machine) {
	m.mu.Lock()
	m.parent = p
	m.mu.Unlock()
}

// Parent returns the current parent, or nil.
func (m *Machine) Parent() *Machine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parent
}

// CurrentState returns a snapshot of the current state name. Empty string
// means the machine has not yet transitioned into any state.
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Snapshot captures a point-in-time view of a Machine suitable for
// logging or persistence. It is not a serialization of the machine
// itself — Registry handlers are not, and cannot be, persisted.
type Snapshot struct {
	Name          string `json:"name" yaml:"name"`
	InstanceID    string `json:"instance_id" yaml:"instance_id"`
	CurrentState  string `json:"current_state" yaml:"current_state"`
	PendingTimers int    `json:"pending_timers" yaml:"pending_timers"`
}

// Snapshot returns a Snapshot of the machine's current state and the
// number of timers still outstanding.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	m.timersMu.Lock()
	pending := len(m.timers)
	m.timersMu.Unlock()

	return Snapshot{Name: m.name, InstanceID: m.instanceID, CurrentState: current, PendingTimers: pending}
}

// Start spawns this machine's execution context on its own goroutine
// (owned-thread mode).
func (m *Machine) Start() {
	m.ctx.Start()
}

// Run drains this machine's execution context on the calling goroutine
// until Stop (shared-thread mode). It blocks.
func (m *Machine) Run() {
	m.ctx.Run()
}

// Stop shuts down the execution context. Items already queued — posted
// events, pending transitions — are discarded once the in-flight item
// returns. Scheduled timers that have not yet fired are left running; when
// they fire they will find the context stopped and their TIMEOUT post will
// be silently dropped.
func (m *Machine) Stop() {
	m.ctx.Stop()
}

// Wait blocks until a goroutine started by Start has exited.
func (m *Machine) Wait() {
	m.ctx.Wait()
}

// ChangeState transitions the machine to name. If the caller is already
// executing on this machine's context (e.g. a handler calling ChangeState
// on itself), the transition runs synchronously. Otherwise it is posted
// and runs asynchronously, equivalent to PostChangeState.
//
// Use ChangeStateNow or PostChangeState directly when the call site needs
// to guarantee one behavior or the other regardless of caller identity.
func (m *Machine) ChangeState(name string) {
	if m.ctx.OnSelf() {
		m.ChangeStateNow(name)
		return
	}
	m.PostChangeState(name)
}

// ChangeStateNow performs the transition immediately, on the calling
// goroutine. Only safe to call from code already running on this
// machine's context (e.g. from inside a state handler); calling it from
// any other goroutine breaks the single-consumer serialization guarantee.
func (m *Machine) ChangeStateNow(name string) {
	m.transition(name)
}

// PostChangeState schedules the transition to run asynchronously on this
// machine's context, regardless of the caller's identity. There is no
// ordering guarantee between a posted state change and events posted by
// other producers around the same time — only FIFO per producer.
func (m *Machine) PostChangeState(name string) {
	m.ctx.Post(func() {
		m.transition(name)
	})
}

// transition implements the exit/replace/entry protocol. Run only on the
// machine's own context. A transition to the already-current state is a
// no-op: no EXIT, no ENTRY, current_state untouched.
func (m *Machine) transition(name string) {
	m.mu.Lock()
	old := m.current
	if old == name {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if entry := m.registry.Lookup(old); entry != nil {
		m.invoke(entry, primitives.New(primitives.Exit, old, nil, m.name, 0))
	} else if old != "" {
		m.logger.Warn("exit skipped", "machine", m.name, "state", old, "err", ErrUnknownState)
	}

	m.mu.Lock()
	m.current = name
	m.mu.Unlock()

	if entry := m.registry.Lookup(name); entry != nil {
		m.invoke(entry, primitives.New(primitives.Entry, name, nil, m.name, 0))
	} else {
		m.logger.Warn("entry skipped", "machine", m.name, "state", name, "err", ErrUnknownState)
	}
}

// Post enqueues ev for dispatch to the current state's handler. Safe from
// any goroutine; FIFO per calling goroutine, no ordering guarantee
// relative to other producers.
func (m *Machine) Post(ev primitives.Event) {
	m.ctx.Post(func() {
		m.dispatch(ev)
	})
}

// dispatch runs ev through the current state's handler (run only on the
// machine's own context) and bubbles it to the parent if unhandled. ENTRY
// and EXIT events are synthesized by transition and never bubble even if
// their handler returns false.
func (m *Machine) dispatch(ev primitives.Event) {
	m.mu.RLock()
	current := m.current
	parent := m.parent
	m.mu.RUnlock()

	entry := m.registry.Lookup(current)
	if entry == nil {
		m.logger.Warn("dispatch skipped", "machine", m.name, "state", current, "event", ev.Kind.String(), "err", ErrUnknownState)
		m.bubbleOrDrop(ev, parent)
		return
	}

	handled := m.invoke(entry, ev)
	if handled {
		return
	}
	if ev.Kind == primitives.Entry || ev.Kind == primitives.Exit {
		return
	}
	m.bubbleOrDrop(ev, parent)
}

func (m *Machine) bubbleOrDrop(ev primitives.Event, parent *Machine) {
	if parent != nil {
		parent.Post(ev.Bubble())
		return
	}
	m.logger.Debug("event dropped", "machine", m.name, "event", ev.Kind.String(), "name", ev.Name, "err", ErrUnhandledEvent)
}

// invoke runs a single handler call and best-effort forwards the event to
// the configured Publisher afterward.
func (m *Machine) invoke(entry *stateEntry, ev primitives.Event) bool {
	handled := entry.handler(m, entry.name, ev, entry.userData)
	if m.publisher != nil {
		if err := m.publisher.Publish(context.Background(), m.name, ev); err != nil {
			m.logger.Warn("publish failed", "machine", m.name, "event", ev.Kind.String(), "err", err)
		}
	}
	return handled
}

// ScheduleTimer arms a one-shot timer that posts a Timeout event to this
// machine after d. It returns the timer's id, used later with CancelTimer.
// The TIMEOUT event carries name as its Name field and the timer id as
// Seq, anchoring the timer to this machine's own context rather than a
// process-wide scheduler.
func (m *Machine) ScheduleTimer(d time.Duration, name string) (int, error) {
	if d <= 0 {
		return 0, ErrInvalidArgument
	}

	m.timersMu.Lock()
	m.nextTimerID++
	id := m.nextTimerID
	h := &timerHandle{}
	m.timers[id] = h
	m.timersMu.Unlock()

	h.timer = time.AfterFunc(d, func() {
		m.timersMu.Lock()
		_, ok := m.timers[id]
		delete(m.timers, id)
		m.timersMu.Unlock()

		if !ok {
			m.logger.Debug("stray timeout suppressed", "machine", m.name, "timer", id, "err", ErrStrayTimeout)
			return
		}
		m.Post(primitives.New(primitives.Timeout, name, nil, m.name, id))
	})
	return id, nil
}

// CancelTimer stops a pending timer before it fires. Returns
// ErrTimerNotFound if id is unknown, already fired, or already cancelled.
// A race where the timer fires concurrently with CancelTimer resolves in
// favor of whichever side acquires the timer bookkeeping lock first; the
// loser sees a consistent not-found/stray outcome rather than a
// double-post or a dropped cancellation.
func (m *Machine) CancelTimer(id int) error {
	m.timersMu.Lock()
	defer m.timersMu.Unlock()

	h, ok := m.timers[id]
	if !ok {
		return ErrTimerNotFound
	}
	h.timer.Stop()
	delete(m.timers, id)
	return nil
}
