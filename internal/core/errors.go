package core

import "errors"

// Sentinel errors of the Machine runtime. None of these represent a crash
// condition. ErrInvalidArgument and ErrTimerNotFound are returned to the
// caller of the failing operation, which is then a no-op; the others are
// never returned and only appear as the "err" attribute of log lines.
var (
	// ErrInvalidArgument is returned when a caller supplies an empty state
	// name, a nil handler, or a non-positive timer duration.
	ErrInvalidArgument = errors.New("hsm: invalid argument")

	// ErrUnknownState is logged (not returned) when a transition names a
	// state with no registered handler, or an event is dispatched while the
	// current state has none. The transition still occurs — current_state
	// is a name, not a handle — only entry/exit dispatch is skipped for the
	// unresolved side.
	ErrUnknownState = errors.New("hsm: unknown state")

	// ErrUnhandledEvent is logged (not returned, since dispatch is
	// asynchronous) when an event reaches a machine with no parent and is
	// not consumed by the current state's handler.
	ErrUnhandledEvent = errors.New("hsm: unhandled event")

	// ErrTimerNotFound is returned by CancelTimer when the id is unknown,
	// already cancelled, or already fired.
	ErrTimerNotFound = errors.New("hsm: timer not found")

	// ErrStrayTimeout is logged (not returned) when a timer's callback runs
	// after the timer was already cancelled. Its Timeout event is not
	// posted, so the handler never sees it.
	ErrStrayTimeout = errors.New("hsm: stray timeout")
)
