// Package extensibility holds optional adapters that feed events into a
// machine from outside the core runtime: external channels, and periodic
// generators for demo/simulation use (e.g. a simulated sensor or
// heartbeat producer). None of these are required for the core dispatch
// protocol — a caller is always free to call Machine.Post directly.
package extensibility

import (
	"time"

	"github.com/hsmlab/hsmgo/internal/primitives"
)

// Source produces events to be forwarded into a machine via Pump.
type Source interface {
	Events() <-chan primitives.Event
}

// ChannelSource adapts an existing Go channel of events into a Source.
type ChannelSource struct {
	ch chan primitives.Event
}

// NewChannelSource wraps ch as a Source. The channel should be buffered if
// the producer needs to tolerate backpressure from a slow machine.
func NewChannelSource(ch chan primitives.Event) *ChannelSource {
	return &ChannelSource{ch: ch}
}

// Events returns the receive-only view of the wrapped channel.
func (s *ChannelSource) Events() <-chan primitives.Event {
	return s.ch
}

// TickerSource generates one event of the given kind/name every interval,
// using time.Ticker. This is distinct from a machine's own timer service
// (which is one-shot and anchored to a single machine's context): a
// TickerSource is for driving repeated external stimulus into a machine
// from demo/simulation code, e.g. a polling sensor.
type TickerSource struct {
	ch     chan primitives.Event
	ticker *time.Ticker
	stop   chan struct{}
}

// NewTickerSource starts emitting an event built from kind/name/data/source
// every d, buffered up to 8 events deep. Events are dropped, not blocked,
// if the consumer falls behind.
func NewTickerSource(kind primitives.Kind, name string, data any, source string, d time.Duration) *TickerSource {
	ch := make(chan primitives.Event, 8)
	s := &TickerSource{
		ch:     ch,
		ticker: time.NewTicker(d),
		stop:   make(chan struct{}),
	}
	seq := 0
	go func() {
		for {
			select {
			case <-s.ticker.C:
				seq++
				select {
				case ch <- primitives.New(kind, name, data, source, seq):
				default:
					// consumer is behind; drop rather than block the ticker
				}
			case <-s.stop:
				s.ticker.Stop()
				close(ch)
				return
			}
		}
	}()
	return s
}

// Events returns the generated event channel.
func (s *TickerSource) Events() <-chan primitives.Event {
	return s.ch
}

// Stop halts generation and closes the event channel.
func (s *TickerSource) Stop() {
	close(s.stop)
}

// Pump forwards every event produced by src into m.Post until src's
// channel closes. It runs on the calling goroutine; call it in its own
// goroutine for a long-lived source such as a TickerSource.
func Pump(src Source, m interface{ Post(primitives.Event) }) {
	for ev := range src.Events() {
		m.Post(ev)
	}
}
