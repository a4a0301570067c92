// Package bridge forwards dispatched HSM events onto an external event
// bus as CloudEvents, implementing core.Publisher. It follows the same
// shape as the runtime's own channel-based fan-out elsewhere: a bounded
// queue absorbs bursts, and a producer that outruns the consumer gets a
// silent drop rather than backpressure on the machine's own dispatch loop.
package bridge

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"
	"github.com/google/uuid"

	"github.com/hsmlab/hsmgo/internal/primitives"
)

// Sender is the cloudevents.Client surface this package needs. The real
// SDK client satisfies it directly; tests may supply a stub.
type Sender interface {
	Send(ctx context.Context, event cloudevents.Event) protocol.Result
}

type queuedEvent struct {
	source string
	ev     primitives.Event
}

// Publisher adapts a cloudevents Sender into a core.Publisher. Events are
// queued and sent from a single background goroutine, so a slow or
// unreachable sink never blocks a machine's dispatch.
type Publisher struct {
	sender     Sender
	typePrefix string
	logger     *slog.Logger

	queue chan queuedEvent
	done  chan struct{}
	wg    sync.WaitGroup
}

// NewPublisher creates a Publisher that sends every event as type
// "<typePrefix>.<kind>", buffering up to queueSize pending sends.
func NewPublisher(sender Sender, typePrefix string, queueSize int, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &Publisher{
		sender:     sender,
		typePrefix: typePrefix,
		logger:     logger,
		queue:      make(chan queuedEvent, queueSize),
		done:       make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish implements core.Publisher. It never blocks: if the internal
// queue is full the event is dropped and logged, not retried.
func (p *Publisher) Publish(ctx context.Context, source string, ev primitives.Event) error {
	select {
	case p.queue <- queuedEvent{source: source, ev: ev}:
		return nil
	default:
		p.logger.Warn("bridge queue full, dropping event", "source", source, "kind", ev.Kind.String())
		return nil
	}
}

// Close stops the background sender. Events still queued at the time of
// Close are discarded, not drained, matching the runtime's own shutdown
// convention of not guaranteeing delivery of anything still in flight.
func (p *Publisher) Close() error {
	close(p.done)
	p.wg.Wait()
	return nil
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case qe := <-p.queue:
			ce, err := toCloudEvent(p.typePrefix, qe.source, qe.ev)
			if err != nil {
				p.logger.Warn("failed to encode event", "err", err)
				continue
			}
			if result := p.sender.Send(context.Background(), ce); cloudevents.IsUndelivered(result) {
				p.logger.Warn("cloudevents send failed", "err", result)
			}
		case <-p.done:
			return
		}
	}
}

// eventPayload is the JSON body carried on the CloudEvent; Data is copied
// by reference into the envelope and must itself be JSON-marshalable for
// the bridge to forward it faithfully — callers who need to forward
// opaque Data should keep it JSON-shaped if it is meant to cross this
// boundary.
type eventPayload struct {
	Name string `json:"name"`
	Seq  int    `json:"seq"`
	Data any    `json:"data,omitempty"`
}

func toCloudEvent(typePrefix, source string, ev primitives.Event) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(uuid.NewString())
	ce.SetSource(source)
	ce.SetType(typePrefix + "." + ev.Kind.String())

	payload, err := json.Marshal(eventPayload{Name: ev.Name, Seq: ev.Seq, Data: ev.Data})
	if err != nil {
		return ce, err
	}
	if err := ce.SetData(cloudevents.ApplicationJSON, json.RawMessage(payload)); err != nil {
		return ce, err
	}
	return ce, nil
}
