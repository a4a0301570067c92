package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmlab/hsmgo/internal/primitives"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []cloudevents.Event
}

func (s *recordingSender) Send(ctx context.Context, event cloudevents.Event) protocol.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, event)
	return nil
}

func (s *recordingSender) snapshot() []cloudevents.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cloudevents.Event, len(s.sent))
	copy(out, s.sent)
	return out
}

func TestPublisher_DeliversAsCloudEvent(t *testing.T) {
	sender := &recordingSender{}
	p := NewPublisher(sender, "hsm.demo", 8, nil)
	defer p.Close()

	ev := primitives.New(primitives.Step, "go", 42, "machine-a", 7)
	require.NoError(t, p.Publish(context.Background(), "machine-a", ev))

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sender.snapshot()) == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	got := sender.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "hsm.demo.STEP", got[0].Type())
	assert.Equal(t, "machine-a", got[0].Source())
}

func TestPublisher_DropsOnFullQueue(t *testing.T) {
	block := make(chan struct{})
	sender := &blockingSender{block: block}
	p := NewPublisher(sender, "hsm.demo", 1, nil)
	defer func() {
		close(block)
		p.Close()
	}()

	ev := primitives.New(primitives.Step, "go", nil, "m", 1)
	// First publish is picked up by run() immediately and blocks on Send.
	require.NoError(t, p.Publish(context.Background(), "m", ev))
	time.Sleep(20 * time.Millisecond)

	// Fill the 1-slot queue, then overflow it — the overflow must not block.
	require.NoError(t, p.Publish(context.Background(), "m", ev))
	done := make(chan struct{})
	go func() {
		p.Publish(context.Background(), "m", ev)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked instead of dropping")
	}
}

type blockingSender struct {
	block chan struct{}
}

func (s *blockingSender) Send(ctx context.Context, event cloudevents.Event) protocol.Result {
	<-s.block
	return nil
}
