package extensibility

import (
	"testing"
	"time"

	"github.com/hsmlab/hsmgo/internal/primitives"
	"github.com/stretchr/testify/assert"
)

func TestChannelSource(t *testing.T) {
	ch := make(chan primitives.Event, 1)
	s := NewChannelSource(ch)
	assert.Equal(t, (<-chan primitives.Event)(ch), s.Events())
}

func TestTickerSource(t *testing.T) {
	s := NewTickerSource(primitives.Step, "tick", "data", "sensor", 20*time.Millisecond)
	defer s.Stop()

	select {
	case ev := <-s.Events():
		assert.Equal(t, primitives.Step, ev.Kind)
		assert.Equal(t, "tick", ev.Name)
		assert.Equal(t, "data", ev.Data)
		assert.Equal(t, "sensor", ev.Source)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no event received")
	}

	select {
	case ev := <-s.Events():
		assert.Equal(t, "tick", ev.Name)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no second event")
	}
}

func TestTickerSource_StopClosesChannel(t *testing.T) {
	s := NewTickerSource(primitives.Step, "tick", nil, "sensor", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

type recordingPoster struct {
	got []primitives.Event
}

func (p *recordingPoster) Post(ev primitives.Event) {
	p.got = append(p.got, ev)
}

func TestPumpForwardsUntilClosed(t *testing.T) {
	ch := make(chan primitives.Event, 3)
	ch <- primitives.New(primitives.Step, "a", nil, "src", 1)
	ch <- primitives.New(primitives.Step, "b", nil, "src", 2)
	close(ch)

	p := &recordingPoster{}
	Pump(NewChannelSource(ch), p)

	assert.Len(t, p.got, 2)
	assert.Equal(t, "a", p.got[0].Name)
	assert.Equal(t, "b", p.got[1].Name)
}
