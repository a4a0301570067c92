package hsm_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	hsm "github.com/hsmlab/hsmgo"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition never became true")
	}
}

func TestDoorMachine_OpenAndBubble(t *testing.T) {
	var mu sync.Mutex
	var parentEvents []string

	door := hsm.NewMachine("door")
	require.NoError(t, door.Register("closed", func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		if ev.Kind == hsm.Step && ev.Name == "open" {
			m.ChangeState("open")
			return true
		}
		return false
	}, nil))
	require.NoError(t, door.Register("open", func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		return false
	}, nil))

	building := hsm.NewMachine("building")
	require.NoError(t, building.Register("normal", func(m *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		mu.Lock()
		parentEvents = append(parentEvents, ev.Name)
		mu.Unlock()
		return true
	}, nil))
	building.Start()
	defer building.Stop()
	building.PostChangeState("normal")
	waitUntil(t, time.Second, func() bool { return building.CurrentState() == "normal" })

	door.SetParent(building)
	door.Start()
	defer door.Stop()
	door.PostChangeState("closed")
	waitUntil(t, time.Second, func() bool { return door.CurrentState() == "closed" })

	door.Post(hsm.NewEvent(hsm.Step, "open", nil, "tester", 1))
	waitUntil(t, time.Second, func() bool { return door.CurrentState() == "open" })

	door.Post(hsm.NewEvent(hsm.Step, "alarm", nil, "tester", 2))
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(parentEvents) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	// building's own ENTRY into "normal" is recorded first, then the bubbled alarm.
	assert.Equal(t, []string{"normal", "alarm"}, parentEvents)
}

func TestTimerRoundTrip(t *testing.T) {
	got := make(chan hsm.Event, 1)

	m := hsm.NewMachine("waiter")
	require.NoError(t, m.Register("waiting", func(mm *hsm.Machine, state string, ev hsm.Event, _ any) bool {
		if ev.Kind == hsm.Timeout {
			got <- ev
		}
		return true
	}, nil))
	m.Start()
	defer m.Stop()
	m.PostChangeState("waiting")
	waitUntil(t, time.Second, func() bool { return m.CurrentState() == "waiting" })

	_, err := m.ScheduleTimer(10*time.Millisecond, "RETRY")
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, "RETRY", ev.Name)
	case <-time.After(time.Second):
		t.Fatal("timeout event never arrived")
	}
}
