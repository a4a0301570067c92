package consoleui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateLine_WritesMachineAndState(t *testing.T) {
	var buf bytes.Buffer
	StateLine(&buf, "device-1", "entry", "connected")
	out := buf.String()
	assert.Contains(t, out, "device-1")
	assert.Contains(t, out, "connected")
}

func TestRenderFleet_WritesAllRows(t *testing.T) {
	var buf bytes.Buffer
	RenderFleet(&buf, []FleetRow{
		{Name: "d1", State: "connected", Healthy: true, Detail: "ok"},
		{Name: "d2", State: "disconnected", Healthy: false, Detail: "timeout"},
	})
	out := buf.String()
	assert.Contains(t, out, "d1")
	assert.Contains(t, out, "d2")
	assert.Contains(t, out, "connected")
	assert.Contains(t, out, "disconnected")
}
