package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmlab/hsmgo/internal/core"
)

func TestJSONPersister_RoundTrip(t *testing.T) {
	p, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)

	in := core.Snapshot{Name: "door", InstanceID: "11111111-1111-1111-1111-111111111111", CurrentState: "open", PendingTimers: 2}
	require.NoError(t, p.Save(in))

	out, err := p.Load("door")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJSONPersister_LoadMissingReturnsError(t *testing.T) {
	p, err := NewJSONPersister(t.TempDir())
	require.NoError(t, err)

	_, err = p.Load("nope")
	assert.Error(t, err)
}

func TestYAMLPersister_RoundTrip(t *testing.T) {
	p, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)

	in := core.Snapshot{Name: "door", InstanceID: "22222222-2222-2222-2222-222222222222", CurrentState: "closed", PendingTimers: 0}
	require.NoError(t, p.Save(in))

	out, err := p.Load("door")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestYAMLPersister_LoadMissingReturnsError(t *testing.T) {
	p, err := NewYAMLPersister(t.TempDir())
	require.NoError(t, err)

	_, err = p.Load("nope")
	assert.Error(t, err)
}
