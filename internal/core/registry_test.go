package core

import (
	"testing"

	"github.com/hsmlab/hsmgo/internal/primitives"
	"github.com/stretchr/testify/assert"
)

func noopHandler(*Machine, string, primitives.Event, any) bool { return true }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("idle"))

	r.Register("idle", noopHandler, "payload")
	assert.True(t, r.Has("idle"))

	e := r.Lookup("idle")
	if assert.NotNil(t, e) {
		assert.Equal(t, "idle", e.name)
		assert.Equal(t, "payload", e.userData)
	}
}

func TestRegistry_RegisterReplacesExisting(t *testing.T) {
	r := NewRegistry()
	r.Register("idle", noopHandler, "first")
	r.Register("idle", noopHandler, "second")

	e := r.Lookup("idle")
	if assert.NotNil(t, e) {
		assert.Equal(t, "second", e.userData)
	}
}

func TestRegistry_RegisterIgnoresInvalidInput(t *testing.T) {
	r := NewRegistry()
	r.Register("", noopHandler, nil)
	r.Register("idle", nil, nil)
	assert.False(t, r.Has("idle"))
}

func TestRegistry_LookupMissingReturnsNil(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Lookup("missing"))
}
