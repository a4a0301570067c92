package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type demoConfig struct {
	Port int    `env:"HSMGO_TEST_PORT" envDefault:"9090"`
	Name string `env:"HSMGO_TEST_NAME" envDefault:"demo"`
}

func TestLoad_DefaultsAndCaching(t *testing.T) {
	cfg, err := Load[demoConfig]()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "demo", cfg.Name)

	t.Setenv("HSMGO_TEST_PORT", "1234")
	cfg2, err := Load[demoConfig]()
	require.NoError(t, err)
	assert.Same(t, cfg, cfg2, "second Load for the same type must return the cached instance")
	assert.Equal(t, 9090, cfg2.Port, "cache means the env change after first Load is not reflected")
}

func TestLoad_OverriddenByEnv(t *testing.T) {
	t.Setenv("HSMGO_TEST_OVERRIDE_NAME", "from-env")

	type overrideConfig struct {
		Name string `env:"HSMGO_TEST_OVERRIDE_NAME" envDefault:"unset"`
	}
	cfg, err := Load[overrideConfig]()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Name)
}

func TestMustLoad_PanicsOnParseError(t *testing.T) {
	t.Setenv("HSMGO_TEST_BAD_INT", "not-an-int")

	type badConfig struct {
		N int `env:"HSMGO_TEST_BAD_INT"`
	}
	assert.Panics(t, func() {
		MustLoad[badConfig]()
	})
}
