// Package config provides type-safe environment loading for the runtime's
// demo binaries: struct fields tagged with `env:"..."` are parsed with
// caarlos0/env, after a one-time, best-effort load of a .env file via
// joho/godotenv. Each struct type is parsed once per process and cached,
// so repeated Load calls for the same type are free.
package config

import (
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> any (the loaded *T)
)

// Load parses environment variables into a new T, honoring the struct's
// `env` tags, and returns a cached pointer to it. The first call for any
// process also attempts to load a .env file from the working directory;
// a missing file is not an error.
func Load[T any]() (*T, error) {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf((*T)(nil))
	if v, ok := cache.Load(typ); ok {
		return v.(*T), nil
	}

	cfg := new(T)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(typ, cfg)
	return actual.(*T), nil
}

// MustLoad is Load, panicking on error. Intended for demo main()s where a
// misconfigured environment should fail fast at startup.
func MustLoad[T any]() *T {
	cfg, err := Load[T]()
	if err != nil {
		panic(err)
	}
	return cfg
}
