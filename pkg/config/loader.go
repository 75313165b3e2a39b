package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	loadEnvOnce sync.Once

	cacheMu sync.Mutex
	cache   = make(map[string]any)
)

// Load parses environment variables into a config struct of type T. The
// result is cached per type, so repeated calls across packages return the
// same value without re-reading the environment.
//
// A .env file in the working directory is loaded once if present; real
// environment variables take precedence over it.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilConfig
	}

	loadEnvOnce.Do(func() {
		// Missing .env is fine; the environment may be set directly.
		_ = godotenv.Load()
	})

	key := fmt.Sprintf("%T", *v)

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrFailedToParseConfig, err)
	}

	cache[key] = *v
	return nil
}

// MustLoad is Load but panics on failure. Intended for main.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}
