package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option adjusts how a configuration struct is parsed.
type Option func(*options)

type options struct {
	prefix string
	funcs  map[reflect.Type]env.ParserFunc
}

// WithPrefix prepends prefix to every env key of the struct, e.g. "STAGING_".
// Structs loaded with different prefixes are cached separately.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithParser registers a parser for a field type that does not implement
// encoding.TextUnmarshaler.
func WithParser[F any](fn func(string) (F, error)) Option {
	return func(o *options) {
		if fn == nil {
			return
		}
		if o.funcs == nil {
			o.funcs = make(map[reflect.Type]env.ParserFunc)
		}
		o.funcs[reflect.TypeFor[F]()] = func(v string) (any, error) { return fn(v) }
	}
}

type configCache struct {
	mu     sync.RWMutex
	values map[string]any
}

var (
	globalCache = &configCache{values: make(map[string]any)}

	defaultEnvLoaded sync.Once
)

// Load parses environment variables into v and caches the result per type (and prefix).
// The default .env file is loaded once on first use if it exists.
//
//	type AdsConfig struct {
//		InterstitialUnitID string        `env:"ADS_INTERSTITIAL_UNIT_ID,required"`
//		Cooldown           time.Duration `env:"ADS_INTERSTITIAL_COOLDOWN" envDefault:"60s"`
//	}
//
//	var cfg AdsConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T, opts ...Option) error {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	o := collect(opts)
	key := cacheKey[T](o.prefix)

	globalCache.mu.RLock()
	cached, ok := globalCache.values[key]
	globalCache.mu.RUnlock()
	if ok {
		*v = cached.(T)
		return nil
	}

	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()

	// Another goroutine may have parsed it while we waited for the write lock.
	if cached, ok := globalCache.values[key]; ok {
		*v = cached.(T)
		return nil
	}

	if err := parse(v, o); err != nil {
		return err
	}
	globalCache.values[key] = *v
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse parses environment variables into v without touching the cache.
func Parse[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	return parse(v, collect(opts))
}

// LoadEnv loads the given .env files into the process environment.
// Values already present in the environment are not overridden.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrEnvFile, err)
	}
	return nil
}

// ResetCache forgets every cached configuration. Intended for tests.
func ResetCache() {
	globalCache.mu.Lock()
	defer globalCache.mu.Unlock()
	clear(globalCache.values)
}

func parse[T any](v *T, o options) error {
	if err := env.ParseWithOptions(v, env.Options{Prefix: o.prefix, FuncMap: o.funcs}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func cacheKey[T any](prefix string) string {
	return prefix + "|" + reflect.TypeFor[T]().String()
}
