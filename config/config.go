// Package config loads the pokedex configuration.
//
// A configuration file is YAML. Before decoding, `${VAR}` references are
// expanded strictly (see ExpandEnvStrict). Environment overrides are applied
// on top of the file, secret references are resolved, and the result is
// validated. Fields the file omits keep the values from Default.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/pokedex/observe"
)

// Environment overrides, applied after the file is decoded.
const (
	EnvListenAddr       = "POKEDEX_LISTEN_ADDR"
	EnvRedisAddr        = "POKEDEX_REDIS_ADDR"
	EnvTranslatorAPIKey = "POKEDEX_TRANSLATOR_API_KEY"
	EnvLogLevel         = "POKEDEX_LOG_LEVEL"
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete service configuration.
type Config struct {
	ServiceName string           `yaml:"service_name"`
	Version     string           `yaml:"version"`
	Server      ServerConfig     `yaml:"server"`
	Cache       CacheConfig      `yaml:"cache"`
	Species     SpeciesConfig    `yaml:"species"`
	Translator  TranslatorConfig `yaml:"translator"`
	Observe     ObserveConfig    `yaml:"observe"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AdminEnabled exposes DELETE /admin/cache.
	AdminEnabled bool `yaml:"admin_enabled"`
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	Backend   string      `yaml:"backend"` // memory|redis
	Namespace string      `yaml:"namespace"`
	Redis     RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SpeciesConfig configures the PokeAPI client.
type SpeciesConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// TranslatorConfig configures the funtranslations client.
type TranslatorConfig struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	Timeout         time.Duration `yaml:"timeout"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	RatePerSecond   float64       `yaml:"rate_per_second"`
	Burst           int           `yaml:"burst"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	Tracing observe.TracingConfig `yaml:"tracing"`
	Metrics observe.MetricsConfig `yaml:"metrics"`
	Logging observe.LoggingConfig `yaml:"logging"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ServiceName: "pokedex",
		Version:     "dev",
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   BackendMemory,
			Namespace: "pokedex",
		},
		Species: SpeciesConfig{
			BaseURL:  "https://pokeapi.co/api/v2",
			Timeout:  5 * time.Second,
			CacheTTL: time.Hour,
		},
		Translator: TranslatorConfig{
			BaseURL:  "https://api.funtranslations.com/translate",
			Timeout:  5 * time.Second,
			CacheTTL: 24 * time.Hour,
		},
		Observe: ObserveConfig{
			Logging: observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Load reads the file at path. An empty path loads Default with the
// environment overrides applied.
func Load(ctx context.Context, path string) (Config, error) {
	if path == "" {
		return finish(ctx, Default())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(ctx, data)
}

// Parse decodes YAML data over Default. Unknown keys are rejected.
func Parse(ctx context.Context, data []byte) (Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return finish(ctx, cfg)
}

func finish(ctx context.Context, cfg Config) (Config, error) {
	cfg.applyEnv()

	secrets := NewResolver(EnvProvider{}, FileProvider{})
	var err error
	if cfg.Translator.APIKey, err = secrets.ResolveValue(ctx, cfg.Translator.APIKey); err != nil {
		return Config{}, fmt.Errorf("config: translator.api_key: %w", err)
	}
	if cfg.Cache.Redis.Password, err = secrets.ResolveValue(ctx, cfg.Cache.Redis.Password); err != nil {
		return Config{}, fmt.Errorf("config: cache.redis.password: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvListenAddr); ok {
		c.Server.ListenAddr = v
	}
	// A redis address implies the redis backend.
	if v, ok := os.LookupEnv(EnvRedisAddr); ok {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = BackendRedis
	}
	if v, ok := os.LookupEnv(EnvTranslatorAPIKey); ok {
		c.Translator.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Observe.Logging.Level = v
	}
}

// Validate reports every problem in c, joined.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.ListenAddr == "" {
		invalid("server.listen_addr is required")
	}
	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"species.timeout", c.Species.Timeout},
		{"species.cache_ttl", c.Species.CacheTTL},
		{"translator.timeout", c.Translator.Timeout},
		{"translator.cache_ttl", c.Translator.CacheTTL},
	} {
		if d.value <= 0 {
			invalid("%s must be positive, got %s", d.name, d.value)
		}
	}

	switch c.Cache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			invalid("cache.redis.addr is required for the redis backend")
		}
	default:
		invalid("cache.backend %q is not one of memory, redis", c.Cache.Backend)
	}

	if err := checkURL(c.Species.BaseURL); err != nil {
		invalid("species.base_url: %v", err)
	}
	if err := checkURL(c.Translator.BaseURL); err != nil {
		invalid("translator.base_url: %v", err)
	}

	if c.Species.BreakerFailures < 0 || c.Translator.BreakerFailures < 0 {
		invalid("breaker_failures must not be negative")
	}
	if c.Translator.RatePerSecond < 0 || c.Translator.Burst < 0 || c.Translator.MaxConcurrent < 0 {
		invalid("translator rate_per_second, burst and max_concurrent must not be negative")
	}

	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: observe: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}

// ObserveConfig returns the telemetry section in the form observe expects.
func (c Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.ServiceName,
		Version:     c.Version,
		Tracing:     c.Observe.Tracing,
		Metrics:     c.Observe.Metrics,
		Logging:     c.Observe.Logging,
	}
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required, got %q", raw)
	}
	return nil
}
