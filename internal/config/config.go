// Package config loads the weft driver configuration from YAML and WEFT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendPathTree = "pathtree"
	BackendBadger   = "badger"
	BackendRedis    = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WEFT_"

// Config is the full driver configuration.
type Config struct {
	Backend string       `mapstructure:"backend"`
	Redis   RedisConfig  `mapstructure:"redis"`
	Badger  BadgerConfig `mapstructure:"badger"`

	Channels []string `mapstructure:"channels"`
	Scope    string   `mapstructure:"scope"`

	Workers      int           `mapstructure:"workers"`
	Budget       int           `mapstructure:"budget"`
	MaxRounds    int           `mapstructure:"max_rounds"`
	IdleInterval time.Duration `mapstructure:"idle_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`

	Log    LogConfig `mapstructure:"log"`
	Listen string    `mapstructure:"listen"`
}

// RedisConfig selects the redis server backing the space and the region locks.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
	Locking  bool   `mapstructure:"locking"`
}

// BadgerConfig selects the badger directory. An empty path runs in memory.
type BadgerConfig struct {
	Path   string `mapstructure:"path"`
	Prefix string `mapstructure:"prefix"`
}

// LogConfig controls the application logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Backend:      BackendMemory,
		Redis:        RedisConfig{Addr: "localhost:6379", Prefix: "weft:space:"},
		Badger:       BadgerConfig{Prefix: "weft/"},
		Channels:     []string{"@2:procs"},
		Workers:      4,
		Budget:       10_000,
		IdleInterval: 250 * time.Millisecond,
		Log:          LogConfig{Level: "info"},
		Listen:       ":8080",
	}
}

// envKeys maps each environment variable suffix to its config path.
var envKeys = map[string][]string{
	"BACKEND":        {"backend"},
	"REDIS_ADDR":     {"redis", "addr"},
	"REDIS_PASSWORD": {"redis", "password"},
	"REDIS_DB":       {"redis", "db"},
	"REDIS_PREFIX":   {"redis", "prefix"},
	"REDIS_LOCKING":  {"redis", "locking"},
	"BADGER_PATH":    {"badger", "path"},
	"BADGER_PREFIX":  {"badger", "prefix"},
	"CHANNELS":       {"channels"},
	"SCOPE":          {"scope"},
	"WORKERS":        {"workers"},
	"BUDGET":         {"budget"},
	"MAX_ROUNDS":     {"max_rounds"},
	"IDLE_INTERVAL":  {"idle_interval"},
	"TIMEOUT":        {"timeout"},
	"LOG_LEVEL":      {"log", "level"},
	"LOG_FILE":       {"log", "file"},
	"LISTEN":         {"listen"},
}

// Load reads path (optional) and applies the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	for suffix, keys := range envKeys {
		if v, ok := lookup(EnvPrefix + suffix); ok {
			set(raw, keys, v)
		}
	}

	cfg := Default()
	if _, ok := raw["channels"]; ok {
		// A configured list replaces the default instead of merging into it.
		cfg.Channels = nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func set(m map[string]any, keys []string, v string) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	m[keys[len(keys)-1]] = v
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendPathTree, BackendBadger, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if _, err := c.ProcessChannels(); err != nil {
		errs = append(errs, err)
	}
	if c.Scope != "" {
		if _, err := domain.ParseName(c.Scope); err != nil {
			errs = append(errs, fmt.Errorf("scope: %w", err))
		}
		if c.Backend == BackendMemory {
			errs = append(errs, errors.New("scope discovery needs a scoped backend (pathtree, badger or redis)"))
		}
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Budget < 1 {
		errs = append(errs, fmt.Errorf("budget must be positive, got %d", c.Budget))
	}
	if c.Redis.Locking && c.Backend != BackendRedis {
		errs = append(errs, errors.New("redis locking needs the redis backend"))
	}
	return errors.Join(errs...)
}

// ProcessChannels parses the configured process channels.
func (c Config) ProcessChannels() ([]domain.Name, error) {
	out := make([]domain.Name, 0, len(c.Channels))
	for _, ch := range c.Channels {
		ch = strings.TrimSpace(ch)
		if ch == "" {
			continue
		}
		n, err := domain.ParseName(ch)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// ScopeName parses the discovery scope. ok is false when none is set.
func (c Config) ScopeName() (domain.Name, bool) {
	if c.Scope == "" {
		return domain.Name{}, false
	}
	n, err := domain.ParseName(c.Scope)
	return n, err == nil
}
