package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "weft.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	chans, err := cfg.ProcessChannels()
	require.NoError(t, err)
	assert.Equal(t, []domain.Name{domain.NewName(2, "procs")}, chans)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
backend: redis
redis:
  addr: cache:6379
  locking: true
channels: ["@2:procs", "@2:jobs"]
workers: 8
idle_interval: 1s
log:
  level: debug
`)
	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "weft:space:", cfg.Redis.Prefix, "unset keys keep their default")
	assert.True(t, cfg.Redis.Locking)
	assert.Equal(t, []string{"@2:procs", "@2:jobs"}, cfg.Channels)

	single, err := LoadWithEnv(writeFile(t, "channels: [\"@2:jobs\"]\n"), env(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"@2:jobs"}, single.Channels)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, time.Second, cfg.IdleInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "backend: pathtree\nworkers: 2\n")
	cfg, err := LoadWithEnv(path, env(map[string]string{
		"WEFT_WORKERS":       "16",
		"WEFT_CHANNELS":      "@2:a,@2:b",
		"WEFT_SCOPE":         "@2:procs",
		"WEFT_TIMEOUT":       "30s",
		"WEFT_LOG_LEVEL":     "warn",
		"WEFT_BADGER_PREFIX": "jobs/",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendPathTree, cfg.Backend)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, []string{"@2:a", "@2:b"}, cfg.Channels)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "jobs/", cfg.Badger.Prefix)

	scope, ok := cfg.ScopeName()
	require.True(t, ok)
	assert.Equal(t, domain.NewName(2, "procs"), scope)
}

func TestLoad_Invalid(t *testing.T) {
	for name, content := range map[string]string{
		"unknown backend": "backend: sqlite\n",
		"bad channel":     "channels: [procs]\n",
		"zero workers":    "workers: 0\n",
		"unknown key":     "wrokers: 3\n",
		"scope on memory": "scope: \"@2:procs\"\n",
		"locking":         "redis:\n  locking: true\n",
		"not yaml":        "backend: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWithEnv(writeFile(t, content), env(nil))
			assert.Error(t, err)
		})
	}

	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}
