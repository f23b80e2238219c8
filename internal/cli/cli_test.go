package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adderImage = `
processes:
  - id: "@1:adder"
    code: |
      push @0:c5
      push @0:c4
      ask
      push 2
      add
      tell
  - id: "@1:broken"
    code: |
      push 1
      push 0
      mod
values:
  - channel: "@0:c4"
    value: 3
`

const loopImage = `
processes:
  - id: "@1:spin"
    code: |
      loop:
      jump loop
`

func writeImage(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func quietConfig() config.Config {
	cfg := config.Default()
	cfg.Log.Level = "error"
	return cfg
}

func TestOpenSpace(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		regions bool
	}{
		{"memory", func(c *config.Config) {}, false},
		{"pathtree", func(c *config.Config) { c.Backend = config.BackendPathTree }, false},
		{"badger in memory", func(c *config.Config) { c.Backend = config.BackendBadger }, false},
		{"badger on disk", func(c *config.Config) {
			c.Backend = config.BackendBadger
			c.Badger.Path = t.TempDir()
		}, false},
		{"redis", func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.Redis.Addr = mr.Addr()
		}, false},
		{"redis with locking", func(c *config.Config) {
			c.Backend = config.BackendRedis
			c.Redis.Addr = mr.Addr()
			c.Redis.Locking = true
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quietConfig()
			tt.mutate(&cfg)
			logger, _, err := createLogger(cfg.Log)
			require.NoError(t, err)

			space, regions, err := openSpace(cfg, logger)
			require.NoError(t, err)
			defer space.Close()
			assert.Equal(t, tt.regions, regions != nil)

			ctx := context.Background()
			require.NoError(t, space.Tell(ctx, 0, "@0:probe", domain.Int(1)))
			v, err := space.Ask(ctx, 0, "@0:probe")
			require.NoError(t, err)
			assert.Equal(t, domain.Int(1), v)
		})
	}
}

func TestOpenSpace_UnknownBackend(t *testing.T) {
	cfg := quietConfig()
	cfg.Backend = "etcd"
	_, _, err := openSpace(cfg, nil)
	assert.ErrorContains(t, err, "unknown backend")
}

func TestCreateEngine_Scope(t *testing.T) {
	cfg := quietConfig()
	cfg.Backend = config.BackendPathTree
	cfg.Channels = nil
	cfg.Scope = "@2:procs"
	logger, _, err := createLogger(cfg.Log)
	require.NoError(t, err)

	engine, err := createEngine(cfg, logger, nil)
	require.NoError(t, err)
	defer engine.Close()

	ctx := context.Background()
	require.NoError(t, engine.Space().Tell(ctx, 2, "@2:procs/a", domain.Par{}))
	channels, err := engine.Scheduler().Channels(ctx)
	require.NoError(t, err)
	assert.Contains(t, channels, domain.NewName(2, "procs/a"))
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), RunOptions{
		Config: quietConfig(),
		Image:  writeImage(t, adderImage),
		Out:    &out,
	})
	require.NoError(t, err)

	lines := out.String()
	assert.Contains(t, lines, "round 1: 2 ready, 1 completed, 1 failed")
	assert.Regexp(t, `completed\s+@1:adder`, lines)
	assert.Regexp(t, `failed\s+@1:broken`, lines)
	assert.Contains(t, lines, ">>> quiescent after")
	// A non-terminal writer gets no escape sequences.
	assert.NotContains(t, lines, "\x1b[")
}

func TestRun_Quiet(t *testing.T) {
	var out bytes.Buffer
	err := Run(context.Background(), RunOptions{
		Config: quietConfig(),
		Image:  writeImage(t, adderImage),
		Quiet:  true,
		Out:    &out,
	})
	require.NoError(t, err)
	assert.NotContains(t, out.String(), ">>>")
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 2)
}

func TestRun_RoundLimit(t *testing.T) {
	cfg := quietConfig()
	cfg.Budget = 16
	cfg.MaxRounds = 3

	var out bytes.Buffer
	err := Run(context.Background(), RunOptions{
		Config: cfg,
		Image:  writeImage(t, loopImage),
		Out:    &out,
	})
	assert.ErrorIs(t, err, scheduler.ErrRoundLimit)
	assert.Regexp(t, `runnable\s+@1:spin`, out.String())
	assert.Contains(t, out.String(), ">>> stopped after 3 rounds")
}

func TestRun_SharedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := quietConfig()
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	require.NoError(t, Run(context.Background(), RunOptions{
		Config: cfg,
		Image:  writeImage(t, adderImage),
		Quiet:  true,
		Out:    &bytes.Buffer{},
	}))

	// A second driver without an image sees the processes the first one parked.
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), RunOptions{Config: cfg, Out: &out}))
	assert.Regexp(t, `completed\s+@1:adder`, out.String())
	assert.Contains(t, out.String(), "quiescent after 1 rounds: 0 executed")
}

func TestRun_BadImage(t *testing.T) {
	err := Run(context.Background(), RunOptions{
		Config: quietConfig(),
		Image:  writeImage(t, "processes:\n  - id: nope\n"),
		Out:    &bytes.Buffer{},
	})
	assert.ErrorContains(t, err, "error loading image")
}

func TestInspect_Report(t *testing.T) {
	var out bytes.Buffer
	err := Inspect(InspectOptions{
		Config: quietConfig(),
		Image:  writeImage(t, adderImage),
		Plain:  true,
		Out:    &out,
	})
	require.NoError(t, err)
	report := out.String()
	assert.Contains(t, report, "@1:adder")
	assert.Contains(t, report, "@1:broken")
	assert.Contains(t, report, "Programs")
	assert.Contains(t, report, "mod")
}

func TestInspect_Mermaid(t *testing.T) {
	var out bytes.Buffer
	err := Inspect(InspectOptions{
		Config:  quietConfig(),
		Image:   writeImage(t, adderImage),
		Mermaid: true,
		Out:     &out,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.Contains(t, out.String(), "proc_1_adder")
}

func TestCreateLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.log")
	logger, closer, err := createLogger(config.LogConfig{Level: "debug", File: path})
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestCreateLogger_BadLevel(t *testing.T) {
	_, _, err := createLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestServe(t *testing.T) {
	cfg := quietConfig()
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	img := writeImage(t, adderImage)
	addrs := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, ServeOptions{
			Config: cfg,
			Image:  img,
			Out:    &bytes.Buffer{},
			Ready:  func(addr string) { addrs <- addr },
		})
	}()

	var base string
	select {
	case addr := <-addrs:
		base = "http://" + addr
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The follow loop runs the deposited image in the background.
	assert.Eventually(t, func() bool {
		resp, err := http.Get(base + "/processes")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var views []struct {
			ID    string `json:"id"`
			State string `json:"state"`
		}
		if json.NewDecoder(resp.Body).Decode(&views) != nil {
			return false
		}
		for _, v := range views {
			if v.ID == "@1:adder" {
				return v.State == "completed"
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("serve did not shut down")
	}
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	err := ServeMCP(context.Background(), MCPOptions{
		Config:    quietConfig(),
		Image:     writeImage(t, adderImage),
		Transport: "pigeon",
	})
	assert.ErrorContains(t, err, "unknown transport")
}
