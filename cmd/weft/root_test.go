package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/weft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "weft version "+weft.Version+"\n", out)
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "image.yaml")
	require.NoError(t, os.WriteFile(img, []byte(`
processes:
  - id: "@1:answer"
    code: |
      push @0:out
      push 42
      tell
`), 0o644))

	cfgPath := filepath.Join(dir, "weft.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: error\nbackend: pathtree\n"), 0o644))

	out, err := execute(t, "run", "--config", cfgPath, "--quiet", img)
	require.NoError(t, err)
	assert.Regexp(t, `completed\s+@1:answer`, out)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--backend", "etcd")
	assert.ErrorContains(t, err, "unknown backend")
}
