package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_Plain(t *testing.T) {
	render, err := NewRenderer(true)
	require.NoError(t, err)

	out, err := render("# Image\n\n- `@1:adder` waiting\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Image")
	assert.Contains(t, out, "@1:adder")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "0.1.0")
	assert.Contains(t, buf.String(), "0.1.0")
	assert.NotContains(t, buf.String(), "\x1b[", "a non-terminal writer gets no escape codes")
}
