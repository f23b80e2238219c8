package image_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/image"
	"github.com/aretw0/weft/pkg/scheduler"
	"github.com/aretw0/weft/pkg/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adderImage = `
channel: "@2:procs"
processes:
  - id: "@1:adder"
    blocked_on: "@0:c4"
    code: |
      push @0:c5
      push @0:c4
      ask
      push 2
      add
      tell
values:
  - channel: "@0:c4"
    value: 3
`

func TestLoad_Adder(t *testing.T) {
	img, err := image.Load(strings.NewReader(adderImage))
	require.NoError(t, err)
	assert.Equal(t, domain.NewName(2, "procs"), img.Channel)
	require.Len(t, img.Processes, 1)

	p := img.Processes[0]
	assert.Equal(t, domain.NewName(1, "adder"), p.ID())
	assert.Equal(t, domain.StateWaiting, p.State())
	wait, ok := p.Blocked()
	require.True(t, ok)
	assert.Equal(t, domain.NewName(0, "c4"), wait)

	require.Len(t, img.Values, 1)
	assert.Equal(t, image.Seed{Channel: domain.NewName(0, "c4"), Value: domain.Int(3)}, img.Values[0])
}

func TestDeposit_ThenRun(t *testing.T) {
	ctx := context.Background()
	space := memory.NewSpace()
	img, err := image.Load(strings.NewReader(adderImage))
	require.NoError(t, err)
	require.NoError(t, img.Deposit(ctx, space))

	sum, err := scheduler.New(space, scheduler.WithChannels(img.Channel)).RunUntilQuiescent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Completed)

	v, err := space.Ask(ctx, 0, "@0:c5")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(5), v)
}

func TestLoad_ProgramsAndSpawn(t *testing.T) {
	ctx := context.Background()
	img, err := image.Load(strings.NewReader(`
spawn_kind: 7
programs:
  worker: |
    load 0
    load 1
    push 1
    add
    tell
processes:
  - id: "@1:main"
    code: |
      push @2:procs
      push @0:out
      push 20
      spawn worker 2
  - id: "@1:second"
    program: worker
    locals: ["@0:out2", 41]
`), image.WithBudget(500))
	require.NoError(t, err)
	assert.Equal(t, image.DefaultChannel, img.Channel)
	require.Len(t, img.Processes, 2)

	_, _, ok := img.Library.Lookup("worker")
	assert.True(t, ok)
	m := img.Processes[1].Machine().(*vm.VM)
	assert.Equal(t, []domain.Value{domain.NewName(0, "out2"), domain.Int(41)}, m.Locals())

	space := memory.NewSpace()
	require.NoError(t, img.Deposit(ctx, space))
	sum, err := scheduler.New(space, scheduler.WithChannels(img.Channel)).RunUntilQuiescent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Completed)

	out, err := space.Ask(ctx, 0, "@0:out")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(21), out)
	out, err = space.Ask(ctx, 0, "@0:out2")
	require.NoError(t, err)
	assert.Equal(t, domain.Int(42), out)

	group, err := space.Peek(ctx, 2, "@2:procs")
	require.NoError(t, err)
	var spawned int
	for _, p := range group.(domain.Par) {
		if p.ID().NS == 7 {
			spawned++
		}
	}
	assert.Equal(t, 1, spawned)
}

func TestLoad_Invalid(t *testing.T) {
	for name, doc := range map[string]string{
		"bad channel":       `channel: procs`,
		"bad id":            "processes:\n  - id: adder\n    code: push 1\n",
		"duplicate id":      "processes:\n  - id: \"@1:a\"\n    code: push 1\n  - id: \"@1:a\"\n    code: push 2\n",
		"no code":           "processes:\n  - id: \"@1:a\"\n",
		"both":              "programs:\n  w: push 1\nprocesses:\n  - id: \"@1:a\"\n    code: push 1\n    program: w\n",
		"unknown program":   "processes:\n  - id: \"@1:a\"\n    program: w\n",
		"syntax":            "processes:\n  - id: \"@1:a\"\n    code: frobnicate\n",
		"unknown key":       "proccesses: []\n",
		"bad blocked_on":    "processes:\n  - id: \"@1:a\"\n    blocked_on: c4\n    code: push 1\n",
		"float value":       "values:\n  - channel: \"@0:c\"\n    value: 1.5\n",
		"bad value channel": "values:\n  - channel: c\n    value: 1\n",
		"not yaml":          "processes: [\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := image.Load(strings.NewReader(doc))
			assert.ErrorIs(t, err, image.ErrInvalid)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(adderImage), 0o644))

	img, err := image.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, img.Processes, 1)

	_, err = image.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Empty(t *testing.T) {
	img, err := image.Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, img.Processes)
	require.NoError(t, img.Deposit(context.Background(), memory.NewSpace()))
}

func TestToValue(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want domain.Value
	}{
		{nil, domain.Nil{}},
		{true, domain.Bool(true)},
		{7, domain.Int(7)},
		{"text", domain.Text("text")},
		{"@0:c4", domain.NewName(0, "c4")},
		{"@nope", domain.Text("@nope")},
		{[]any{1, "a"}, domain.List{domain.Int(1), domain.Text("a")}},
		{map[string]any{"k": 1}, domain.NewMap(domain.Entry{Key: domain.Text("k"), Val: domain.Int(1)})},
	} {
		got, err := image.ToValue(tc.in)
		require.NoError(t, err, "input %v", tc.in)
		assert.True(t, domain.Equal(tc.want, got), "input %v: got %s", tc.in, got)
	}

	_, err := image.ToValue(3.14)
	assert.Error(t, err)
}
