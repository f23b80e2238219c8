package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndExecute(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("double", func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		return args[0].(domain.Int) * 2, nil
	})
	r.Register("nothing", func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		return nil, nil
	})

	v, err := r.Execute(context.Background(), "double", []domain.Value{domain.Int(4)})
	require.NoError(t, err)
	assert.Equal(t, domain.Int(8), v)

	v, err = r.Execute(context.Background(), "nothing", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Nil{}, v)

	_, err = r.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	assert.Equal(t, []string{"double", "nothing"}, r.Names())
}

func TestRegistry_ErrorPropagates(t *testing.T) {
	r := registry.NewRegistry()
	boom := errors.New("boom")
	r.Register("fail", func(ctx context.Context, args []domain.Value) (domain.Value, error) {
		return nil, boom
	})
	_, err := r.Execute(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestBuiltins(t *testing.T) {
	ctx := context.Background()
	r := registry.Default()
	m := domain.NewMap(
		domain.Entry{Key: domain.Text("b"), Val: domain.Int(2)},
		domain.Entry{Key: domain.Text("a"), Val: domain.Int(1)},
	)

	cases := []struct {
		name string
		args []domain.Value
		want domain.Value
	}{
		{"len", []domain.Value{domain.Text("abc")}, domain.Int(3)},
		{"len", []domain.Value{m}, domain.Int(2)},
		{"str", []domain.Value{domain.Int(42)}, domain.Text("42")},
		{"upper", []domain.Value{domain.Text("hi")}, domain.Text("HI")},
		{"lower", []domain.Value{domain.Text("HI")}, domain.Text("hi")},
		{"keys", []domain.Value{m}, domain.List{domain.Text("a"), domain.Text("b")}},
		{"values", []domain.Value{m}, domain.List{domain.Int(1), domain.Int(2)}},
		{"append", []domain.Value{domain.List{domain.Int(1)}, domain.Int(2)}, domain.List{domain.Int(1), domain.Int(2)}},
		{"contains", []domain.Value{domain.List{domain.Int(1)}, domain.Int(1)}, domain.Bool(true)},
		{"contains", []domain.Value{domain.Text("hello"), domain.Text("ell")}, domain.Bool(true)},
		{"contains", []domain.Value{m, domain.Text("z")}, domain.Bool(false)},
		{"int", []domain.Value{domain.Text(" 17 ")}, domain.Int(17)},
		{"int", []domain.Value{domain.Bool(true)}, domain.Int(1)},
	}
	for _, tc := range cases {
		got, err := r.Execute(ctx, tc.name, tc.args)
		require.NoError(t, err, tc.name)
		assert.True(t, domain.Equal(tc.want, got), "%s(%v): want %s, got %s", tc.name, tc.args, tc.want, got)
	}
}

func TestBuiltins_Errors(t *testing.T) {
	ctx := context.Background()
	r := registry.Default()

	_, err := r.Execute(ctx, "len", []domain.Value{domain.Int(1)})
	assert.Error(t, err)
	_, err = r.Execute(ctx, "upper", []domain.Value{domain.Text("a"), domain.Text("b")})
	assert.ErrorContains(t, err, "expected 1 arguments")
	_, err = r.Execute(ctx, "int", []domain.Value{domain.Text("x")})
	assert.Error(t, err)
}
