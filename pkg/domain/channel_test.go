package domain_test

import (
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseName(t *testing.T) {
	n, err := domain.ParseName("@2:procs/main")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), n.NS)
	assert.Equal(t, "procs/main", n.Label)
	assert.Equal(t, "@2:procs/main", n.String())
	assert.Equal(t, []string{"procs", "main"}, n.Segments())

	empty, err := domain.ParseName("@0:")
	require.NoError(t, err)
	assert.Equal(t, "", empty.Label)
	assert.Nil(t, empty.Segments())

	colon, err := domain.ParseName("@1:a:b")
	require.NoError(t, err)
	assert.Equal(t, "a:b", colon.Label, "only the first colon separates the kind")
}

func TestParseName_Malformed(t *testing.T) {
	for _, bad := range []string{"", "c1", "0:c1", "@:c1", "@x:c1", "@256:c1", "@-1:c1", "@1"} {
		_, err := domain.ParseName(bad)
		assert.ErrorIs(t, err, domain.ErrMalformedChannel, "input %q", bad)
	}
}

func TestCheckKind(t *testing.T) {
	n, err := domain.CheckKind(1, "@1:c2")
	require.NoError(t, err)
	assert.Equal(t, domain.NewName(1, "c2"), n)

	_, err = domain.CheckKind(0, "@1:c2")
	assert.ErrorIs(t, err, domain.ErrKindMismatch)

	_, err = domain.CheckKind(0, "nope")
	assert.ErrorIs(t, err, domain.ErrMalformedChannel)
}

func TestName_Within(t *testing.T) {
	n := domain.NewName(2, "procs/main")
	assert.True(t, n.Within(""))
	assert.True(t, n.Within("procs"))
	assert.True(t, n.Within("procs/"))
	assert.True(t, n.Within("procs/main"))
	assert.False(t, n.Within("proc"))
	assert.False(t, domain.NewName(2, "procsx").Within("procs"))
}
