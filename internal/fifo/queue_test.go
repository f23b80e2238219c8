package fifo

import (
	"testing"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrderAcrossCompaction(t *testing.T) {
	var q Queue
	_, ok := q.Front()
	assert.False(t, ok)

	for i := 0; i < 200; i++ {
		q.Push(domain.Int(i))
	}
	for i := 0; i < 150; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, domain.Int(i), v)
	}
	assert.Equal(t, 50, q.Len())
	assert.Less(t, q.head, 150, "consumed slots should have been compacted")

	for i := 200; i < 210; i++ {
		q.Push(domain.Int(i))
	}
	for i := 150; i < 210; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, domain.Int(i), v)
	}
	_, ok = q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}
