package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic(t *testing.T) {
	e := New(64)
	a, err := e.Embed(context.Background(), "110V single phase")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "110V single phase")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := e.Embed(context.Background(), "230V three phase")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestUnitNorm(t *testing.T) {
	e := New(128)
	emb, err := e.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, emb, 128)

	var sum float64
	for _, v := range emb {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}
