package evolve

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActivation(t *testing.T) {
	fn, err := GetActivation("sigmoid")
	require.NoError(t, err)
	assert.Equal(t, 0.5, fn(0))
	assert.InDelta(t, 1.0, fn(1000), 1e-12)
	assert.False(t, math.IsNaN(fn(-1e9)))

	_, err = GetActivation("softsign")
	assert.ErrorContains(t, err, "softsign")
}

func TestActivationShapes(t *testing.T) {
	assert.Equal(t, 0.0, ReLU(-2))
	assert.Equal(t, 2.0, ReLU(2))
	assert.Equal(t, -1.0, Clamped(-3))
	assert.Equal(t, 0.25, Clamped(0.25))
	assert.Equal(t, 1.0, Gaussian(0))
	assert.Equal(t, 1.0, Hat(0))
	assert.Equal(t, 0.5, Hat(-0.5))
	assert.Equal(t, 0.0, Hat(2))
}
