package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	require.Equal(t, 1.0, sim)

	sim, err = Cosine([]float64{1, 0}, []float64{0, 2})
	require.NoError(t, err)
	require.InDelta(t, 0.0, sim, 1e-12)

	sim, err = Cosine([]float64{1, 1}, []float64{-1, -1})
	require.NoError(t, err)
	require.InDelta(t, -1.0, sim, 1e-12)

	_, err = Cosine([]float64{1}, []float64{1, 2})
	require.ErrorIs(t, err, ErrDimension)

	_, err = Cosine([]float64{0, 0}, []float64{1, 2})
	require.ErrorIs(t, err, ErrZeroVector)
}

func TestFiniteAndFloat32(t *testing.T) {
	require.True(t, Finite([]float64{1, -2}))
	require.False(t, Finite([]float64{1, math.NaN()}))
	require.Equal(t, []float32{0.5, 2}, ToFloat32([]float64{0.5, 2}))
}
