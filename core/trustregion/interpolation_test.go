package trustregion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bowl(x []float64) float64 {
	return 3 + (x[0]-0.5)*(x[0]-0.5) + 2*x[1]*x[1] + 0.5*x[0]*x[1]
}

func stencilSamples(center []float64, r float64) ([][]float64, []float64) {
	pts := [][]float64{
		{center[0], center[1]},
		{center[0] + r, center[1]},
		{center[0], center[1] + r},
		{center[0] - r, center[1]},
		{center[0], center[1] - r},
	}
	vals := make([]float64, len(pts))
	for i, p := range pts {
		vals[i] = bowl(p)
	}
	return pts, vals
}

func TestModelInterpolatesSamples(t *testing.T) {
	pts, vals := stencilSamples([]float64{0.2, -0.1}, 0.3)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(0, 0.3))

	c := m.Center()
	for k, p := range pts {
		step := []float64{p[0] - c[0], p[1] - c[1]}
		assert.InDelta(t, vals[k], m.Predict(step), 1e-9, "sample %d", k)
	}
	assert.InDelta(t, 0, m.Decrease([]float64{0, 0}), 1e-12)
}

func TestModelRecoversGradientOfQuadratic(t *testing.T) {
	pts, vals := stencilSamples([]float64{0.2, -0.1}, 0.1)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(0, 0.1))

	// ∇f = (2(x-0.5) + 0.5y, 4y + 0.5x); central differences are exact for
	// a quadratic along the axes.
	g := m.Gradient()
	assert.InDelta(t, 2*(0.2-0.5)+0.5*-0.1, g[0], 1e-9)
	assert.InDelta(t, 4*-0.1+0.5*0.2, g[1], 1e-9)
}

func TestLagrangeIsKroneckerOnSamples(t *testing.T) {
	pts, vals := stencilSamples([]float64{0, 0}, 1)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(0, 1))

	for j, p := range pts {
		l, err := m.Lagrange(p)
		require.NoError(t, err)
		for k := range l {
			want := 0.0
			if k == j {
				want = 1
			}
			assert.InDelta(t, want, l[k], 1e-9, "l_%d(x_%d)", k, j)
		}
	}
}

func TestLagrangeWithoutFit(t *testing.T) {
	pts, vals := stencilSamples([]float64{0, 0}, 1)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)

	l, err := m.Lagrange([]float64{0.5, 0})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	assert.Nil(t, l)
}

func TestUpdateAfterSwapKeepsExactness(t *testing.T) {
	pts, vals := stencilSamples([]float64{0, 0}, 0.5)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(0, 0.5))

	p := []float64{0.3, 0.4}
	require.NoError(t, m.UpdateAfterSwap(3, p, bowl(p), 0, 0.5))
	assert.Equal(t, p, m.Point(3))

	c := m.Center()
	for k := 0; k < m.Size(); k++ {
		x := m.Point(k)
		assert.InDelta(t, m.Value(k), m.Predict([]float64{x[0] - c[0], x[1] - c[1]}), 1e-9)
	}
}

func TestUpdateAfterSwapRestoresOnDegeneracy(t *testing.T) {
	pts, vals := stencilSamples([]float64{0, 0}, 0.5)
	m, err := NewModel(pts, vals)
	require.NoError(t, err)
	require.NoError(t, m.Rebuild(0, 0.5))
	before := m.Predict([]float64{0.1, 0.2})

	dup := append([]float64(nil), pts[1]...)
	err = m.UpdateAfterSwap(2, dup, bowl(dup), 0, 0.5)
	require.ErrorIs(t, err, ErrDegenerateGeometry)
	assert.Equal(t, []float64{0, 0.5}, m.Point(2))
	assert.InDelta(t, before, m.Predict([]float64{0.1, 0.2}), 1e-12)
}

func TestRebuildRejectsCollapsedSet(t *testing.T) {
	pts := [][]float64{{1, 1}, {1, 1}, {1, 1}, {1, 1}, {1, 1}}
	m, err := NewModel(pts, []float64{1, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Rebuild(0, 0.1), ErrDegenerateGeometry)
}

func TestNewModelShapeErrors(t *testing.T) {
	_, err := NewModel([][]float64{{0, 0}, {1, 0}, {0, 1}}, []float64{0, 1, 2})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	_, err = NewModel([][]float64{{0}, {1}, {2}}, []float64{0, 1})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
	_, err = NewModel([][]float64{{0}, {1}, {2, 3}}, []float64{0, 1, 2})
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}
