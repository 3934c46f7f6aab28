package trustregion

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// maxCondition bounds the condition number of the interpolation system. A
// sample set above it is treated as not poised.
const maxCondition = 1e15

// Model is a minimum Frobenius norm quadratic interpolant
//
//	m(s) = c + gᵀs + ½ sᵀHs
//
// through a set of samples, expressed around one of them (the center).
// Points are scaled by the radius before the KKT system is factorized so its
// conditioning does not depend on the trust-region size.
type Model struct {
	n      int
	points [][]float64
	values []float64
	fit    *fit
}

type fit struct {
	center  []float64
	fcenter float64
	radius  float64
	u       [][]float64 // scaled displacements (p - center)/radius
	lu      mat.LU      // KKT factorization, reused by Lagrange
	c       float64
	g       []float64
	h       *mat.SymDense
}

// NewModel takes ownership of a sample set of n-dimensional points. At least
// n+2 samples are required; the solver uses 2n+1. The model is unusable until
// Rebuild succeeds.
func NewModel(points [][]float64, values []float64) (*Model, error) {
	if len(points) == 0 || len(points) != len(values) {
		return nil, fmt.Errorf("%w: %d points for %d values", ErrDegenerateGeometry, len(points), len(values))
	}
	n := len(points[0])
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional points", ErrDegenerateGeometry)
	}
	if len(points) < n+2 {
		return nil, fmt.Errorf("%w: %d points cannot determine a quadratic in %d dimensions", ErrDegenerateGeometry, len(points), n)
	}
	for i, p := range points {
		if len(p) != n {
			return nil, fmt.Errorf("%w: point %d has dimension %d, want %d", ErrDegenerateGeometry, i, len(p), n)
		}
	}
	return &Model{n: n, points: points, values: values}, nil
}

// Dim returns the dimension of the sample points.
func (m *Model) Dim() int { return m.n }

// Size returns the number of samples.
func (m *Model) Size() int { return len(m.points) }

// Point returns sample k. The slice must not be modified.
func (m *Model) Point(k int) []float64 { return m.points[k] }

// Value returns the objective value of sample k.
func (m *Model) Value(k int) float64 { return m.values[k] }

// Rebuild fits the model around sample center with the given radius. On
// failure the previous fit is kept and the error wraps
// ErrDegenerateGeometry.
func (m *Model) Rebuild(center int, radius float64) error {
	if !(radius > 0) {
		return fmt.Errorf("%w: radius %v", ErrDegenerateGeometry, radius)
	}
	np := len(m.points)
	size := np + m.n + 1

	f := &fit{
		center:  append([]float64(nil), m.points[center]...),
		fcenter: m.values[center],
		radius:  radius,
		u:       make([][]float64, np),
	}
	for k, p := range m.points {
		u := make([]float64, m.n)
		floats.SubTo(u, p, f.center)
		floats.Scale(1/radius, u)
		f.u[k] = u
	}

	w := mat.NewDense(size, size, nil)
	for i := 0; i < np; i++ {
		for j := i; j < np; j++ {
			d := floats.Dot(f.u[i], f.u[j])
			w.Set(i, j, 0.5*d*d)
			w.Set(j, i, 0.5*d*d)
		}
		w.Set(i, np, 1)
		w.Set(np, i, 1)
		for a, ua := range f.u[i] {
			w.Set(i, np+1+a, ua)
			w.Set(np+1+a, i, ua)
		}
	}
	f.lu.Factorize(w)
	if cond := f.lu.Cond(); !(cond < maxCondition) {
		return fmt.Errorf("%w: interpolation system condition %.3g", ErrDegenerateGeometry, cond)
	}

	rhs := mat.NewVecDense(size, nil)
	for k, v := range m.values {
		rhs.SetVec(k, v-f.fcenter)
	}
	var sol mat.VecDense
	if err := f.lu.SolveVecTo(&sol, false, rhs); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateGeometry, err)
	}

	f.c = sol.AtVec(np)
	f.g = make([]float64, m.n)
	for a := range f.g {
		f.g[a] = sol.AtVec(np+1+a) / radius
	}
	f.h = mat.NewSymDense(m.n, nil)
	for k := 0; k < np; k++ {
		f.h.SymRankOne(f.h, sol.AtVec(k), mat.NewVecDense(m.n, f.u[k]))
	}
	f.h.ScaleSym(1/(radius*radius), f.h)
	for _, v := range append([]float64{f.c}, f.g...) {
		if !finite(v) {
			return fmt.Errorf("%w: non-finite model coefficient", ErrDegenerateGeometry)
		}
	}

	m.fit = f
	return nil
}

// UpdateAfterSwap replaces sample k with point and refits around sample
// center. If the new set is not poised the previous sample and fit are
// restored.
func (m *Model) UpdateAfterSwap(k int, point []float64, value float64, center int, radius float64) error {
	oldP, oldV := m.points[k], m.values[k]
	m.points[k], m.values[k] = point, value
	if err := m.Rebuild(center, radius); err != nil {
		m.points[k], m.values[k] = oldP, oldV
		return err
	}
	return nil
}

// Center returns the point the model is expanded around.
func (m *Model) Center() []float64 { return m.fit.center }

// Radius returns the scaling radius of the current fit.
func (m *Model) Radius() float64 { return m.fit.radius }

// Gradient returns g.
func (m *Model) Gradient() []float64 { return m.fit.g }

// Hessian returns H.
func (m *Model) Hessian() mat.Symmetric { return m.fit.h }

// Predict returns the model estimate of f(center+step).
func (m *Model) Predict(step []float64) float64 {
	return m.fit.fcenter + m.fit.c - m.Decrease(step)
}

// Decrease returns the reduction m(0) - m(step) predicted by the model.
func (m *Model) Decrease(step []float64) float64 {
	return -(floats.Dot(m.fit.g, step) + 0.5*quadForm(m.fit.h, step))
}

// Lagrange returns the value at point of the Lagrange function of every
// sample, using the current fit. Errors wrap ErrDegenerateGeometry.
func (m *Model) Lagrange(point []float64) ([]float64, error) {
	f := m.fit
	if f == nil {
		return nil, fmt.Errorf("%w: model has no fit", ErrDegenerateGeometry)
	}
	np := len(m.points)
	u := make([]float64, m.n)
	floats.SubTo(u, point, f.center)
	floats.Scale(1/f.radius, u)

	rhs := mat.NewVecDense(np+m.n+1, nil)
	for j, uj := range f.u {
		d := floats.Dot(u, uj)
		rhs.SetVec(j, 0.5*d*d)
	}
	rhs.SetVec(np, 1)
	for a, ua := range u {
		rhs.SetVec(np+1+a, ua)
	}
	var sol mat.VecDense
	if err := f.lu.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, fmt.Errorf("%w: lagrange solve: %v", ErrDegenerateGeometry, err)
	}
	out := make([]float64, np)
	for k := range out {
		out[k] = sol.AtVec(k)
	}
	return out, nil
}

func quadForm(h mat.Symmetric, v []float64) float64 {
	hv := mulVec(h, v)
	return floats.Dot(v, hv)
}

func mulVec(h mat.Symmetric, v []float64) []float64 {
	out := mat.NewVecDense(len(v), nil)
	out.MulVec(h, mat.NewVecDense(len(v), v))
	return out.RawVector().Data
}
