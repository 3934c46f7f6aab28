package trustregion

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// solveSubproblem approximately minimizes gᵀs + ½ sᵀHs subject to ‖s‖ ≤ radius
// and lower ≤ s ≤ upper (the box shifted to the center, so lower ≤ 0 ≤ upper).
//
// Truncated conjugate gradients run on the free variables. A variable is
// fixed once CG reaches its bound or when the gradient pushes it outward
// from a bound it already sits on, after which CG restarts. The projected
// Cauchy step is kept instead when it scores better.
func solveSubproblem(g []float64, h mat.Symmetric, lower, upper []float64, radius float64) []float64 {
	n := len(g)
	s := make([]float64, n)
	free := make([]bool, n)
	for i := range free {
		free[i] = true
	}
	tiny := 1e-30 * (1 + floats.Dot(g, g))
	mask := func(v []float64) {
		for i := range v {
			if !free[i] {
				v[i] = 0
			}
		}
	}

	for outer := 0; outer <= n; outer++ {
		grad := mulVec(h, s)
		floats.Add(grad, g)
		for i := range free {
			if free[i] && ((s[i] <= lower[i] && grad[i] > 0) || (s[i] >= upper[i] && grad[i] < 0)) {
				free[i] = false
			}
		}
		r := make([]float64, n)
		floats.ScaleTo(r, -1, grad)
		mask(r)
		rr := floats.Dot(r, r)
		if rr <= tiny {
			break
		}

		d := append([]float64(nil), r...)
		done, hitBound := false, false
		for inner := 0; inner < n; inner++ {
			hd := mulVec(h, d)
			mask(hd)
			dhd := floats.Dot(d, hd)

			sd, dd, ss := floats.Dot(s, d), floats.Dot(d, d), floats.Dot(s, s)
			disc := sd*sd + dd*(radius*radius-ss)
			toBall := (-sd + math.Sqrt(math.Max(disc, 0))) / dd

			toBox, hit := math.Inf(1), -1
			for i := range d {
				if !free[i] {
					continue
				}
				var a float64
				switch {
				case d[i] > 0:
					a = (upper[i] - s[i]) / d[i]
				case d[i] < 0:
					a = (lower[i] - s[i]) / d[i]
				default:
					continue
				}
				if a < toBox {
					toBox, hit = a, i
				}
			}

			cg := math.Inf(1)
			if dhd > 0 {
				cg = rr / dhd
			}
			alpha := math.Min(cg, math.Min(toBall, toBox))
			floats.AddScaled(s, alpha, d)

			if alpha == toBox && toBox <= toBall {
				if d[hit] > 0 {
					s[hit] = upper[hit]
				} else {
					s[hit] = lower[hit]
				}
				free[hit] = false
				hitBound = true
				break
			}
			if alpha == toBall {
				done = true
				break
			}

			floats.AddScaled(r, -alpha, hd)
			rrNew := floats.Dot(r, r)
			if rrNew <= tiny {
				done = true
				break
			}
			beta := rrNew / rr
			rr = rrNew
			floats.Scale(beta, d)
			floats.Add(d, r)
			mask(d)
		}
		if done || !hitBound {
			break
		}
	}

	if c := cauchyStep(g, h, lower, upper, radius); c != nil {
		if modelValue(g, h, c) < modelValue(g, h, s) {
			return c
		}
	}
	return s
}

// cauchyStep minimizes the model along the projected steepest descent
// direction within the ball and the box. It returns nil when no descent
// direction is feasible.
func cauchyStep(g []float64, h mat.Symmetric, lower, upper []float64, radius float64) []float64 {
	d := make([]float64, len(g))
	floats.ScaleTo(d, -1, g)
	for i := range d {
		if (lower[i] >= 0 && d[i] < 0) || (upper[i] <= 0 && d[i] > 0) {
			d[i] = 0
		}
	}
	dd := floats.Dot(d, d)
	if dd == 0 {
		return nil
	}
	amax := radius / math.Sqrt(dd)
	for i := range d {
		switch {
		case d[i] > 0:
			amax = math.Min(amax, upper[i]/d[i])
		case d[i] < 0:
			amax = math.Min(amax, lower[i]/d[i])
		}
	}
	a := amax
	if dhd := quadForm(h, d); dhd > 0 {
		a = math.Min(amax, dd/dhd)
	}
	floats.Scale(a, d)
	return d
}

func modelValue(g []float64, h mat.Symmetric, s []float64) float64 {
	return floats.Dot(g, s) + 0.5*quadForm(h, s)
}
