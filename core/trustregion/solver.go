// Package trustregion implements a bound-constrained, derivative-free
// minimizer. A quadratic model is interpolated through 2n+1 samples and
// minimized inside a trust region; the true objective is only used to
// evaluate samples.
package trustregion

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const (
	growRatio    = 0.7
	shrinkRatio  = 0.1
	growFactor   = 2.0
	shrinkFactor = 0.5

	// farSlack keeps the 2r samples of a reflected stencil from counting
	// as far away.
	farSlack = 1e-9
	// minLagrange is the smallest Lagrange magnitude worth a geometry step.
	minLagrange = 1e-8
)

// errBudget stops a run that cannot afford the evaluations it needs.
var errBudget = errors.New("evaluation budget exhausted")

// Objective is the black-box function being minimized. It must not retain or
// modify x and must be safe for concurrent use when Config.Workers > 1.
type Objective func(x []float64) (float64, error)

// Result is the outcome of Solve. X and F hold the best sample found; they
// are empty after a degenerate failure.
type Result struct {
	Status      Status
	X           []float64
	F           float64
	Evaluations int
	Iterations  int
	Radius      float64
}

type state struct {
	obj    Objective
	bounds Bounds
	cfg    Config
	n      int

	model  *Model
	kopt   int
	radius float64
	rmax   float64
	stop   float64

	bestX []float64
	bestF float64

	evals int
	iters int
}

// Solve minimizes obj over bounds. Configuration problems are reported as
// *model.ConfigError before any evaluation. A run that uses up its budget
// returns StatusBudgetExhausted with a nil error. A sample set that cannot be
// repaired returns StatusDegenerateFailure with ErrDegenerateGeometry.
func Solve(obj Objective, bounds Bounds, cfg Config) (Result, error) {
	cfg.setDefaults()
	if err := cfg.validate(bounds); err != nil {
		return Result{Status: StatusInitializing}, err
	}
	n := len(bounds.Lower)
	s := &state{
		obj:    obj,
		bounds: bounds,
		cfg:    cfg,
		n:      n,
		radius: cfg.InitialRadius,
		rmax:   cfg.maxRadius(bounds),
		stop:   cfg.Tolerance * bounds.scale(),
		bestF:  math.Inf(1),
	}

	x0 := make([]float64, n)
	copy(x0, cfg.InitialGuess)
	s.clip(x0)
	points := s.stencil(x0, s.radius)
	values, err := evaluateBatch(obj, points, cfg.Workers)
	if err != nil {
		return s.fail(StatusInitializing, fmt.Errorf("evaluate initial samples: %w", err))
	}
	s.evals += len(points)
	if err := s.install(points, values, s.radius); err != nil {
		return s.fail(StatusInitializing, err)
	}
	s.observe(Iteration{Kind: StepInit})

	for {
		if s.evals >= cfg.MaxEvaluations {
			return s.result(StatusBudgetExhausted), nil
		}
		s.iters++
		status, err := s.iterate()
		if err != nil {
			return s.fail(StatusIterating, err)
		}
		if status.Terminal() {
			return s.result(status), nil
		}
	}
}

// iterate performs one trust-region step.
func (s *state) iterate() (Status, error) {
	center := s.model.Point(s.kopt)
	fopt := s.model.Value(s.kopt)
	lower := make([]float64, s.n)
	upper := make([]float64, s.n)
	floats.SubTo(lower, s.bounds.Lower, center)
	floats.SubTo(upper, s.bounds.Upper, center)

	step := solveSubproblem(s.model.Gradient(), s.model.Hessian(), lower, upper, s.radius)
	pred := s.model.Decrease(step)
	stepNorm := floats.Norm(step, 2)

	if stepNorm < 0.05*s.radius || pred <= 1e-12*math.Max(1, math.Abs(fopt)) {
		return s.noProgress(center, fopt)
	}

	trial := make([]float64, s.n)
	floats.AddTo(trial, center, step)
	s.clip(trial)
	fnew, err := s.evaluate(trial)
	if err != nil {
		return StatusIterating, err
	}

	ratio := (fopt - fnew) / pred
	switch {
	case ratio >= growRatio:
		s.radius = math.Min(growFactor*s.radius, s.rmax)
	case ratio < shrinkRatio:
		s.radius = math.Max(shrinkFactor*s.radius, s.stop)
	}

	if err := s.replace(center, trial, fnew, fopt); err != nil {
		return StatusIterating, err
	}
	s.observe(Iteration{Kind: StepTrial, Ratio: ratio, Accepted: fnew < fopt, StepNorm: stepNorm})
	return StatusIterating, nil
}

// noProgress handles an iteration where the model predicts no useful
// decrease: a far sample is pulled back toward the center, otherwise the
// radius shrinks until it reaches the stopping radius. This is the only
// place a run converges.
func (s *state) noProgress(center []float64, fopt float64) (Status, error) {
	far, dist := 0, -1.0
	for k := 0; k < s.model.Size(); k++ {
		if d := floats.Distance(s.model.Point(k), center, 2); d > dist {
			far, dist = k, d
		}
	}
	if dist > 2*s.radius*(1+farSlack) {
		moved, err := s.geometryStep(center, fopt, far)
		if err != nil {
			return StatusIterating, err
		}
		if moved {
			s.observe(Iteration{Kind: StepGeometry})
			return StatusIterating, nil
		}
	}

	if s.radius <= s.stop {
		return StatusConverged, nil
	}
	s.radius = math.Max(shrinkFactor*s.radius, s.stop)
	if err := s.model.Rebuild(s.kopt, s.radius); err != nil {
		if err := s.reset(s.radius); err != nil {
			return StatusIterating, err
		}
	}
	s.observe(Iteration{Kind: StepShrink})
	return StatusIterating, nil
}

// geometryStep replaces sample far with the coordinate point at distance
// radius from the center that maximizes the magnitude of far's Lagrange
// function. It reports false without evaluating when no candidate improves
// the geometry.
func (s *state) geometryStep(center []float64, fopt float64, far int) (bool, error) {
	var best []float64
	bestVal := -1.0
	for i := 0; i < s.n; i++ {
		for _, sign := range []float64{1, -1} {
			p := append([]float64(nil), center...)
			p[i] = clip(center[i]+sign*s.radius, s.bounds.Lower[i], s.bounds.Upper[i])
			if floats.Equal(p, center) {
				continue
			}
			lag, err := s.model.Lagrange(p)
			if err != nil {
				return true, s.reset(s.radius)
			}
			if v := math.Abs(lag[far]); v > bestVal {
				best, bestVal = p, v
			}
		}
	}
	if best == nil || bestVal <= minLagrange {
		return false, nil
	}
	fnew, err := s.evaluate(best)
	if err != nil {
		return false, err
	}
	k := s.kopt
	if fnew < fopt {
		k = far
	}
	if err := s.model.UpdateAfterSwap(far, best, fnew, k, s.radius); err != nil {
		return true, s.reset(s.radius)
	}
	s.kopt = k
	return true, nil
}

// replace puts the trial point into the sample set. Candidates are tried in
// decreasing order of |Lagrange value| weighted by their scaled distance from
// the center; the set is rebuilt around the best point when none of them
// keeps the geometry poised.
func (s *state) replace(center, trial []float64, fnew, fopt float64) error {
	lag, err := s.model.Lagrange(trial)
	if err != nil {
		return s.reset(math.Max(s.radius, s.stop))
	}
	r := s.model.Radius()
	type candidate struct {
		k      int
		weight float64
	}
	cands := make([]candidate, 0, s.model.Size()-1)
	for k := 0; k < s.model.Size(); k++ {
		if k == s.kopt {
			continue
		}
		d := floats.Distance(s.model.Point(k), center, 2) / r
		cands = append(cands, candidate{k: k, weight: math.Abs(lag[k]) * math.Max(1, d*d)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].weight != cands[j].weight {
			return cands[i].weight > cands[j].weight
		}
		return cands[i].k < cands[j].k
	})

	radius := math.Max(s.radius, s.stop)
	for _, c := range cands {
		k := s.kopt
		if fnew < fopt {
			k = c.k
		}
		if err := s.model.UpdateAfterSwap(c.k, trial, fnew, k, radius); err == nil {
			s.kopt = k
			return nil
		}
	}
	return s.reset(radius)
}

// reset discards the sample set and samples a fresh stencil around the best
// point found so far.
func (s *state) reset(radius float64) error {
	if s.evals+2*s.n > s.cfg.MaxEvaluations {
		return errBudget
	}
	points := s.stencil(s.bestX, radius)
	values := make([]float64, len(points))
	values[0] = s.bestF
	rest, err := evaluateBatch(s.obj, points[1:], s.cfg.Workers)
	if err != nil {
		return fmt.Errorf("evaluate reset samples: %w", err)
	}
	s.evals += len(rest)
	copy(values[1:], rest)
	return s.install(points, values, radius)
}

// install replaces the model with a fit through points centered on the
// lowest value.
func (s *state) install(points [][]float64, values []float64, radius float64) error {
	kopt := floats.MinIdx(values)
	s.record(points[kopt], values[kopt])
	m, err := NewModel(points, values)
	if err != nil {
		return err
	}
	if err := m.Rebuild(kopt, radius); err != nil {
		return err
	}
	s.model, s.kopt = m, kopt
	return nil
}

// stencil returns center followed by center + r·e_i and center − r·e_i.
// A coordinate that would leave the box is sampled twice on the inner side
// (±r and ±2r) instead.
func (s *state) stencil(center []float64, r float64) [][]float64 {
	points := make([][]float64, 2*s.n+1)
	points[0] = append([]float64(nil), center...)
	for i := 0; i < s.n; i++ {
		plus := append([]float64(nil), center...)
		minus := append([]float64(nil), center...)
		lo, hi := s.bounds.Lower[i], s.bounds.Upper[i]
		switch {
		case center[i]+r > hi:
			plus[i] = center[i] - r
			minus[i] = math.Max(center[i]-2*r, lo)
		case center[i]-r < lo:
			plus[i] = center[i] + r
			minus[i] = math.Min(center[i]+2*r, hi)
		default:
			plus[i] = center[i] + r
			minus[i] = center[i] - r
		}
		points[1+i] = plus
		points[1+s.n+i] = minus
	}
	return points
}

func (s *state) evaluate(x []float64) (float64, error) {
	v, err := evaluate(s.obj, x)
	if err != nil {
		return 0, err
	}
	s.evals++
	s.record(x, v)
	return v, nil
}

func (s *state) record(x []float64, f float64) {
	if f < s.bestF {
		s.bestX = append(s.bestX[:0], x...)
		s.bestF = f
	}
}

func (s *state) observe(it Iteration) {
	if s.cfg.Observer == nil {
		return
	}
	it.Iteration = s.iters
	it.Evaluations = s.evals
	it.Radius = s.radius
	it.Best = s.bestF
	s.cfg.Observer.Observe(it)
}

func (s *state) result(status Status) Result {
	return Result{
		Status:      status,
		X:           append([]float64(nil), s.bestX...),
		F:           s.bestF,
		Evaluations: s.evals,
		Iterations:  s.iters,
		Radius:      s.radius,
	}
}

// fail maps an error raised in state st to the run outcome.
func (s *state) fail(st Status, err error) (Result, error) {
	switch {
	case errors.Is(err, errBudget):
		return s.result(StatusBudgetExhausted), nil
	case errors.Is(err, ErrDegenerateGeometry):
		return Result{Status: StatusDegenerateFailure, Evaluations: s.evals, Iterations: s.iters, Radius: s.radius}, err
	}
	return Result{Status: st, Evaluations: s.evals, Iterations: s.iters, Radius: s.radius}, err
}

func (s *state) clip(x []float64) {
	for i := range x {
		x[i] = clip(x[i], s.bounds.Lower[i], s.bounds.Upper[i])
	}
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
