package trustregion

import (
	"fmt"
	"math"

	"github.com/kilianp07/gridopf/core/model"
)

const (
	DefaultMaxEvaluations = 10000
	DefaultTolerance      = 1e-6
)

// Bounds is the box [Lower, Upper] the search is confined to.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Config tunes a Solve call. Zero MaxEvaluations, Tolerance and Workers take
// their defaults; InitialRadius has none and must be set.
type Config struct {
	MaxEvaluations int
	// Tolerance is scaled by the magnitude of the bounds to give the radius
	// at which the run is considered converged.
	Tolerance     float64
	InitialRadius float64
	// MaxRadius caps radius growth. Zero means half the narrowest bound range.
	MaxRadius float64
	// InitialGuess defaults to the origin. It is clipped into the bounds.
	InitialGuess []float64
	// Workers bounds the concurrent evaluations of a sample batch.
	Workers  int
	Observer Observer
}

func (c *Config) setDefaults() {
	if c.MaxEvaluations == 0 {
		c.MaxEvaluations = DefaultMaxEvaluations
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// Validate checks b on its own.
func (b Bounds) Validate() error {
	if len(b.Lower) == 0 {
		return model.NewConfigError("bounds", "at least one variable is required")
	}
	if len(b.Lower) != len(b.Upper) {
		return model.NewConfigError("bounds", "%d lower bounds for %d upper bounds", len(b.Lower), len(b.Upper))
	}
	for i := range b.Lower {
		lo, hi := b.Lower[i], b.Upper[i]
		if !finite(lo) || !finite(hi) {
			return model.NewConfigError(fmt.Sprintf("bounds[%d]", i), "must be finite")
		}
		if !(lo < hi) {
			return model.NewConfigError(fmt.Sprintf("bounds[%d]", i), "lower %v must be below upper %v", lo, hi)
		}
	}
	return nil
}

// halfRange returns half the narrowest bound range.
func (b Bounds) halfRange() float64 {
	r := math.Inf(1)
	for i := range b.Lower {
		r = math.Min(r, (b.Upper[i]-b.Lower[i])/2)
	}
	return r
}

// scale returns max_i max(1, |lower_i|, |upper_i|).
func (b Bounds) scale() float64 {
	s := 1.0
	for i := range b.Lower {
		s = math.Max(s, math.Max(math.Abs(b.Lower[i]), math.Abs(b.Upper[i])))
	}
	return s
}

func (c Config) validate(b Bounds) error {
	if err := b.Validate(); err != nil {
		return err
	}
	n := len(b.Lower)
	if c.MaxEvaluations < 2*n+1 {
		return model.NewConfigError("max_evaluations", "must allow the %d initial samples, got %d", 2*n+1, c.MaxEvaluations)
	}
	if !(c.Tolerance > 0) || !finite(c.Tolerance) {
		return model.NewConfigError("tolerance", "must be strictly positive, got %v", c.Tolerance)
	}
	if !(c.InitialRadius > 0) || !finite(c.InitialRadius) {
		return model.NewConfigError("initial_radius", "must be strictly positive, got %v", c.InitialRadius)
	}
	if stop := c.Tolerance * b.scale(); c.InitialRadius < stop {
		return model.NewConfigError("initial_radius", "%v is below the stopping radius %v", c.InitialRadius, stop)
	}
	if half := b.halfRange(); c.InitialRadius > half {
		return model.NewConfigError("initial_radius", "%v exceeds half the narrowest bound range (%v)", c.InitialRadius, half)
	}
	if c.MaxRadius < 0 || math.IsNaN(c.MaxRadius) {
		return model.NewConfigError("max_radius", "must not be negative, got %v", c.MaxRadius)
	}
	if c.MaxRadius > 0 && c.MaxRadius < c.InitialRadius {
		return model.NewConfigError("max_radius", "%v is below initial_radius %v", c.MaxRadius, c.InitialRadius)
	}
	if c.InitialGuess != nil {
		if len(c.InitialGuess) != n {
			return model.NewConfigError("initial_guess", "expected %d values, got %d", n, len(c.InitialGuess))
		}
		for i, v := range c.InitialGuess {
			if !finite(v) {
				return model.NewConfigError(fmt.Sprintf("initial_guess[%d]", i), "must be finite")
			}
		}
	}
	return nil
}

// maxRadius returns the effective radius cap.
func (c Config) maxRadius(b Bounds) float64 {
	half := b.halfRange()
	if c.MaxRadius > 0 && c.MaxRadius < half {
		return c.MaxRadius
	}
	return half
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
