package opf

import (
	"fmt"
	"math"

	"github.com/kilianp07/gridopf/core/model"
	"github.com/kilianp07/gridopf/core/trustregion"
)

// DefaultInitialRadius is the starting trust-region radius in radians.
const DefaultInitialRadius = 0.5

// Config tunes one optimization run. Zero values take the defaults of
// SetDefaults. Angle vectors are indexed like Network.FreeBuses.
type Config struct {
	MaxEvaluations int     `json:"max_evaluations" yaml:"max_evaluations" validate:"gte=0"`
	Tolerance      float64 `json:"tolerance" yaml:"tolerance" validate:"gte=0"`
	// InitialRadius is a pointer so that an explicit zero is rejected
	// instead of being replaced by the default.
	InitialRadius *float64  `json:"initial_radius" yaml:"initial_radius"`
	MaxRadius     float64   `json:"max_radius" yaml:"max_radius" validate:"gte=0"`
	InitialGuess  []float64 `json:"initial_guess" yaml:"initial_guess"`
	LowerBounds   []float64 `json:"lower_bounds" yaml:"lower_bounds"`
	UpperBounds   []float64 `json:"upper_bounds" yaml:"upper_bounds"`
	Workers       int       `json:"workers" yaml:"workers" validate:"gte=0"`
}

// SetDefaults fills the scalar settings left at zero.
func (c *Config) SetDefaults() {
	if c.MaxEvaluations == 0 {
		c.MaxEvaluations = trustregion.DefaultMaxEvaluations
	}
	if c.Tolerance == 0 {
		c.Tolerance = trustregion.DefaultTolerance
	}
	if c.InitialRadius == nil {
		r := DefaultInitialRadius
		c.InitialRadius = &r
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
}

// WithInitialRadius returns a copy of c using radius r.
func (c Config) WithInitialRadius(r float64) Config {
	c.InitialRadius = &r
	return c
}

// problem turns c into optimizer settings for n free angles. Bounds default
// to [-π, π] and may only be narrowed.
func (c Config) problem(n int) (trustregion.Bounds, trustregion.Config, error) {
	c.SetDefaults()
	lower, err := boundVector("lower_bounds", c.LowerBounds, n, -math.Pi)
	if err != nil {
		return trustregion.Bounds{}, trustregion.Config{}, err
	}
	upper, err := boundVector("upper_bounds", c.UpperBounds, n, math.Pi)
	if err != nil {
		return trustregion.Bounds{}, trustregion.Config{}, err
	}
	return trustregion.Bounds{Lower: lower, Upper: upper}, trustregion.Config{
		MaxEvaluations: c.MaxEvaluations,
		Tolerance:      c.Tolerance,
		InitialRadius:  *c.InitialRadius,
		MaxRadius:      c.MaxRadius,
		InitialGuess:   c.InitialGuess,
		Workers:        c.Workers,
	}, nil
}

func boundVector(field string, v []float64, n int, def float64) ([]float64, error) {
	out := make([]float64, n)
	if v == nil {
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	if len(v) != n {
		return nil, model.NewConfigError(field, "expected %d values, got %d", n, len(v))
	}
	for i, b := range v {
		if math.IsNaN(b) || b < -math.Pi || b > math.Pi {
			return nil, model.NewConfigError(fmt.Sprintf("%s[%d]", field, i), "%v is outside [-π, π]", b)
		}
		out[i] = b
	}
	return out, nil
}
