package trustregion

import "errors"

var (
	// ErrDegenerateGeometry is returned when the sample set cannot be made
	// poised. No usable point is available; the caller has to re-seed.
	ErrDegenerateGeometry = errors.New("degenerate interpolation geometry")
	// ErrNonFiniteValue is returned when the objective yields NaN or Inf.
	ErrNonFiniteValue = errors.New("objective returned a non-finite value")
)
