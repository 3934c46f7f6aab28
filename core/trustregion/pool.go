package trustregion

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// evaluateBatch evaluates points with at most workers concurrent calls. The
// values are stored by index, so the outcome does not depend on scheduling.
func evaluateBatch(obj Objective, points [][]float64, workers int) ([]float64, error) {
	values := make([]float64, len(points))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			v, err := evaluate(obj, p)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

func evaluate(obj Objective, x []float64) (float64, error) {
	v, err := obj(x)
	if err != nil {
		return 0, err
	}
	if !finite(v) {
		return 0, fmt.Errorf("%w: %v at %v", ErrNonFiniteValue, v, x)
	}
	return v, nil
}
