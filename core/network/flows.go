package network

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Theta expands the free angle vector into one angle per bus, with the slack
// bus at zero.
func (n *Network) Theta(angles []float64) ([]float64, error) {
	if len(angles) != len(n.free) {
		return nil, fmt.Errorf("%w: got %d angles for %d free buses", ErrAngleDimension, len(angles), len(n.free))
	}
	theta := make([]float64, len(n.buses))
	for i, a := range angles {
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return nil, fmt.Errorf("%w at position %d", ErrNonFiniteAngle, i)
		}
		theta[n.free[i]] = a
	}
	return theta, nil
}

// Injection returns the net outflow of bus id: the sum over incident lines of
// (θ_bus − θ_other)/x.
func (n *Network) Injection(id string, angles []float64) (float64, error) {
	bi, err := n.BusIndex(id)
	if err != nil {
		return 0, err
	}
	theta, err := n.Theta(angles)
	if err != nil {
		return 0, err
	}
	var p float64
	for k := range n.lines {
		switch bi {
		case n.from[k]:
			p += (theta[bi] - theta[n.to[k]]) * n.b[k]
		case n.to[k]:
			p += (theta[bi] - theta[n.from[k]]) * n.b[k]
		}
	}
	return p, nil
}

// Injections returns the net outflow of every bus, P = B·θ.
func (n *Network) Injections(angles []float64) ([]float64, error) {
	theta, err := n.Theta(angles)
	if err != nil {
		return nil, err
	}
	return n.injections(theta), nil
}

func (n *Network) injections(theta []float64) []float64 {
	p := mat.NewVecDense(len(n.buses), nil)
	p.MulVec(n.bbus, mat.NewVecDense(len(theta), theta))
	return p.RawVector().Data
}

// Requirement returns demand + net outflow per bus, before generator limits
// are applied.
func (n *Network) Requirement(angles []float64) ([]float64, error) {
	p, err := n.Injections(angles)
	if err != nil {
		return nil, err
	}
	for i, bus := range n.buses {
		p[i] += bus.DemandMW
	}
	return p, nil
}

// GeneratorOutput returns the generation implied by angles, clipped into each
// bus' [GenMinMW, GenMaxMW] range. The slack bus is clipped like any other;
// the resulting imbalance is left for the reporter to surface.
func (n *Network) GeneratorOutput(angles []float64) ([]float64, error) {
	pg, err := n.Requirement(angles)
	if err != nil {
		return nil, err
	}
	for i, bus := range n.buses {
		pg[i] = clip(pg[i], bus.GenMinMW, bus.GenMaxMW)
	}
	return pg, nil
}

// LineFlow returns (θ_from − θ_to)/x for the line at index k.
func (n *Network) LineFlow(k int, angles []float64) (float64, error) {
	if k < 0 || k >= len(n.lines) {
		return 0, fmt.Errorf("%w: index %d", ErrUnknownLine, k)
	}
	theta, err := n.Theta(angles)
	if err != nil {
		return 0, err
	}
	return (theta[n.from[k]] - theta[n.to[k]]) * n.b[k], nil
}

// LineFlows returns the flow of every line in case order.
func (n *Network) LineFlows(angles []float64) ([]float64, error) {
	theta, err := n.Theta(angles)
	if err != nil {
		return nil, err
	}
	flows := make([]float64, len(n.lines))
	for k := range n.lines {
		flows[k] = (theta[n.from[k]] - theta[n.to[k]]) * n.b[k]
	}
	return flows, nil
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
