// Package network holds the immutable DC power-flow model of a transmission
// network. All methods are pure functions of the free angle vector, which
// lists the angles of every non-slack bus in case order.
package network

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/gridopf/core/model"
)

var (
	// ErrAngleDimension is returned when an angle vector does not have one
	// entry per non-slack bus.
	ErrAngleDimension = errors.New("angle vector dimension mismatch")
	// ErrNonFiniteAngle is returned for NaN or infinite angles.
	ErrNonFiniteAngle = errors.New("non-finite angle")
	// ErrUnknownBus is returned when a bus identifier is not part of the network.
	ErrUnknownBus = errors.New("unknown bus")
	// ErrUnknownLine is returned for an out of range line index.
	ErrUnknownLine = errors.New("unknown line")
)

// Network is a validated, immutable network snapshot.
type Network struct {
	buses []model.Bus
	lines []model.Line
	costs []model.CostCoefficient // aligned with buses

	index map[string]int
	slack int
	free  []int // bus index of each free angle
	pos   []int // free angle position of each bus, -1 for the slack

	from, to []int
	b        []float64 // 1/x per line

	bbus *mat.SymDense
}

// New validates c and builds the network. Any violated invariant is reported
// as a *model.ConfigError.
func New(c model.Case) (*Network, error) {
	if len(c.Buses) == 0 {
		return nil, model.NewConfigError("buses", "at least one bus is required")
	}
	n := &Network{
		buses: append([]model.Bus(nil), c.Buses...),
		lines: make([]model.Line, len(c.Lines)),
		costs: make([]model.CostCoefficient, len(c.Buses)),
		index: make(map[string]int, len(c.Buses)),
		slack: -1,
		pos:   make([]int, len(c.Buses)),
		from:  make([]int, len(c.Lines)),
		to:    make([]int, len(c.Lines)),
		b:     make([]float64, len(c.Lines)),
	}
	if err := n.indexBuses(); err != nil {
		return nil, err
	}
	if err := n.indexLines(c.Lines); err != nil {
		return nil, err
	}
	if err := n.alignCosts(c.Costs); err != nil {
		return nil, err
	}
	n.buildSusceptance()
	return n, nil
}

func (n *Network) indexBuses() error {
	for i, bus := range n.buses {
		field := fmt.Sprintf("buses[%d]", i)
		if bus.ID == "" {
			return model.NewConfigError(field+".id", "must not be empty")
		}
		if _, dup := n.index[bus.ID]; dup {
			return model.NewConfigError(field+".id", "duplicate bus %q", bus.ID)
		}
		if !finite(bus.DemandMW, bus.GenMinMW, bus.GenMaxMW) {
			return model.NewConfigError(field, "demand and generator limits must be finite")
		}
		if bus.GenMinMW > bus.GenMaxMW {
			return model.NewConfigError(field, "gen_min_mw %v exceeds gen_max_mw %v", bus.GenMinMW, bus.GenMaxMW)
		}
		if bus.Slack {
			if n.slack >= 0 {
				return model.NewConfigError(field+".slack", "bus %q is a second slack bus (already %q)", bus.ID, n.buses[n.slack].ID)
			}
			n.slack = i
		}
		n.index[bus.ID] = i
	}
	if n.slack < 0 {
		return model.NewConfigError("buses", "no slack bus defined")
	}
	for i := range n.buses {
		if i == n.slack {
			n.pos[i] = -1
			continue
		}
		n.pos[i] = len(n.free)
		n.free = append(n.free, i)
	}
	return nil
}

func (n *Network) indexLines(lines []model.Line) error {
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if !(l.Reactance > 0) || math.IsInf(l.Reactance, 0) {
			return model.NewConfigError(field+".reactance", "must be strictly positive and finite, got %v", l.Reactance)
		}
		if l.From == l.To {
			return model.NewConfigError(field, "line connects bus %q to itself", l.From)
		}
		f, ok := n.index[l.From]
		if !ok {
			return model.NewConfigError(field+".from", "unknown bus %q", l.From)
		}
		t, ok := n.index[l.To]
		if !ok {
			return model.NewConfigError(field+".to", "unknown bus %q", l.To)
		}
		if math.IsNaN(l.FlowLimitMW) || l.FlowLimitMW < 0 {
			return model.NewConfigError(field+".flow_limit_mw", "must be non-negative, got %v", l.FlowLimitMW)
		}
		l.ID = l.Name()
		if seen[l.ID] {
			return model.NewConfigError(field+".id", "duplicate line %q", l.ID)
		}
		seen[l.ID] = true
		n.lines[i] = l
		n.from[i], n.to[i] = f, t
		n.b[i] = 1 / l.Reactance
	}
	return nil
}

func (n *Network) alignCosts(costs []model.CostCoefficient) error {
	if len(costs) != len(n.buses) {
		return model.NewConfigError("costs", "expected %d cost coefficients (one per bus), got %d", len(n.buses), len(costs))
	}
	set := make([]bool, len(n.buses))
	for i, c := range costs {
		field := fmt.Sprintf("costs[%d]", i)
		bi, ok := n.index[c.BusID]
		if !ok {
			return model.NewConfigError(field+".bus", "unknown bus %q", c.BusID)
		}
		if set[bi] {
			return model.NewConfigError(field+".bus", "duplicate cost entry for bus %q", c.BusID)
		}
		if !finite(c.Offset, c.Linear) {
			return model.NewConfigError(field, "coefficients must be finite")
		}
		set[bi] = true
		n.costs[bi] = c
	}
	return nil
}

// buildSusceptance assembles the bus susceptance (weighted Laplacian) matrix
// so that net outflow P = B·θ.
func (n *Network) buildSusceptance() {
	n.bbus = mat.NewSymDense(len(n.buses), nil)
	for k := range n.lines {
		f, t, b := n.from[k], n.to[k], n.b[k]
		n.bbus.SetSym(f, f, n.bbus.At(f, f)+b)
		n.bbus.SetSym(t, t, n.bbus.At(t, t)+b)
		n.bbus.SetSym(f, t, n.bbus.At(f, t)-b)
	}
}

// NumBuses returns the number of buses.
func (n *Network) NumBuses() int { return len(n.buses) }

// NumLines returns the number of lines.
func (n *Network) NumLines() int { return len(n.lines) }

// NumFree returns the dimension of the free angle vector (buses - 1).
func (n *Network) NumFree() int { return len(n.free) }

// Buses returns a copy of the buses in case order.
func (n *Network) Buses() []model.Bus { return append([]model.Bus(nil), n.buses...) }

// Lines returns a copy of the lines with their resolved identifiers.
func (n *Network) Lines() []model.Line { return append([]model.Line(nil), n.lines...) }

// Costs returns the cost coefficients aligned with Buses.
func (n *Network) Costs() []model.CostCoefficient {
	return append([]model.CostCoefficient(nil), n.costs...)
}

// Slack returns the slack bus.
func (n *Network) Slack() model.Bus { return n.buses[n.slack] }

// FreeBuses returns the buses whose angles form the free angle vector, in order.
func (n *Network) FreeBuses() []model.Bus {
	out := make([]model.Bus, len(n.free))
	for i, bi := range n.free {
		out[i] = n.buses[bi]
	}
	return out
}

// BusIndex returns the case position of the bus with the given id.
func (n *Network) BusIndex(id string) (int, error) {
	i, ok := n.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBus, id)
	}
	return i, nil
}

// Susceptance returns a copy of the bus susceptance matrix.
func (n *Network) Susceptance() *mat.SymDense {
	out := mat.NewSymDense(len(n.buses), nil)
	out.CopySym(n.bbus)
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
