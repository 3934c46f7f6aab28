package network

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kilianp07/gridopf/core/model"
)

// randomCase builds a connected network of size buses: a ring plus a few
// random chords, with the slack placed at a random position.
func randomCase(size int, rng *rand.Rand) model.Case {
	c := model.Case{}
	slack := rng.Intn(size)
	for i := 0; i < size; i++ {
		id := fmt.Sprintf("b%d", i)
		c.Buses = append(c.Buses, model.Bus{ID: id, DemandMW: rng.Float64() * 100, GenMaxMW: 500, Slack: i == slack})
		c.Costs = append(c.Costs, model.CostCoefficient{BusID: id, Linear: 1 + rng.Float64()})
	}
	seen := map[[2]int]bool{}
	addLine := func(a, b int) {
		if a == b || seen[[2]int{a, b}] || seen[[2]int{b, a}] {
			return
		}
		seen[[2]int{a, b}] = true
		c.Lines = append(c.Lines, model.Line{
			From:      fmt.Sprintf("b%d", a),
			To:        fmt.Sprintf("b%d", b),
			Reactance: 0.01 + rng.Float64(),
		})
	}
	for i := 0; i < size; i++ {
		addLine(i, (i+1)%size)
	}
	for k := 0; k < size/2; k++ {
		addLine(rng.Intn(size), rng.Intn(size))
	}
	return c
}

func TestKirchhoffConservation(t *testing.T) {
	parameters := gopter.DefaultTestParametersWithSeed(1234)
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("net injections sum to zero", prop.ForAll(
		func(size int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			n, err := New(randomCase(size, rng))
			if err != nil {
				return false
			}
			angles := make([]float64, n.NumFree())
			for i := range angles {
				angles[i] = (2*rng.Float64() - 1) * math.Pi
			}
			var sum, scale float64
			for _, bus := range n.Buses() {
				p, err := n.Injection(bus.ID, angles)
				if err != nil {
					return false
				}
				sum += p
				scale += math.Abs(p)
			}
			return math.Abs(sum) <= 1e-9*math.Max(1, scale)
		},
		gen.IntRange(2, 12),
		gen.Int64(),
	))

	properties.Property("matrix and loop injections agree", prop.ForAll(
		func(size int, seed int64) bool {
			rng := rand.New(rand.NewSource(seed))
			n, err := New(randomCase(size, rng))
			if err != nil {
				return false
			}
			angles := make([]float64, n.NumFree())
			for i := range angles {
				angles[i] = (2*rng.Float64() - 1) * math.Pi
			}
			all, err := n.Injections(angles)
			if err != nil {
				return false
			}
			for i, bus := range n.Buses() {
				p, _ := n.Injection(bus.ID, angles)
				if math.Abs(p-all[i]) > 1e-9*math.Max(1, math.Abs(p)) {
					return false
				}
			}
			return true
		},
		gen.IntRange(2, 12),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
