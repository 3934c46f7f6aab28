package scenarios

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/gridopf/core/network"
	"github.com/kilianp07/gridopf/core/opf"
	"github.com/kilianp07/gridopf/infra/logger"
	"github.com/kilianp07/gridopf/infra/metrics"
)

// RunScenario solves sc and reports every unmet expectation on t.
func RunScenario(t *testing.T, sc *Scenario) opf.Result {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(metrics.PromConfig{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	net, err := network.New(sc.Network)
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	res, err := opf.NewSolver(logger.NopLogger{}, sink).Solve(net, sc.Solver)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}

	exp := sc.Expected
	if exp.Status != "" && res.Status.String() != exp.Status {
		t.Errorf("status: got %s want %s", res.Status, exp.Status)
	}
	if exp.Cost != nil && math.Abs(res.TotalCost-*exp.Cost) > exp.CostTolerance {
		t.Errorf("cost: got %.6f want %.6f ± %g", res.TotalCost, *exp.Cost, exp.CostTolerance)
	}
	if exp.MaxCost != nil && res.TotalCost > *exp.MaxCost {
		t.Errorf("cost: got %.6f above %.6f", res.TotalCost, *exp.MaxCost)
	}
	if exp.Angles != nil {
		if len(res.Angles) != len(exp.Angles) {
			t.Fatalf("angles: got %d want %d", len(res.Angles), len(exp.Angles))
		}
		for i, a := range exp.Angles {
			if math.Abs(res.Angles[i]-a) > exp.AngleTolerance {
				t.Errorf("angle %d: got %.6f want %.6f ± %g", i, res.Angles[i], a, exp.AngleTolerance)
			}
		}
	}
	if exp.MaxEvaluations > 0 && res.Evaluations > exp.MaxEvaluations {
		t.Errorf("evaluations: got %d above %d", res.Evaluations, exp.MaxEvaluations)
	}
	if exp.NoLineViolations {
		for _, lf := range res.LineFlows {
			if !lf.WithinLimit {
				t.Errorf("line %s: %.3f MW over %.3f MW", lf.LineID, lf.FlowMW, lf.LimitMW)
			}
		}
	}
	for _, g := range res.GeneratorDispatch {
		if g.OutputMW < g.MinMW || g.OutputMW > g.MaxMW {
			t.Errorf("bus %s: output %.3f outside [%g, %g]", g.BusID, g.OutputMW, g.MinMW, g.MaxMW)
		}
	}

	want := fmt.Sprintf(`
# HELP opf_solves_total Total number of optimization runs by final status
# TYPE opf_solves_total counter
opf_solves_total{status=%q} 1
`, res.Status.String())
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "opf_solves_total"); err != nil {
		t.Errorf("metrics: %v", err)
	}
	return res
}
