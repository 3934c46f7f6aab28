// Package report turns a solved angle vector into the generator dispatch and
// line flows shown to operators, and re-checks them against the configured
// limits.
package report

import (
	"fmt"
	"math"

	"github.com/kilianp07/gridopf/core/network"
)

// ImbalanceToleranceMW is the generation/demand mismatch tolerated before a
// power_imbalance warning is raised.
const ImbalanceToleranceMW = 1e-3

const limitSlack = 1e-9

// WarningKind classifies a feasibility warning.
type WarningKind string

const (
	// WarningGeneratorLimit means the network required an output outside the
	// generator range, so the dispatch was clipped.
	WarningGeneratorLimit WarningKind = "generator_limit"
	// WarningLineLimit means |flow| exceeds the advisory line limit.
	WarningLineLimit WarningKind = "line_limit"
	// WarningPowerImbalance means clipped generation no longer matches demand.
	WarningPowerImbalance WarningKind = "power_imbalance"
)

// Warning is a non-fatal feasibility finding.
type Warning struct {
	Kind    WarningKind `json:"kind" yaml:"kind"`
	Subject string      `json:"subject" yaml:"subject"`
	ValueMW float64     `json:"value_mw" yaml:"value_mw"`
	LimitMW float64     `json:"limit_mw" yaml:"limit_mw"`
	Message string      `json:"message" yaml:"message"`
}

func (w Warning) String() string { return w.Message }

// Generation is the dispatch of one bus.
type Generation struct {
	BusID      string  `json:"bus" yaml:"bus"`
	OutputMW   float64 `json:"output_mw" yaml:"output_mw"`
	RequiredMW float64 `json:"required_mw" yaml:"required_mw"`
	MinMW      float64 `json:"min_mw" yaml:"min_mw"`
	MaxMW      float64 `json:"max_mw" yaml:"max_mw"`
	CostPerMW  float64 `json:"cost_per_mw" yaml:"cost_per_mw"`
	Clipped    bool    `json:"clipped" yaml:"clipped"`
	Slack      bool    `json:"slack" yaml:"slack"`
}

// LineFlow is the flow of one line.
type LineFlow struct {
	LineID      string  `json:"line" yaml:"line"`
	From        string  `json:"from" yaml:"from"`
	To          string  `json:"to" yaml:"to"`
	FlowMW      float64 `json:"flow_mw" yaml:"flow_mw"`
	LimitMW     float64 `json:"limit_mw" yaml:"limit_mw"`
	WithinLimit bool    `json:"within_limit" yaml:"within_limit"`
	// Loading is |flow|/limit, zero when no limit is configured.
	Loading float64 `json:"loading" yaml:"loading"`
}

// Dispatch is the operating point derived from an angle vector.
type Dispatch struct {
	Generation        []Generation `json:"generation" yaml:"generation"`
	LineFlows         []LineFlow   `json:"line_flows" yaml:"line_flows"`
	Warnings          []Warning    `json:"warnings" yaml:"warnings"`
	TotalCost         float64      `json:"total_cost" yaml:"total_cost"`
	TotalGenerationMW float64      `json:"total_generation_mw" yaml:"total_generation_mw"`
	TotalDemandMW     float64      `json:"total_demand_mw" yaml:"total_demand_mw"`
}

// Feasible reports whether no warning was raised.
func (d Dispatch) Feasible() bool { return len(d.Warnings) == 0 }

// ImbalanceMW returns generation minus demand.
func (d Dispatch) ImbalanceMW() float64 { return d.TotalGenerationMW - d.TotalDemandMW }

// Outputs returns the generator outputs in bus order.
func (d Dispatch) Outputs() []float64 {
	out := make([]float64, len(d.Generation))
	for i, g := range d.Generation {
		out[i] = g.OutputMW
	}
	return out
}

// Build computes the dispatch at angles. Limit violations are reported as
// warnings; only malformed angle vectors return an error.
func Build(net *network.Network, angles []float64) (Dispatch, error) {
	req, err := net.Requirement(angles)
	if err != nil {
		return Dispatch{}, err
	}
	pg, err := net.GeneratorOutput(angles)
	if err != nil {
		return Dispatch{}, err
	}
	flows, err := net.LineFlows(angles)
	if err != nil {
		return Dispatch{}, err
	}

	var d Dispatch
	costs := net.Costs()
	for i, bus := range net.Buses() {
		g := Generation{
			BusID:      bus.ID,
			OutputMW:   pg[i],
			RequiredMW: req[i],
			MinMW:      bus.GenMinMW,
			MaxMW:      bus.GenMaxMW,
			CostPerMW:  costs[i].Linear,
			Slack:      bus.Slack,
		}
		switch {
		case req[i] > bus.GenMaxMW+limitSlack:
			g.Clipped = true
			d.warn(WarningGeneratorLimit, bus.ID, req[i], bus.GenMaxMW,
				"bus %s requires %.3f MW above its maximum %.3f MW", bus.ID, req[i], bus.GenMaxMW)
		case req[i] < bus.GenMinMW-limitSlack:
			g.Clipped = true
			d.warn(WarningGeneratorLimit, bus.ID, req[i], bus.GenMinMW,
				"bus %s requires %.3f MW below its minimum %.3f MW", bus.ID, req[i], bus.GenMinMW)
		}
		d.Generation = append(d.Generation, g)
		d.TotalCost += costs[i].Cost(pg[i])
		d.TotalGenerationMW += pg[i]
		d.TotalDemandMW += bus.DemandMW
	}

	for k, l := range net.Lines() {
		lf := LineFlow{
			LineID:      l.ID,
			From:        l.From,
			To:          l.To,
			FlowMW:      flows[k],
			LimitMW:     l.FlowLimitMW,
			WithinLimit: true,
		}
		if l.FlowLimitMW > 0 {
			lf.Loading = math.Abs(flows[k]) / l.FlowLimitMW
			if math.Abs(flows[k]) > l.FlowLimitMW+limitSlack {
				lf.WithinLimit = false
				d.warn(WarningLineLimit, l.ID, flows[k], l.FlowLimitMW,
					"line %s carries %.3f MW over its %.3f MW limit", l.ID, flows[k], l.FlowLimitMW)
			}
		}
		d.LineFlows = append(d.LineFlows, lf)
	}

	if imb := d.ImbalanceMW(); math.Abs(imb) > ImbalanceToleranceMW {
		d.warn(WarningPowerImbalance, "system", imb, ImbalanceToleranceMW,
			"generation %.3f MW differs from demand %.3f MW by %.3f MW", d.TotalGenerationMW, d.TotalDemandMW, imb)
	}
	return d, nil
}

func (d *Dispatch) warn(kind WarningKind, subject string, value, limit float64, format string, args ...any) {
	d.Warnings = append(d.Warnings, Warning{
		Kind:    kind,
		Subject: subject,
		ValueMW: value,
		LimitMW: limit,
		Message: fmt.Sprintf(format, args...),
	})
}
