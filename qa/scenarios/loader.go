// Package scenarios runs reference networks through the solver and checks
// the outcome against recorded expectations.
package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/gridopf/core/model"
	"github.com/kilianp07/gridopf/core/opf"
)

// Expected lists the checks applied to a run. Unset fields are not checked.
type Expected struct {
	Status         string    `yaml:"status"`
	Cost           *float64  `yaml:"cost"`
	CostTolerance  float64   `yaml:"cost_tolerance"`
	MaxCost        *float64  `yaml:"max_cost"`
	Angles         []float64 `yaml:"angles"`
	AngleTolerance float64   `yaml:"angle_tolerance"`
	MaxEvaluations int       `yaml:"max_evaluations"`
	// NoLineViolations requires every line flow to stay within its limit.
	NoLineViolations bool `yaml:"no_line_violations"`
}

type Scenario struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Network     model.Case `yaml:"network"`
	Solver      opf.Config `yaml:"solver"`
	Expected    Expected   `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
