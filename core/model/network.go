package model

// Bus is a network node with a local demand and a generator operating range.
type Bus struct {
	ID       string  `json:"id" yaml:"id" validate:"required"`
	DemandMW float64 `json:"demand_mw" yaml:"demand_mw"`
	GenMinMW float64 `json:"gen_min_mw" yaml:"gen_min_mw"`
	GenMaxMW float64 `json:"gen_max_mw" yaml:"gen_max_mw" validate:"gtefield=GenMinMW"`
	// Slack marks the reference bus. Its angle is fixed at zero and its
	// generation absorbs any system imbalance.
	Slack bool `json:"slack" yaml:"slack"`
}

// Line connects two buses. FlowLimitMW is advisory: it is reported but never
// enforced by the optimizer. A zero limit means none is configured.
type Line struct {
	ID          string  `json:"id" yaml:"id"`
	From        string  `json:"from" yaml:"from" validate:"required"`
	To          string  `json:"to" yaml:"to" validate:"required,nefield=From"`
	Reactance   float64 `json:"reactance" yaml:"reactance" validate:"gt=0"`
	FlowLimitMW float64 `json:"flow_limit_mw" yaml:"flow_limit_mw" validate:"gte=0"`
}

// Name returns the line identifier, defaulting to "<from>-<to>".
func (l Line) Name() string {
	if l.ID != "" {
		return l.ID
	}
	return l.From + "-" + l.To
}

// CostCoefficient defines the generation cost Offset + Linear*Pg of one bus.
type CostCoefficient struct {
	BusID  string  `json:"bus" yaml:"bus" validate:"required"`
	Offset float64 `json:"offset" yaml:"offset"`
	Linear float64 `json:"linear" yaml:"linear"`
}

// Cost returns the generation cost at output pg.
func (c CostCoefficient) Cost(pg float64) float64 {
	return c.Offset + c.Linear*pg
}

// Case is the static description of one network snapshot.
type Case struct {
	Buses []Bus             `json:"buses" yaml:"buses" validate:"required,min=1,dive"`
	Lines []Line            `json:"lines" yaml:"lines" validate:"dive"`
	Costs []CostCoefficient `json:"costs" yaml:"costs" validate:"required,dive"`
}
