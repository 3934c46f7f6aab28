package trustregion

// StepKind tells what an iteration did.
type StepKind string

const (
	StepInit     StepKind = "init"
	StepTrial    StepKind = "trial"
	StepGeometry StepKind = "geometry"
	StepShrink   StepKind = "shrink"
)

// Iteration is a snapshot of the optimizer after one iteration.
type Iteration struct {
	Iteration   int
	Kind        StepKind
	Evaluations int
	Radius      float64
	Best        float64
	// Ratio of actual to predicted reduction, only set for trial steps.
	Ratio    float64
	Accepted bool
	StepNorm float64
}

// Observer receives iteration snapshots. It is called synchronously from the
// solving goroutine.
type Observer interface {
	Observe(Iteration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Iteration)

// Observe calls f.
func (f ObserverFunc) Observe(it Iteration) { f(it) }
