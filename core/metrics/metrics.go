package metrics

import "time"

// SolveEvent summarizes one finished optimization run.
type SolveEvent struct {
	RunID       string
	Status      string
	TotalCost   float64
	Evaluations int
	Iterations  int
	Radius      float64
	Warnings    int
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records solve results for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// LineFlowEvent is the flow of one line at the end of a run.
type LineFlowEvent struct {
	RunID       string
	LineID      string
	FlowMW      float64
	LimitMW     float64
	Loading     float64
	WithinLimit bool
	Time        time.Time
}

// LineFlowRecorder records final line flows.
type LineFlowRecorder interface {
	RecordLineFlows(evs []LineFlowEvent) error
}

// IterationEvent is a snapshot of the optimizer after one iteration.
type IterationEvent struct {
	RunID       string
	Iteration   int
	Kind        string
	Evaluations int
	Radius      float64
	Best        float64
	Ratio       float64
	Time        time.Time
}

// IterationRecorder records optimizer progress.
type IterationRecorder interface {
	RecordIteration(ev IterationEvent) error
}

// Flusher is implemented by sinks that buffer or export on demand, such as
// textfile or push based exporters.
type Flusher interface {
	Flush() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error          { return nil }
func (NopSink) RecordLineFlows([]LineFlowEvent) error { return nil }
func (NopSink) RecordIteration(IterationEvent) error  { return nil }
func (NopSink) Flush() error                          { return nil }
