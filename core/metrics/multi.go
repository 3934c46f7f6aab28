package metrics

import (
	"errors"
	"io"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSolve forwards the event to all sinks, returning the first error encountered.
func (m *MultiSink) RecordSolve(ev SolveEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordLineFlows forwards line flows to the sinks that support them.
func (m *MultiSink) RecordLineFlows(evs []LineFlowEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LineFlowRecorder); ok {
			if err := rec.RecordLineFlows(evs); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordIteration forwards iteration snapshots to the sinks that support them.
func (m *MultiSink) RecordIteration(ev IterationEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IterationRecorder); ok {
			if err := rec.RecordIteration(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes every sink and joins their errors.
func (m *MultiSink) Flush() error {
	var errs []error
	for _, s := range m.Sinks {
		if f, ok := s.(Flusher); ok {
			if err := f.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink holding a connection and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
