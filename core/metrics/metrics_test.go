package metrics_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/gridopf/core/factory"
	metrics "github.com/kilianp07/gridopf/core/metrics"
	_ "github.com/kilianp07/gridopf/infra/metrics"
)

type recordSink struct {
	solves, flows, iterations, flushes int
	err                                error
}

func (r *recordSink) RecordSolve(metrics.SolveEvent) error {
	r.solves++
	return r.err
}

func (r *recordSink) RecordLineFlows([]metrics.LineFlowEvent) error {
	r.flows++
	return nil
}

func (r *recordSink) RecordIteration(metrics.IterationEvent) error {
	r.iterations++
	return nil
}

func (r *recordSink) Flush() error {
	r.flushes++
	return r.err
}

type solveOnly struct{ n int }

func (s *solveOnly) RecordSolve(metrics.SolveEvent) error {
	s.n++
	return nil
}

func TestMultiSinkForwards(t *testing.T) {
	a, b, c := &recordSink{}, &recordSink{}, &solveOnly{}
	m := metrics.NewMultiSink(a, b, c)

	require.NoError(t, m.RecordSolve(metrics.SolveEvent{RunID: "r"}))
	require.NoError(t, m.RecordLineFlows(nil))
	require.NoError(t, m.RecordIteration(metrics.IterationEvent{}))
	require.NoError(t, m.Flush())

	for _, s := range []*recordSink{a, b} {
		assert.Equal(t, 1, s.solves)
		assert.Equal(t, 1, s.flows)
		assert.Equal(t, 1, s.iterations)
		assert.Equal(t, 1, s.flushes)
	}
	assert.Equal(t, 1, c.n)
}

func TestMultiSinkErrors(t *testing.T) {
	boom := errors.New("boom")
	failing, next := &recordSink{err: boom}, &recordSink{}
	m := metrics.NewMultiSink(failing, next)

	assert.ErrorIs(t, m.RecordSolve(metrics.SolveEvent{}), boom)
	assert.Equal(t, 0, next.solves)
	assert.ErrorIs(t, m.Flush(), boom)
	assert.Equal(t, 1, next.flushes)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, metrics.NopSink{}, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.NotNil(t, s)

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*metrics.MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sinks[1] missing")
	assert.Contains(t, metrics.SinkTypes(), "prometheus")
}

type closeSink struct {
	solveOnly
	closed int
	err    error
}

func (c *closeSink) Close() error {
	c.closed++
	return c.err
}

func TestMultiSinkClose(t *testing.T) {
	boom := errors.New("boom")
	a, b := &closeSink{}, &closeSink{err: boom}
	m := metrics.NewMultiSink(a, &solveOnly{}, b)

	assert.ErrorIs(t, m.Close(), boom)
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestMetricsConfigDecode(t *testing.T) {
	var fromYAML metrics.Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\n"), &fromYAML))
	assert.Len(t, fromYAML.Sinks, 2)

	var fromJSON metrics.Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &fromJSON))
	_, err := metrics.NewMetricsSink(fromJSON.Sinks)
	assert.Error(t, err)
}
