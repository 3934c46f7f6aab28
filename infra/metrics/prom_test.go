package metrics

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gridopf/core/factory"
	coremetrics "github.com/kilianp07/gridopf/core/metrics"
)

func TestPromSink_RecordSolve(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{
		Status:      "CONVERGED",
		TotalCost:   495.9,
		Evaluations: 162,
		Radius:      1e-6,
		Warnings:    2,
		Duration:    20 * time.Millisecond,
	}))
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Status: "BUDGET_EXHAUSTED", TotalCost: 496.4, Evaluations: 12}))

	expected := `
# HELP opf_solves_total Total number of optimization runs by final status
# TYPE opf_solves_total counter
opf_solves_total{status="BUDGET_EXHAUSTED"} 1
opf_solves_total{status="CONVERGED"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.solves, strings.NewReader(expected)))
	assert.Equal(t, 496.4, testutil.ToFloat64(sink.cost))
	assert.Equal(t, 0.0, testutil.ToFloat64(sink.warnings))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.evaluations))
}

func TestPromSink_LineFlowsAndIterations(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordLineFlows([]coremetrics.LineFlowEvent{
		{LineID: "1-2", FlowMW: 31.4, Loading: 0.21},
		{LineID: "2-3", FlowMW: -18.5, Loading: 0.15},
	}))
	assert.Equal(t, -18.5, testutil.ToFloat64(sink.flow.WithLabelValues("2-3")))
	assert.Equal(t, 0.21, testutil.ToFloat64(sink.loading.WithLabelValues("1-2")))

	require.NoError(t, sink.RecordIteration(coremetrics.IterationEvent{Kind: "trial", Best: 510}))
	require.NoError(t, sink.RecordIteration(coremetrics.IterationEvent{Kind: "trial", Best: 500}))
	require.NoError(t, sink.RecordIteration(coremetrics.IterationEvent{Kind: "shrink", Best: 500}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.iterations.WithLabelValues("trial")))
	assert.Equal(t, 500.0, testutil.ToFloat64(sink.best))
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(PromConfig{}, reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordSolve(coremetrics.SolveEvent{Status: "CONVERGED"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.solves.WithLabelValues("CONVERGED")))
}

func TestPromSink_FlushTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opf.prom")
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(PromConfig{Textfile: path}, reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Status: "CONVERGED", TotalCost: 42}))
	require.NoError(t, sink.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `opf_solves_total{status="CONVERGED"} 1`)
	assert.Contains(t, string(data), "opf_total_cost 42")
}

func TestPromSink_FlushPushgateway(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewPromSinkWithRegistry(PromConfig{PushURL: srv.URL}, prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Status: "CONVERGED"}))
	require.NoError(t, sink.Flush())
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/gridopf", path)
}

func TestPromSink_FlushWithoutTargets(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(PromConfig{}, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.NoError(t, sink.Flush())
}

func TestFactory_Builtins(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": srv.URL}}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)
}
