package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	coremetrics "github.com/kilianp07/gridopf/core/metrics"
)

// PromConfig selects how collected metrics leave the process. A solve is a
// short batch job, so metrics are exported on Flush either to a node
// exporter textfile or to a Pushgateway.
type PromConfig struct {
	Textfile string `json:"textfile"`
	PushURL  string `json:"push_url"`
	Job      string `json:"job"`
}

// PromSink records optimization runs in Prometheus metrics.
type PromSink struct {
	cfg      PromConfig
	gatherer prometheus.Gatherer

	solves      *prometheus.CounterVec
	evaluations prometheus.Histogram
	duration    prometheus.Histogram
	cost        prometheus.Gauge
	radius      prometheus.Gauge
	warnings    prometheus.Gauge
	flow        *prometheus.GaugeVec
	loading     *prometheus.GaugeVec
	iterations  *prometheus.CounterVec
	best        prometheus.Gauge
}

// NewPromSink registers the solver metrics on the default Prometheus registerer.
func NewPromSink(cfg PromConfig) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. When the
// registerer is also a Gatherer it is the one exported on Flush.
func NewPromSinkWithRegistry(cfg PromConfig, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if cfg.Job == "" {
		cfg.Job = "gridopf"
	}
	s := &PromSink{cfg: cfg, gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		s.gatherer = g
	}

	var err error
	if s.solves, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opf_solves_total",
		Help: "Total number of optimization runs by final status",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if s.evaluations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "opf_solve_evaluations",
		Help:    "Objective evaluations used per run",
		Buckets: prometheus.ExponentialBuckets(8, 2, 12),
	})); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "opf_solve_duration_seconds",
		Help:    "Wall time of a run",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opf_total_cost",
		Help: "Total generation cost of the last run",
	})); err != nil {
		return nil, err
	}
	if s.radius, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opf_final_radius",
		Help: "Trust-region radius at the end of the last run",
	})); err != nil {
		return nil, err
	}
	if s.warnings, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opf_feasibility_warnings",
		Help: "Feasibility warnings raised by the last run",
	})); err != nil {
		return nil, err
	}
	if s.flow, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opf_line_flow_mw",
		Help: "Line flow at the last solution",
	}, []string{"line"})); err != nil {
		return nil, err
	}
	if s.loading, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opf_line_loading_ratio",
		Help: "Absolute line flow divided by its limit",
	}, []string{"line"})); err != nil {
		return nil, err
	}
	if s.iterations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opf_iterations_total",
		Help: "Optimizer iterations by kind",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.best, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "opf_iteration_best_cost",
		Help: "Best cost known to the optimizer",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve updates the run counters and last-run gauges.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Status).Inc()
	s.evaluations.Observe(float64(ev.Evaluations))
	s.duration.Observe(ev.Duration.Seconds())
	s.cost.Set(ev.TotalCost)
	s.radius.Set(ev.Radius)
	s.warnings.Set(float64(ev.Warnings))
	return nil
}

// RecordLineFlows sets the per-line gauges.
func (s *PromSink) RecordLineFlows(evs []coremetrics.LineFlowEvent) error {
	for _, ev := range evs {
		s.flow.WithLabelValues(ev.LineID).Set(ev.FlowMW)
		s.loading.WithLabelValues(ev.LineID).Set(ev.Loading)
	}
	return nil
}

// RecordIteration counts iterations and tracks the best known cost.
func (s *PromSink) RecordIteration(ev coremetrics.IterationEvent) error {
	s.iterations.WithLabelValues(ev.Kind).Inc()
	s.best.Set(ev.Best)
	return nil
}

// Flush writes the gathered metrics to the configured textfile and
// Pushgateway. It is a no-op when neither is configured.
func (s *PromSink) Flush() error {
	if s.cfg.Textfile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.Textfile, s.gatherer); err != nil {
			return fmt.Errorf("write textfile: %w", err)
		}
	}
	if s.cfg.PushURL != "" {
		if err := push.New(s.cfg.PushURL, s.cfg.Job).Gatherer(s.gatherer).Push(); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}
