// Package opf runs a DC optimal power flow: it minimizes the generation cost
// of a network over its free bus angles and reports the resulting dispatch.
package opf

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/gridopf/core/logger"
	coremetrics "github.com/kilianp07/gridopf/core/metrics"
	"github.com/kilianp07/gridopf/core/model"
	"github.com/kilianp07/gridopf/core/monitoring"
	"github.com/kilianp07/gridopf/core/network"
	"github.com/kilianp07/gridopf/core/objective"
	"github.com/kilianp07/gridopf/core/report"
	"github.com/kilianp07/gridopf/core/trustregion"
)

// BusAngle is the voltage angle of one bus in radians.
type BusAngle struct {
	BusID string  `json:"bus" yaml:"bus"`
	Angle float64 `json:"angle" yaml:"angle"`
}

// Result is the record of one run.
type Result struct {
	RunID     string             `json:"run_id" yaml:"run_id"`
	Status    trustregion.Status `json:"status" yaml:"status"`
	TotalCost float64            `json:"total_cost" yaml:"total_cost"`
	// Angles holds the free angles in Network.FreeBuses order.
	Angles            []float64           `json:"angles" yaml:"angles"`
	BusAngles         []BusAngle          `json:"bus_angles" yaml:"bus_angles"`
	GeneratorDispatch []report.Generation `json:"generator_dispatch" yaml:"generator_dispatch"`
	LineFlows         []report.LineFlow   `json:"line_flows" yaml:"line_flows"`
	Warnings          []report.Warning    `json:"warnings" yaml:"warnings"`
	TotalGenerationMW float64             `json:"total_generation_mw" yaml:"total_generation_mw"`
	TotalDemandMW     float64             `json:"total_demand_mw" yaml:"total_demand_mw"`
	Evaluations       int                 `json:"evaluations" yaml:"evaluations"`
	Iterations        int                 `json:"iterations" yaml:"iterations"`
	Radius            float64             `json:"radius" yaml:"radius"`
	Duration          time.Duration       `json:"duration" yaml:"duration"`
}

// Solver runs optimizations and reports them to a metrics sink.
type Solver struct {
	log  logger.Logger
	sink coremetrics.MetricsSink
	now  func() time.Time
}

// NewSolver creates a Solver. A nil sink disables metrics.
func NewSolver(log logger.Logger, sink coremetrics.MetricsSink) *Solver {
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Solver{log: log, sink: sink, now: time.Now}
}

// Solve minimizes the generation cost of net. Configuration problems are
// returned as *model.ConfigError before any evaluation and a sample set the
// optimizer cannot repair as trustregion.ErrDegenerateGeometry. An exhausted
// budget and feasibility warnings are part of the returned record.
func (s *Solver) Solve(net *network.Network, cfg Config) (Result, error) {
	start := s.now()
	res := Result{RunID: uuid.NewString(), Status: trustregion.StatusInitializing}
	eval := objective.New(net)
	n := eval.Dimension()
	s.log.Infof("run %s: %d buses, %d lines, %d free angles", res.RunID, net.NumBuses(), net.NumLines(), n)

	if n == 0 {
		return s.solveFixed(net, eval, cfg, res, start)
	}

	bounds, tcfg, err := cfg.problem(n)
	if err != nil {
		s.log.Errorf("run %s: %v", res.RunID, err)
		return res, err
	}
	tcfg.Observer = s.observer(res.RunID)

	tr, err := trustregion.Solve(eval.Evaluate, bounds, tcfg)
	res.Status = tr.Status
	res.Evaluations = tr.Evaluations
	res.Iterations = tr.Iterations
	res.Radius = tr.Radius
	if err != nil {
		res.Duration = s.now().Sub(start)
		if errors.Is(err, model.ErrConfiguration) {
			s.log.Errorf("run %s: %v", res.RunID, err)
			return res, err
		}
		s.log.Errorf("run %s: %s after %d evaluations: %v", res.RunID, res.Status, res.Evaluations, err)
		monitoring.CaptureException(err, map[string]string{"run_id": res.RunID, "status": res.Status.String()})
		s.record(res)
		return res, fmt.Errorf("optimize: %w", err)
	}

	res.TotalCost = tr.F
	if err := s.fill(net, tr.X, &res); err != nil {
		return res, err
	}
	res.Duration = s.now().Sub(start)
	s.finish(res)
	return res, nil
}

// solveFixed handles networks with only a slack bus, which have nothing to
// optimize.
func (s *Solver) solveFixed(net *network.Network, eval *objective.Evaluator, cfg Config, res Result, start time.Time) (Result, error) {
	if _, _, err := cfg.problem(0); err != nil {
		s.log.Errorf("run %s: %v", res.RunID, err)
		return res, err
	}
	if len(cfg.InitialGuess) > 0 {
		err := model.NewConfigError("initial_guess", "expected 0 values, got %d", len(cfg.InitialGuess))
		s.log.Errorf("run %s: %v", res.RunID, err)
		return res, err
	}
	if cfg.InitialRadius != nil && !(*cfg.InitialRadius > 0) {
		err := model.NewConfigError("initial_radius", "must be strictly positive, got %v", *cfg.InitialRadius)
		s.log.Errorf("run %s: %v", res.RunID, err)
		return res, err
	}
	cost, err := eval.Fixed()
	if err != nil {
		return res, err
	}
	res.Status = trustregion.StatusConverged
	res.TotalCost = cost
	res.Evaluations = eval.Evaluations()
	if err := s.fill(net, nil, &res); err != nil {
		return res, err
	}
	res.Duration = s.now().Sub(start)
	s.finish(res)
	return res, nil
}

// fill derives the dispatch at angles.
func (s *Solver) fill(net *network.Network, angles []float64, res *Result) error {
	d, err := report.Build(net, angles)
	if err != nil {
		return fmt.Errorf("build dispatch: %w", err)
	}
	theta, err := net.Theta(angles)
	if err != nil {
		return fmt.Errorf("bus angles: %w", err)
	}
	res.Angles = append([]float64{}, angles...)
	res.BusAngles = make([]BusAngle, len(theta))
	for i, b := range net.Buses() {
		res.BusAngles[i] = BusAngle{BusID: b.ID, Angle: theta[i]}
	}
	res.GeneratorDispatch = d.Generation
	res.LineFlows = d.LineFlows
	res.Warnings = d.Warnings
	res.TotalGenerationMW = d.TotalGenerationMW
	res.TotalDemandMW = d.TotalDemandMW
	return nil
}

func (s *Solver) finish(res Result) {
	s.log.Infof("run %s: %s cost=%.4f evaluations=%d iterations=%d in %s",
		res.RunID, res.Status, res.TotalCost, res.Evaluations, res.Iterations, res.Duration)
	for _, w := range res.Warnings {
		s.log.Warnf("run %s: %s: %s", res.RunID, w.Kind, w.Message)
	}
	s.record(res)
}

// observer logs every iteration and forwards it to the sink when supported.
func (s *Solver) observer(runID string) trustregion.Observer {
	rec, _ := s.sink.(coremetrics.IterationRecorder)
	return trustregion.ObserverFunc(func(it trustregion.Iteration) {
		s.log.Debugw("iteration", map[string]any{
			"run_id":      runID,
			"iteration":   it.Iteration,
			"kind":        string(it.Kind),
			"evaluations": it.Evaluations,
			"radius":      it.Radius,
			"best":        it.Best,
			"ratio":       it.Ratio,
			"accepted":    it.Accepted,
		})
		if rec == nil {
			return
		}
		if err := rec.RecordIteration(coremetrics.IterationEvent{
			RunID:       runID,
			Iteration:   it.Iteration,
			Kind:        string(it.Kind),
			Evaluations: it.Evaluations,
			Radius:      it.Radius,
			Best:        it.Best,
			Ratio:       it.Ratio,
			Time:        s.now(),
		}); err != nil {
			s.log.Errorf("record iteration: %v", err)
		}
	})
}

// record reports a finished run. Sink failures are logged only.
func (s *Solver) record(res Result) {
	now := s.now()
	if err := s.sink.RecordSolve(coremetrics.SolveEvent{
		RunID:       res.RunID,
		Status:      res.Status.String(),
		TotalCost:   res.TotalCost,
		Evaluations: res.Evaluations,
		Iterations:  res.Iterations,
		Radius:      res.Radius,
		Warnings:    len(res.Warnings),
		Duration:    res.Duration,
		Time:        now,
	}); err != nil {
		s.log.Errorf("record solve: %v", err)
	}
	if rec, ok := s.sink.(coremetrics.LineFlowRecorder); ok && len(res.LineFlows) > 0 {
		evs := make([]coremetrics.LineFlowEvent, len(res.LineFlows))
		for i, lf := range res.LineFlows {
			evs[i] = coremetrics.LineFlowEvent{
				RunID:       res.RunID,
				LineID:      lf.LineID,
				FlowMW:      lf.FlowMW,
				LimitMW:     lf.LimitMW,
				Loading:     lf.Loading,
				WithinLimit: lf.WithinLimit,
				Time:        now,
			}
		}
		if err := rec.RecordLineFlows(evs); err != nil {
			s.log.Errorf("record line flows: %v", err)
		}
	}
	if f, ok := s.sink.(coremetrics.Flusher); ok {
		if err := f.Flush(); err != nil {
			s.log.Errorf("flush metrics: %v", err)
		}
	}
}
