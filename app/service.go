// Package app wires configuration, logging, metrics and the solver together
// for the command line.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/gridopf/config"
	coremetrics "github.com/kilianp07/gridopf/core/metrics"
	"github.com/kilianp07/gridopf/core/monitoring"
	"github.com/kilianp07/gridopf/core/network"
	"github.com/kilianp07/gridopf/core/opf"
	"github.com/kilianp07/gridopf/core/report"
	"github.com/kilianp07/gridopf/infra/logger"
	// Register the built-in metrics sinks.
	_ "github.com/kilianp07/gridopf/infra/metrics"
	inframon "github.com/kilianp07/gridopf/infra/monitoring"
	// Register the MQTT result publisher.
	_ "github.com/kilianp07/gridopf/infra/mqtt"
)

// Service holds a validated network and the solver configured for it.
type Service struct {
	cfg    *config.Config
	net    *network.Network
	solver *opf.Solver
	log    logger.Logger

	closers []io.Closer
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	s := &Service{cfg: cfg}
	if cfg.Logging.File != "" {
		f, err := logger.OpenRotatingFile(logger.RotateConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		if err != nil {
			return nil, fmt.Errorf("log file: %w", err)
		}
		s.closers = append(s.closers, f)
	}
	s.log = logger.New("service")
	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	mon, err := inframon.NewSentryMonitor(s.cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	s.net, err = network.New(s.cfg.Network)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(s.cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	if c, ok := sink.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	s.solver = opf.NewSolver(logger.New("opf"), sink)
	return nil
}

// Network returns the validated network.
func (s *Service) Network() *network.Network { return s.net }

// Solve runs one optimization with the configured solver settings.
func (s *Service) Solve() (opf.Result, error) {
	return s.solver.Solve(s.net, s.cfg.Solver)
}

// Evaluate computes the dispatch at the given free angles without
// optimizing. It returns the full bus angle vector alongside.
func (s *Service) Evaluate(angles []float64) ([]float64, report.Dispatch, error) {
	theta, err := s.net.Theta(angles)
	if err != nil {
		return nil, report.Dispatch{}, err
	}
	d, err := report.Build(s.net, angles)
	if err != nil {
		return nil, report.Dispatch{}, err
	}
	s.log.Debugf("evaluated %d angles: cost %.4f, %d warnings", len(angles), d.TotalCost, len(d.Warnings))
	return theta, d, nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
