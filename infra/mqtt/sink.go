package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gridopf/core/factory"
	coremetrics "github.com/kilianp07/gridopf/core/metrics"
	"github.com/kilianp07/gridopf/core/monitoring"
	"github.com/kilianp07/gridopf/infra/logger"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSink(c)
	})
}

type solveMessage struct {
	RunID       string    `json:"run_id"`
	Status      string    `json:"status"`
	TotalCost   float64   `json:"total_cost"`
	Evaluations int       `json:"evaluations"`
	Iterations  int       `json:"iterations"`
	Radius      float64   `json:"radius"`
	Warnings    int       `json:"warnings"`
	DurationMS  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

type lineMessage struct {
	LineID      string  `json:"line_id"`
	FlowMW      float64 `json:"flow_mw"`
	LimitMW     float64 `json:"limit_mw"`
	Loading     float64 `json:"loading"`
	WithinLimit bool    `json:"within_limit"`
}

// Sink publishes run summaries and final line flows. Topics are
// <prefix>/runs/<run_id>/summary and <prefix>/runs/<run_id>/lines.
type Sink struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// NewSink connects to the broker and returns a ready sink.
func NewSink(cfg Config) (*Sink, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_sink")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &Sink{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		log:        log,
	}, nil
}

// RecordSolve publishes the run summary.
func (s *Sink) RecordSolve(ev coremetrics.SolveEvent) error {
	msg := solveMessage{
		RunID:       ev.RunID,
		Status:      ev.Status,
		TotalCost:   ev.TotalCost,
		Evaluations: ev.Evaluations,
		Iterations:  ev.Iterations,
		Radius:      ev.Radius,
		Warnings:    ev.Warnings,
		DurationMS:  ev.Duration.Milliseconds(),
		Timestamp:   ev.Time,
	}
	return s.publish(s.topic(ev.RunID, "summary"), msg)
}

// RecordLineFlows publishes all flows of a run as one message.
func (s *Sink) RecordLineFlows(evs []coremetrics.LineFlowEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]lineMessage, len(evs))
	for i, ev := range evs {
		msgs[i] = lineMessage{
			LineID:      ev.LineID,
			FlowMW:      ev.FlowMW,
			LimitMW:     ev.LimitMW,
			Loading:     ev.Loading,
			WithinLimit: ev.WithinLimit,
		}
	}
	return s.publish(s.topic(evs[0].RunID, "lines"), msgs)
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}

func (s *Sink) topic(runID, kind string) string {
	return fmt.Sprintf("%s/runs/%s/%s", s.prefix, runID, kind)
}

func (s *Sink) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		token := s.cli.Publish(topic, s.qos, s.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			s.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		s.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		if attempt < s.maxRetries {
			time.Sleep(s.backoff * time.Duration(1<<attempt))
		}
	}
	monitoring.CaptureException(publishErr, map[string]string{"module": "mqtt", "topic": topic})
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}
