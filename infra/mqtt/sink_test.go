package mqtt

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/gridopf/core/factory"
	coremetrics "github.com/kilianp07/gridopf/core/metrics"
	coremon "github.com/kilianp07/gridopf/core/monitoring"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts         *paho.ClientOptions
	published    []published
	publishErrs  []error
	connectErr   error
	disconnected bool
}

func (m *mockClient) IsConnected() bool { return !m.disconnected }
func (m *mockClient) Connect() paho.Token {
	if m.connectErr != nil {
		return dummyToken{err: m.connectErr}
	}
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(nil)
	}
	return dummyToken{}
}
func (m *mockClient) Disconnect(uint) { m.disconnected = true }
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, published{topic, qos, retained, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return dummyToken{err: err}
	}
	return dummyToken{}
}

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

func useMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover(any)         {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestSinkPublishesSummary(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", QoS: 1, Retain: true})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	ev := coremetrics.SolveEvent{
		RunID:       "r1",
		Status:      "CONVERGED",
		TotalCost:   495.9,
		Evaluations: 253,
		Iterations:  120,
		Duration:    1500 * time.Millisecond,
		Time:        time.Unix(1700000000, 0).UTC(),
	}
	if err := sink.RecordSolve(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 1 {
		t.Fatalf("expected one publish, got %d", len(mc.published))
	}
	p := mc.published[0]
	if p.topic != "gridopf/runs/r1/summary" || p.qos != 1 || !p.retained {
		t.Fatalf("unexpected publish %+v", p)
	}
	var msg solveMessage
	if err := json.Unmarshal(p.payload, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Status != "CONVERGED" || msg.Evaluations != 253 || msg.DurationMS != 1500 || msg.TotalCost != 495.9 {
		t.Fatalf("unexpected payload %+v", msg)
	}
}

func TestSinkPublishesLineFlows(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", TopicPrefix: "grid/west"})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.RecordLineFlows(nil); err != nil {
		t.Fatalf("empty flows: %v", err)
	}
	if len(mc.published) != 0 {
		t.Fatalf("empty flows should not publish")
	}
	evs := []coremetrics.LineFlowEvent{
		{RunID: "r2", LineID: "1-2", FlowMW: 31.4, LimitMW: 150, Loading: 0.21, WithinLimit: true},
		{RunID: "r2", LineID: "2-3", FlowMW: -130, LimitMW: 120, Loading: 1.08},
	}
	if err := sink.RecordLineFlows(evs); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 1 || mc.published[0].topic != "grid/west/runs/r2/lines" {
		t.Fatalf("unexpected publishes %+v", mc.published)
	}
	var msgs []lineMessage
	if err := json.Unmarshal(mc.published[0].payload, &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 2 || msgs[1].LineID != "2-3" || msgs[1].WithinLimit {
		t.Fatalf("unexpected payload %+v", msgs)
	}
}

func TestSinkRetries(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	useMock(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.RecordSolve(coremetrics.SolveEvent{RunID: "r3"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries, got %d publishes", len(mc.published))
	}
}

func TestSinkPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	useMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(nil)

	sink, err := NewSink(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.RecordSolve(coremetrics.SolveEvent{RunID: "r4"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(mc.published))
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["module"] != "mqtt" || mon.tags["topic"] != "gridopf/runs/r4/summary" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}

func TestSinkConnectError(t *testing.T) {
	useMock(t, &mockClient{connectErr: fmt.Errorf("refused")})
	if _, err := NewSink(Config{Broker: "tcp://localhost:1883"}); err == nil {
		t.Fatalf("expected connect error")
	}
}

func TestSinkValidate(t *testing.T) {
	if _, err := NewSink(Config{}); err == nil {
		t.Fatalf("expected missing broker error")
	}
	if _, err := NewSink(Config{Broker: "tcp://localhost:1883", QoS: 3}); err == nil {
		t.Fatalf("expected qos error")
	}
}

func TestSinkClose(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	sink, err := NewSink(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !mc.disconnected {
		t.Fatalf("not disconnected")
	}
}

func TestSinkRegistered(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "mqtt",
		Conf: map[string]any{"broker": "tcp://localhost:1883", "topic_prefix": "opf", "qos": "1"},
	}})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	sink, ok := s.(*Sink)
	if !ok {
		t.Fatalf("unexpected sink type %T", s)
	}
	if sink.prefix != "opf" || sink.qos != 1 {
		t.Fatalf("config not decoded: %+v", sink)
	}
}
