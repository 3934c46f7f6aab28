package e2e

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	coremetrics "github.com/kilianp07/gridopf/core/metrics"
	"github.com/kilianp07/gridopf/core/model"
	"github.com/kilianp07/gridopf/core/network"
	"github.com/kilianp07/gridopf/core/opf"
	"github.com/kilianp07/gridopf/core/trustregion"
	"github.com/kilianp07/gridopf/infra/logger"
	"github.com/kilianp07/gridopf/infra/metrics"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// startInflux starts an initialized InfluxDB 2.7 container and returns it
// along with the base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

func Test_E2E_SolveToInflux(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cont, url := startInflux(ctx, t)
	defer cont.Terminate(ctx) //nolint:errcheck

	sink := metrics.NewInfluxSinkWithFallback(metrics.InfluxConfig{
		URL: url, Token: influxToken, Org: influxOrg, Bucket: influxBucket,
	})
	if _, ok := sink.(coremetrics.NopSink); ok {
		t.Fatalf("influx sink fell back to nop")
	}

	net, err := network.New(model.Case{
		Buses: []model.Bus{
			{ID: "1", DemandMW: 100, GenMaxMW: 300, Slack: true},
			{ID: "2", DemandMW: 50, GenMaxMW: 200},
			{ID: "3", DemandMW: 75, GenMaxMW: 250},
		},
		Lines: []model.Line{
			{From: "1", To: "2", Reactance: 0.1, FlowLimitMW: 150},
			{From: "1", To: "3", Reactance: 0.2, FlowLimitMW: 100},
			{From: "2", To: "3", Reactance: 0.15, FlowLimitMW: 120},
		},
		Costs: []model.CostCoefficient{
			{BusID: "1", Linear: 2.0},
			{BusID: "2", Linear: 3.0},
			{BusID: "3", Linear: 2.5},
		},
	})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	res, err := opf.NewSolver(logger.NopLogger{}, sink).Solve(net, opf.Config{})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != trustregion.StatusConverged {
		t.Fatalf("status: %s", res.Status)
	}

	cli := NewInfluxClient(url, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	fields, err := cli.Fields(ctx, "opf_solve", res.RunID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got, ok := fields["evaluations"].(int64); !ok || int(got) != res.Evaluations {
		t.Errorf("evaluations: got %v want %d", fields["evaluations"], res.Evaluations)
	}
	if _, ok := fields["total_cost"]; !ok {
		t.Errorf("total_cost missing from %v", fields)
	}

	flows, err := cli.Fields(ctx, "opf_line_flow", res.RunID)
	if err != nil {
		t.Fatalf("query flows: %v", err)
	}
	if _, ok := flows["flow_mw"]; !ok {
		t.Errorf("flow_mw missing from %v", flows)
	}
}
