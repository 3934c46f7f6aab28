// Package e2e runs the solver against real backing services started with
// testcontainers. Tests skip when docker is unavailable.
package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient is a small query helper around the official InfluxDB v2
// client.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient creates a client for a running server.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Fields returns the last value of every field of measurement written in the
// past hour for the given run.
func (c *InfluxClient) Fields(ctx context.Context, measurement, runID string) (map[string]any, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-1h)
  |> filter(fn: (r) => r._measurement == %q and r.run_id == %q)
  |> last()`, c.bucket, measurement, runID)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	out := map[string]any{}
	for res.Next() {
		out[res.Record().Field()] = res.Record().Value()
	}
	return out, res.Err()
}

// Close releases the underlying client resources.
func (c *InfluxClient) Close() { c.client.Close() }
