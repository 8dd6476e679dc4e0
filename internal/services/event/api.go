package event

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// History reads stored series back out of InfluxDB.
type History struct {
	client influxdb2.Client
	org    string
	bucket string
}

func NewHistory(client influxdb2.Client, org, bucket string) *History {
	return &History{client: client, org: org, bucket: bucket}
}

// Query returns kind's readings over the last span, averaged into every-wide windows, oldest first.
func (h *History) Query(ctx context.Context, kind entities.SensorKind, span, every time.Duration) ([]entities.Reading, error) {
	res, err := h.client.QueryAPI(h.org).Query(ctx, buildHistoryFlux(h.bucket, kind, span, every))
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	defer func() { _ = res.Close() }()

	out := make([]entities.Reading, 0, 256)
	for res.Next() {
		rec := res.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			continue
		}
		out = append(out, entities.Reading{Timestamp: rec.Time().UTC(), Value: v})
	}
	if res.Err() != nil {
		return nil, fmt.Errorf("influx iterate: %w", res.Err())
	}
	return out, nil
}

func buildHistoryFlux(bucket string, kind entities.SensorKind, span, every time.Duration) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%ds)
  |> filter(fn: (r) => r._measurement == %q and r.kind == %q and r.aggregated == "false")
  |> filter(fn: (r) => r._field == "value")
  |> aggregateWindow(every: %ds, fn: mean, createEmpty: false)
  |> keep(columns: ["_time","_value"])
  |> sort(columns: ["_time"])
`, bucket, int64(span.Seconds()), MeasurementReading, string(kind), int64(every.Seconds()))
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
