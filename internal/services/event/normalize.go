package event

import (
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

const (
	MeasurementReading = "water_quality"
	MeasurementAlert   = "alert_event"
)

// ReadingToPoint maps a live or aggregated reading to the water_quality measurement.
func ReadingToPoint(d messages.SensorData) *write.Point {
	tags := map[string]string{
		"kind":       string(d.Kind),
		"severity":   d.Severity.String(),
		"aggregated": strconv.FormatBool(d.Aggregated),
	}
	fields := map[string]interface{}{
		"value": d.Value,
	}
	if d.Samples > 0 {
		fields["samples"] = int64(d.Samples)
	}
	return influxdb2.NewPoint(MeasurementReading, tags, fields, d.Timestamp)
}

func AlertToPoint(a messages.AlertRecord) *write.Point {
	tags := map[string]string{
		"kind":     string(a.Kind),
		"severity": a.Severity.String(),
		"channel":  string(a.Channel),
	}
	fields := map[string]interface{}{
		"value":   a.Value,
		"reading": a.Reading,
		"reason":  a.Reason,
		"id":      a.ID,
		"urgency": string(a.Urgency),
	}
	return influxdb2.NewPoint(MeasurementAlert, tags, fields, a.Timestamp)
}
