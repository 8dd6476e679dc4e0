package app

import (
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

type SensorsResponse struct {
	Connected bool                   `json:"connected"`
	Sensors   []entities.SensorState `json:"sensors"`
}

type DeviceResponse struct {
	Connected bool `json:"connected"`
	Changed   bool `json:"changed"`
}

type AlertsResponse struct {
	Active []string               `json:"active"`
	Recent []messages.AlertRecord `json:"recent"`
}

// HistoryPoint mirrors one exported row.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	Date      string  `json:"date"`
	Value     float64 `json:"value"`
}

type HistoryResponse struct {
	Kind    entities.SensorKind `json:"kind"`
	Unit    string              `json:"unit"`
	Range   string              `json:"range"`
	Display entities.SafeRange  `json:"display"`
	Source  string              `json:"source"`
	Points  []HistoryPoint      `json:"points"`
}

const dateLayout = "2006-01-02 15:04:05"

func toPoints(readings []entities.Reading) []HistoryPoint {
	out := make([]HistoryPoint, 0, len(readings))
	for _, r := range readings {
		out = append(out, HistoryPoint{
			Timestamp: r.Timestamp.UnixMilli(),
			Date:      r.Timestamp.UTC().Format(dateLayout),
			Value:     r.Value,
		})
	}
	return out
}
