package messages

import (
	"time"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// SensorData holds both live and aggregated readings.
type SensorData struct {
	Kind       entities.SensorKind `json:"kind"`
	Unit       string              `json:"unit"`
	Value      float64             `json:"value"`
	Severity   entities.Severity   `json:"severity"`
	Aggregated bool                `json:"aggregated"`
	Samples    int                 `json:"samples,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}
