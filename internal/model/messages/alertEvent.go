package messages

import (
	"time"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// AlertRecord is produced once the selector has routed an alert.
type AlertRecord struct {
	ID        string              `json:"id"`
	Kind      entities.SensorKind `json:"kind"`
	Severity  entities.Severity   `json:"severity"`
	Urgency   Urgency             `json:"urgency"`
	Value     float64             `json:"value"`
	Unit      string              `json:"unit"`
	Reading   string              `json:"reading"`
	Channel   entities.Channel    `json:"channel"`
	Reason    string              `json:"reason"`
	Timestamp time.Time           `json:"timestamp"`
}

func (a AlertRecord) Key() entities.AlertKey {
	return entities.AlertKey{Kind: a.Kind, Severity: a.Severity}
}
