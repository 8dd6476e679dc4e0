package messages

import (
	"errors"
	"fmt"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

// Urgency is the priority hint sent to the channel selector.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

func UrgencyFor(s entities.Severity) Urgency {
	switch s {
	case entities.Danger:
		return UrgencyHigh
	case entities.Warning:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

type AppContext struct {
	IsAppOpen bool `json:"isAppOpen"`
}

// ChannelRequest is the payload sent to the channel selector.
type ChannelRequest struct {
	Urgency         Urgency                  `json:"urgency"`
	UserPreferences entities.UserPreferences `json:"userPreferences"`
	AppContext      AppContext               `json:"appContext"`
	SensorReading   string                   `json:"sensorReading"`
}

// ChannelDecision is the selector's answer.
type ChannelDecision struct {
	Channel entities.Channel `json:"channel"`
	Reason  string           `json:"reason"`
}

var ErrInvalidDecision = errors.New("invalid channel decision")

func (d ChannelDecision) Validate() error {
	if !d.Channel.Valid() {
		return fmt.Errorf("%w: channel %q", ErrInvalidDecision, d.Channel)
	}
	return nil
}

// FormatReading renders "<kind> is <value> <unit>"; unitless kinds keep the trailing space.
func FormatReading(kind entities.SensorKind, value float64) string {
	return fmt.Sprintf("%s is %.2f %s", kind, value, kind.Unit())
}
