package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SensorKind identifies one of the water-quality probes.
type SensorKind string

const (
	KindPH          SensorKind = "pH"
	KindTemperature SensorKind = "Temperature"
	KindTDS         SensorKind = "TDS"
	KindTurbidity   SensorKind = "Turbidity"
)

// AllKinds is the fixed processing order used by every tick and listing.
var AllKinds = []SensorKind{KindPH, KindTemperature, KindTDS, KindTurbidity}

var ErrUnknownKind = errors.New("unknown sensor kind")

// Unit returns the display unit; pH is dimensionless.
func (k SensorKind) Unit() string {
	switch k {
	case KindTemperature:
		return "°C"
	case KindTDS:
		return "ppm"
	case KindTurbidity:
		return "NTU"
	default:
		return ""
	}
}

func (k SensorKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseSensorKind accepts any casing of a known kind ("ph", "TDS", "turbidity").
func ParseSensorKind(s string) (SensorKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range AllKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Reading is a single timestamped measurement.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SensorState is the live view of one probe. History is oldest first.
type SensorState struct {
	Kind     SensorKind `json:"kind"`
	Unit     string     `json:"unit"`
	Current  float64    `json:"value"`
	Severity Severity   `json:"severity"`
	History  []Reading  `json:"history,omitempty"`
}
