package entities

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRange = errors.New("invalid safe range")

// SafeRange holds the inclusive acceptable bounds for one sensor kind.
type SafeRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

func (r SafeRange) Span() float64 { return r.High - r.Low }

// Validate is applied when thresholds are edited, never when classifying.
func (r SafeRange) Validate() error {
	if math.IsNaN(r.Low) || math.IsNaN(r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
		return fmt.Errorf("%w: bounds must be finite", ErrInvalidRange)
	}
	if r.High < r.Low {
		return fmt.Errorf("%w: high %.2f below low %.2f", ErrInvalidRange, r.High, r.Low)
	}
	return nil
}

// DefaultThresholds returns a fresh copy of the factory thresholds.
func DefaultThresholds() map[SensorKind]SafeRange {
	return map[SensorKind]SafeRange{
		KindPH:          {Low: 6.5, High: 8.5},
		KindTemperature: {Low: 10, High: 25},
		KindTDS:         {Low: 0, High: 500},
		KindTurbidity:   {Low: 0, High: 5},
	}
}

// DisplayRanges are the plotting bounds used by the history viewer.
func DisplayRanges() map[SensorKind]SafeRange {
	return map[SensorKind]SafeRange{
		KindPH:          {Low: 6, High: 9},
		KindTemperature: {Low: 5, High: 30},
		KindTDS:         {Low: 100, High: 600},
		KindTurbidity:   {Low: 0, High: 10},
	}
}
