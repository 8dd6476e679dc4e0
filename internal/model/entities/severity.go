package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Severity is ordered: Safe < Warning < Danger.
type Severity int

const (
	Safe Severity = iota
	Warning
	Danger
)

// dangerRatio is the fraction of the range span beyond which a deviation is Danger.
const dangerRatio = 0.2

func (s Severity) String() string {
	switch s {
	case Safe:
		return "safe"
	case Warning:
		return "warning"
	case Danger:
		return "danger"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "safe":
		return Safe, nil
	case "warning":
		return Warning, nil
	case "danger":
		return Danger, nil
	}
	return Safe, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Classify maps a value to a Severity against an inclusive range.
// A zero or negative span makes every out-of-range value Danger; NaN is never in range.
func Classify(value float64, r SafeRange) Severity {
	if value >= r.Low && value <= r.High {
		return Safe
	}
	deviation := math.Max(r.Low-value, value-r.High)
	span := r.High - r.Low
	if span <= 0 || math.IsNaN(deviation) {
		return Danger
	}
	if deviation > dangerRatio*span {
		return Danger
	}
	return Warning
}

// AlertKey identifies an alert for deduplication within a session.
type AlertKey struct {
	Kind     SensorKind `json:"kind"`
	Severity Severity   `json:"severity"`
}

func (k AlertKey) String() string {
	return string(k.Kind) + "-" + k.Severity.String()
}

// ParseAlertKey is the inverse of AlertKey.String.
func ParseAlertKey(s string) (AlertKey, error) {
	i := strings.LastIndex(s, "-")
	if i <= 0 {
		return AlertKey{}, fmt.Errorf("malformed alert key %q", s)
	}
	kind, err := ParseSensorKind(s[:i])
	if err != nil {
		return AlertKey{}, err
	}
	sev, err := ParseSeverity(s[i+1:])
	if err != nil {
		return AlertKey{}, err
	}
	return AlertKey{Kind: kind, Severity: sev}, nil
}
