package messages

import "time"

// DeviceConnectionEvent toggles the live loop, as the pairing screen does.
type DeviceConnectionEvent struct {
	Connected bool      `json:"connected"`
	Name      string    `json:"name,omitempty"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
