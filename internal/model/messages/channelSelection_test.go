package messages

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
)

func TestUrgencyFor(t *testing.T) {
	assert.Equal(t, UrgencyHigh, UrgencyFor(entities.Danger))
	assert.Equal(t, UrgencyMedium, UrgencyFor(entities.Warning))
	assert.Equal(t, UrgencyLow, UrgencyFor(entities.Safe))
}

func TestFormatReading(t *testing.T) {
	assert.Equal(t, "pH is 9.00 ", FormatReading(entities.KindPH, 9))
	assert.Equal(t, "Temperature is 27.50 °C", FormatReading(entities.KindTemperature, 27.5))
	assert.Equal(t, "TDS is 612.00 ppm", FormatReading(entities.KindTDS, 612))
}

func TestChannelRequest_WireShape(t *testing.T) {
	req := ChannelRequest{
		Urgency:         UrgencyHigh,
		UserPreferences: entities.UserPreferences{PreferredChannel: entities.ChannelPush, AllowPushNotifications: true},
		AppContext:      AppContext{IsAppOpen: false},
		SensorReading:   "pH is 9.00 ",
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"urgency": "high",
		"userPreferences": {"preferredChannel": "push", "allowPushNotifications": true},
		"appContext": {"isAppOpen": false},
		"sensorReading": "pH is 9.00 "
	}`, string(b))
}

func TestChannelDecision_Validate(t *testing.T) {
	assert.NoError(t, ChannelDecision{Channel: entities.ChannelEmail}.Validate())
	assert.ErrorIs(t, ChannelDecision{Channel: "sms"}.Validate(), ErrInvalidDecision)
}
