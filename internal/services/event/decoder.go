package event

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"
	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
)

const (
	TopicSensorData  = "sensor/data"
	TopicAggregated  = "sensor/aggregated"
	TopicAlertEvents = "event/alert"
)

// MQTTHandler turns published readings and alerts into points for sink.
type MQTTHandler struct{ sink func(measurement string, p *write.Point) }

func NewMQTTHandler(sink func(measurement string, p *write.Point)) *MQTTHandler {
	return &MQTTHandler{sink: sink}
}

func (h *MQTTHandler) Handle(_ string, m mqtt.Message) error {
	topic := m.Topic()
	var (
		measurement string
		p           *write.Point
		err         error
	)
	switch {
	case strings.HasPrefix(topic, TopicSensorData+"/"), strings.HasPrefix(topic, TopicAggregated+"/"):
		measurement = MeasurementReading
		p, err = decodeReading(topic, m.Payload())
	case strings.HasPrefix(topic, TopicAlertEvents+"/"):
		measurement = MeasurementAlert
		p, err = decodeAlert(m.Payload())
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if h.sink != nil {
		h.sink(measurement, p)
	}
	return nil
}

func decodeReading(topic string, payload []byte) (*write.Point, error) {
	var d messages.SensorData
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, err
	}
	if d.Kind == "" {
		d.Kind = entities.SensorKind(topic[strings.LastIndex(topic, "/")+1:])
	}
	if !d.Kind.Valid() {
		return nil, fmt.Errorf("reading: %w %q", entities.ErrUnknownKind, d.Kind)
	}
	if strings.HasPrefix(topic, TopicAggregated+"/") {
		d.Aggregated = true
	}
	return ReadingToPoint(d), nil
}

func decodeAlert(payload []byte) (*write.Point, error) {
	var a messages.AlertRecord
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, err
	}
	if !a.Kind.Valid() || !a.Channel.Valid() {
		return nil, fmt.Errorf("alert: missing kind or channel")
	}
	return AlertToPoint(a), nil
}
