package event

import (
	"context"
	"errors"

	"github.com/LeonardoBeccarini/aquamonitor/internal/model/messages"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

// ReadingPublisher publishes each reading to "<base>/<kind>".
// Use TopicSensorData for live readings and TopicAggregated for averages.
type ReadingPublisher struct {
	pub rabbitmq.IPublisher
}

func NewReadingPublisher(pub rabbitmq.IPublisher) *ReadingPublisher {
	return &ReadingPublisher{pub: pub}
}

func (p *ReadingPublisher) HandleReadings(_ context.Context, readings []messages.SensorData) error {
	var errs []error
	for _, r := range readings {
		if err := p.pub.PublishTo(string(r.Kind), r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertPublisher publishes routed alerts to "event/alert/<kind>".
type AlertPublisher struct {
	pub rabbitmq.IPublisher
}

func NewAlertPublisher(pub rabbitmq.IPublisher) *AlertPublisher {
	return &AlertPublisher{pub: pub}
}

func (p *AlertPublisher) HandleAlert(_ context.Context, rec messages.AlertRecord) error {
	return p.pub.PublishTo(string(rec.Kind), rec)
}
