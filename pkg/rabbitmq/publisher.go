package rabbitmq

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// IPublisher publishes to a fixed base topic or to one of its sub-topics.
type IPublisher interface {
	PublishMessage(message interface{}) error
	PublishTo(subtopic string, message interface{}) error
	Close()
}

type Publisher struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger
}

// NewPublisher creates a Publisher on the shared client. topic is the base, e.g. "sensor/data".
func NewPublisher(client mqtt.Client, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  strings.TrimRight(topic, "/"),
		logger: logger,
	}
}

func (p *Publisher) PublishMessage(message interface{}) error {
	return p.publish(p.topic, message)
}

// PublishTo publishes to "<base>/<subtopic>".
func (p *Publisher) PublishTo(subtopic string, message interface{}) error {
	return p.publish(JoinTopic(p.topic, subtopic), message)
}

func (p *Publisher) publish(topic string, message interface{}) error {
	payload, err := encodePayload(message)
	if err != nil {
		return err
	}
	token := p.client.Publish(topic, qosFor(topic), false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish message on %s: %w", topic, token.Error())
	}
	p.logger.Debug("mqtt: published", zap.String("topic", topic), zap.Int("bytes", len(payload)))
	return nil
}

// Close only disconnects a client that is still connected.
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("mqtt: publisher disconnected", zap.String("topic", p.topic))
	}
}

func JoinTopic(base, sub string) string {
	sub = strings.Trim(sub, "/")
	if sub == "" {
		return base
	}
	if base == "" {
		return sub
	}
	return base + "/" + sub
}

func encodePayload(message interface{}) ([]byte, error) {
	switch m := message.(type) {
	case string:
		return []byte(m), nil
	case []byte:
		return m, nil
	case nil:
		return nil, fmt.Errorf("invalid message: nil")
	default:
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("invalid message format: %w", err)
		}
		return b, nil
	}
}
