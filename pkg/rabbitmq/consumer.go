package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type MessageHandler func(topic string, message mqtt.Message) error

// IConsumer subscribes and dispatches to an injected handler.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler MessageHandler)
}

type Consumer struct {
	client  mqtt.Client
	handler MessageHandler
	topics  []string
	logger  *zap.Logger
}

// NewConsumer subscribes to one or more topics on the shared client.
// handler may be nil and injected later with SetHandler.
func NewConsumer(client mqtt.Client, topics []string, handler MessageHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:  client,
		topics:  topics,
		handler: handler,
		logger:  logger,
	}
}

func (c *Consumer) SetHandler(handler MessageHandler) {
	c.handler = handler
}

// ConsumeMessage subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	for _, topic := range c.topics {
		topic := topic
		token := c.client.Subscribe(topic, qosFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			c.dispatch(topic, msg)
		})
		if token.Wait() && token.Error() != nil {
			c.logger.Error("mqtt: subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		c.logger.Info("mqtt: subscribed", zap.String("topic", topic))
	}

	<-ctx.Done()

	if c.client.IsConnectionOpen() {
		c.client.Unsubscribe(c.topics...).Wait()
	}
}

func (c *Consumer) dispatch(topic string, msg mqtt.Message) {
	if c.handler == nil {
		c.logger.Warn("mqtt: no handler set", zap.String("topic", topic))
		return
	}
	if err := c.handler(topic, msg); err != nil {
		c.logger.Warn("mqtt: handler error", zap.String("topic", msg.Topic()), zap.Error(err))
	}
}

// qosFor uses at-least-once for control and alert traffic, at-most-once for telemetry.
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "device/connection") ||
		strings.HasPrefix(t, "event/alert") ||
		strings.HasPrefix(t, "sensor/aggregated") {
		return 1
	}
	return 0
}
