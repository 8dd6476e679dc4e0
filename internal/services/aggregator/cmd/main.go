package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/config"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/aggregator"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/event"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/logger"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load(os.Getenv("AQUA_CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "aggregator")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID + "-aggregator",
	}, log)
	if err != nil {
		log.Fatal("mqtt connection error", zap.Error(err))
	}

	consumer := rabbitmq.NewConsumer(client, []string{event.TopicSensorData + "/#"}, nil, log)
	svc := aggregator.NewDataAggregatorService(consumer, cfg.Aggregator.Interval, log)
	svc.AddOutput("mqtt", event.NewReadingPublisher(rabbitmq.NewPublisher(client, event.TopicAggregated, log)))

	log.Info("aggregator: started", zap.Duration("interval", cfg.Aggregator.Interval))
	svc.Start(ctx)
}
