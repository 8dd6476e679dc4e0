package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/config"
	sensorSimulator "github.com/LeonardoBeccarini/aquamonitor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/alerting"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/event"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/settings"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/logger"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

// sensor-sim runs the live loop headless: readings and alerts go out over MQTT
// and device/connection commands start and stop it.
func main() {
	clientID := flag.String("client-id", "sensorPublisher1", "MQTT client ID")
	appOpen := flag.Bool("app-open", false, "report the app as open to the channel selector")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("AQUA_CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "sensor-sim")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: *clientID,
	}, log)
	if err != nil {
		log.Fatal("mqtt connection error", zap.Error(err))
	}

	sel, closeSel, err := selector.Dial(cfg.Selector.Transport, cfg.Selector.URL, cfg.Selector.Timeout, selector.BreakerSettings{
		Failures: cfg.Selector.BreakerFailures,
		OpenFor:  cfg.Selector.BreakerOpen,
		Interval: cfg.Selector.BreakerInterval,
	}, log)
	if err != nil {
		log.Fatal("selector", zap.Error(err))
	}
	defer func() { _ = closeSel() }()

	dispatcher := alerting.NewDispatcher(sel, alerting.Config{Timeout: cfg.Selector.Timeout}, log)
	dispatcher.AddSink("mqtt", event.NewAlertPublisher(rabbitmq.NewPublisher(client, event.TopicAlertEvents, log)))

	settingsSvc := settings.NewService(ctx, settings.NewMemoryStore(), log)
	sim := sensorSimulator.NewSensorSimulator(sensorSimulator.Config{
		Interval:        cfg.Telemetry.Interval,
		HistoryCapacity: cfg.Telemetry.HistoryCapacity,
		RearmOnRecovery: cfg.Telemetry.RearmPolicy == config.RearmOnRecovery,
		AppOpen:         func() bool { return *appOpen },
	}, settingsSvc, dispatcher, sensorSimulator.NewDataGenerator(cfg.Telemetry.Seed), log)
	sim.AddSink("mqtt", event.NewReadingPublisher(rabbitmq.NewPublisher(client, event.TopicSensorData, log)))

	consumer := rabbitmq.NewConsumer(client, []string{sensorSimulator.TopicDeviceConnection}, sim.HandleConnectionMessage(ctx), log)
	go consumer.ConsumeMessage(ctx)

	if cfg.Telemetry.AutoConnect {
		sim.Connect(ctx)
	}
	<-ctx.Done()
	sim.Disconnect()
	dispatcher.Close()
}
