package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/config"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/event"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/logger"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

// event-svc subscribes to published readings and alerts and stores them in InfluxDB.
func main() {
	cfg, err := config.Load(os.Getenv("AQUA_CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "event-svc")
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === InfluxDB ===
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(cfg.Influx.BatchSize)).
		SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
	influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
	defer influx.Close()
	writer := event.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), log)

	// === MQTT ===
	mqttClient, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.User,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID + "-event",
	}, log)
	if err != nil {
		log.Fatal("mqtt connection error", zap.Error(err))
	}

	// === HTTP ===
	mqttUp := func() bool { return mqttClient.IsConnectionOpen() }
	influxUp := func() bool {
		pctx, pcancel := context.WithTimeout(ctx, 2*time.Second)
		defer pcancel()
		ok, err := influx.Ping(pctx)
		return err == nil && ok
	}
	mux := http.NewServeMux()
	mux.Handle("/healthz", event.NewHealthHandler(mqttUp, influxUp, writer))
	mux.Handle("/readyz", event.NewReadyHandler(mqttUp, influxUp, writer, 2*time.Second))

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("event-svc: HTTP listening", zap.Int("port", cfg.HTTP.Port))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	// === Consumer ===
	h := event.NewMQTTHandler(func(measurement string, p *write.Point) {
		writer.WritePoint(p)
		writer.MarkIngest(measurement)
	})
	consumer := rabbitmq.NewConsumer(mqttClient, []string{
		event.TopicSensorData + "/#",
		event.TopicAggregated + "/#",
		event.TopicAlertEvents + "/#",
	}, h.Handle, log)
	go consumer.ConsumeMessage(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Info("event-svc: shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
	cancel()
	writer.Flush()
}
