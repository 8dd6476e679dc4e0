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

	"github.com/go-redis/redis/v8"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/config"
	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
	sensorSimulator "github.com/LeonardoBeccarini/aquamonitor/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/aggregator"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/alerting"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/event"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/gateway/app"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/selector"
	"github.com/LeonardoBeccarini/aquamonitor/internal/services/settings"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/logger"
	"github.com/LeonardoBeccarini/aquamonitor/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load(os.Getenv("AQUA_CONFIG_DIR"))
	if err != nil {
		zap.NewExample().Fatal("config", zap.Error(err))
	}
	log := logger.Must(cfg.Log.Level, cfg.Log.Format, "gateway")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	probes := map[string]app.Probe{}
	breaker := selector.BreakerSettings{
		Failures: cfg.Selector.BreakerFailures,
		OpenFor:  cfg.Selector.BreakerOpen,
		Interval: cfg.Selector.BreakerInterval,
	}

	// === Settings ===
	var store settings.Store = settings.NewMemoryStore()
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		store = settings.NewRedisStore(rdb, log)
		probes["redis"] = func() bool {
			pctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			return rdb.Ping(pctx).Err() == nil
		}
	}
	settingsSvc := settings.NewService(ctx, store, log)

	// === Alerting ===
	sel, closeSel, err := selector.Dial(cfg.Selector.Transport, cfg.Selector.URL, cfg.Selector.Timeout, breaker, log)
	if err != nil {
		log.Fatal("selector", zap.Error(err))
	}
	defer func() { _ = closeSel() }()
	dispatcher := alerting.NewDispatcher(sel, alerting.Config{Timeout: cfg.Selector.Timeout, Metrics: m}, log)

	// === Telemetry ===
	hub := app.NewHub(log, m)
	go hub.Run(ctx)

	generator := sensorSimulator.NewDataGenerator(cfg.Telemetry.Seed)
	sim := sensorSimulator.NewSensorSimulator(sensorSimulator.Config{
		Interval:        cfg.Telemetry.Interval,
		HistoryCapacity: cfg.Telemetry.HistoryCapacity,
		RearmOnRecovery: cfg.Telemetry.RearmPolicy == config.RearmOnRecovery,
		AppOpen:         func() bool { return cfg.Telemetry.AppOpenDefault || hub.ClientCount() > 0 },
		Metrics:         m,
	}, settingsSvc, dispatcher, generator, log)

	agg := aggregator.NewDataAggregatorService(nil, cfg.Aggregator.Interval, log)
	sim.AddSink("aggregator", agg)

	deps := app.Deps{
		Telemetry: sim,
		Settings:  settingsSvc,
		Alerts:    dispatcher,
		Generator: generator,
		Hub:       hub,
		Probes:    probes,
	}

	// === InfluxDB ===
	var writer *event.Writer
	if cfg.Influx.Enabled {
		opts := influxdb2.DefaultOptions().
			SetBatchSize(uint(cfg.Influx.BatchSize)).
			SetFlushInterval(uint(cfg.Influx.FlushInterval.Milliseconds()))
		influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, opts)
		defer influx.Close()

		writer = event.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), log)
		sim.AddSink("influx", writer)
		agg.AddOutput("influx", writer)
		dispatcher.AddSink("influx", writer)
		deps.Stored = event.NewHistory(influx, cfg.Influx.Org, cfg.Influx.Bucket)
		probes["influx"] = func() bool {
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			ok, err := influx.Ping(pctx)
			return err == nil && ok && writer.LastErrorAge() > 2*time.Second
		}
	}

	// === MQTT ===
	if cfg.MQTT.Enabled {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
			Host:     cfg.MQTT.Host,
			Port:     cfg.MQTT.Port,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			ClientID: cfg.MQTT.ClientID + "-gateway",
		}, log)
		if err != nil {
			log.Fatal("mqtt connection error", zap.Error(err))
		}
		sim.AddSink("mqtt", event.NewReadingPublisher(rabbitmq.NewPublisher(client, event.TopicSensorData, log)))
		agg.AddOutput("mqtt", event.NewReadingPublisher(rabbitmq.NewPublisher(client, event.TopicAggregated, log)))
		dispatcher.AddSink("mqtt", event.NewAlertPublisher(rabbitmq.NewPublisher(client, event.TopicAlertEvents, log)))

		consumer := rabbitmq.NewConsumer(client, []string{sensorSimulator.TopicDeviceConnection}, sim.HandleConnectionMessage(ctx), log)
		go consumer.ConsumeMessage(ctx)
		probes["mqtt"] = client.IsConnectionOpen
	}

	// === Gateway ===
	gw := app.NewGateway(app.Config{
		HTTPTimeout: 3 * time.Second,
		Breaker:     breaker,
		LoopContext: ctx,
		Logger:      log,
		Metrics:     m,
	}, deps)
	sim.AddSink("dashboard", gw)
	dispatcher.AddSink("dashboard", gw)

	go agg.Start(ctx)
	if cfg.Telemetry.AutoConnect {
		sim.Connect(ctx)
	}

	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           gw.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("gateway listening", zap.Int("port", cfg.HTTP.Port))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("gateway: shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = hs.Shutdown(shCtx)

	sim.Disconnect()
	dispatcher.Close()
	agg.Flush(shCtx)
	if writer != nil {
		writer.Flush()
	}
}
